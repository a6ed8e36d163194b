package storage

import (
	"time"

	"btc-market-pulse/internal/snapshot"
	"btc-market-pulse/internal/timeseries"
)

// DailyMetric is one archived row of the merged table: the reference price
// plus whichever auxiliary values were present for that day.
type DailyMetric struct {
	Day       timeseries.DateKey
	BTCPrice  float64
	FNG       *float64
	VIX       *float64
	PCR       *float64
	CreatedAt time.Time
}

// MetricsFromSnapshot flattens a snapshot into archive rows. The put/call
// history lives on its own axis, so its values join the row whose date
// matches exactly; unmatched history entries stay snapshot-only.
func MetricsFromSnapshot(snap *snapshot.Snapshot) []DailyMetric {
	pcrByDay := make(map[timeseries.DateKey]float64, len(snap.PCRDates))
	for i, d := range snap.PCRDates {
		pcrByDay[d] = snap.PCRIndex[i]
	}

	rows := make([]DailyMetric, 0, len(snap.Dates))
	for i, day := range snap.Dates {
		row := DailyMetric{
			Day:      day,
			BTCPrice: snap.BTCPrices[i],
			FNG:      snap.FNGIndex[i],
			VIX:      snap.VIXIndex[i],
		}
		if v, ok := pcrByDay[day]; ok {
			value := v
			row.PCR = &value
		}
		rows = append(rows, row)
	}
	return rows
}
