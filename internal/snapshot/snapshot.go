// Package snapshot owns the persisted output of a collection run.
package snapshot

import (
	"time"

	"btc-market-pulse/internal/timeseries"
)

// Snapshot is the full persisted state of one run: the aligned daily table,
// the accumulated put/call history on its own axis, and a freshness stamp.
// Downstream consumers index the value sequences positionally against their
// date axis, so absent auxiliary values are serialised as null, never omitted.
type Snapshot struct {
	Dates       []timeseries.DateKey `json:"dates"`
	BTCPrices   []float64            `json:"btc_prices"`
	FNGIndex    []*float64           `json:"fng_index"`
	VIXIndex    []*float64           `json:"vix_index"`
	PCRDates    []timeseries.DateKey `json:"pcr_dates"`
	PCRIndex    []float64            `json:"pcr_index"`
	LastUpdated time.Time            `json:"last_updated"`
}

// consistent reports whether every value sequence matches its date axis.
// Stores treat a snapshot that fails this check as corrupt: positional
// indexing against mismatched columns would panic downstream.
func (s *Snapshot) consistent() bool {
	n := len(s.Dates)
	return len(s.BTCPrices) == n &&
		len(s.FNGIndex) == n &&
		len(s.VIXIndex) == n &&
		len(s.PCRDates) == len(s.PCRIndex)
}

// PCRHistory reconstructs the rolling accumulator state carried in the
// snapshot. Mismatched sequence lengths mean a hand-edited or corrupt file;
// the accumulator then restarts empty rather than guessing.
func (s *Snapshot) PCRHistory() timeseries.RollingHistory {
	if s == nil || len(s.PCRDates) != len(s.PCRIndex) {
		return timeseries.RollingHistory{}
	}
	return timeseries.RollingHistory{
		Dates:  append([]timeseries.DateKey(nil), s.PCRDates...),
		Values: append([]float64(nil), s.PCRIndex...),
	}
}

// Store abstracts snapshot persistence so the collector never touches the
// on-disk representation directly.
type Store interface {
	// Load returns the prior snapshot, or false when none exists or the
	// stored state is unreadable. Corruption is never fatal.
	Load() (*Snapshot, bool)
	// Save atomically replaces the stored snapshot.
	Save(snap *Snapshot) error
}
