package storage

import (
	"testing"

	"btc-market-pulse/internal/snapshot"
	"btc-market-pulse/internal/timeseries"
)

func TestMetricsFromSnapshotJoinsPCRByDay(t *testing.T) {
	fng := 42.0
	snap := &snapshot.Snapshot{
		Dates:     []timeseries.DateKey{"2024-01-01", "2024-01-02"},
		BTCPrices: []float64{100, 101},
		FNGIndex:  []*float64{&fng, nil},
		VIXIndex:  []*float64{nil, nil},
		PCRDates:  []timeseries.DateKey{"2024-01-02", "2024-01-05"},
		PCRIndex:  []float64{0.75, 0.8},
	}

	rows := MetricsFromSnapshot(snap)

	if len(rows) != 2 {
		t.Fatalf("expected one row per reference day, got %d", len(rows))
	}
	if rows[0].PCR != nil {
		t.Fatalf("day without matching pcr sample should stay nil, got %v", *rows[0].PCR)
	}
	if rows[1].PCR == nil || *rows[1].PCR != 0.75 {
		t.Fatalf("pcr should join on exact day, got %v", rows[1].PCR)
	}
	if rows[0].FNG == nil || *rows[0].FNG != 42 {
		t.Fatalf("fng should carry over, got %v", rows[0].FNG)
	}
	if rows[1].BTCPrice != 101 {
		t.Fatalf("price should carry over, got %v", rows[1].BTCPrice)
	}
}

func TestMetricsFromSnapshotEmpty(t *testing.T) {
	snap := &snapshot.Snapshot{
		Dates:     []timeseries.DateKey{},
		BTCPrices: []float64{},
		FNGIndex:  []*float64{},
		VIXIndex:  []*float64{},
	}
	if rows := MetricsFromSnapshot(snap); len(rows) != 0 {
		t.Fatalf("empty snapshot should flatten to no rows, got %d", len(rows))
	}
}
