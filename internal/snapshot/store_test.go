package snapshot

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"btc-market-pulse/internal/timeseries"
)

func sampleSnapshot() *Snapshot {
	fng := 42.0
	vix := 15.25
	return &Snapshot{
		Dates:       []timeseries.DateKey{"2024-01-01", "2024-01-02"},
		BTCPrices:   []float64{42000.12, 42150.55},
		FNGIndex:    []*float64{&fng, nil},
		VIXIndex:    []*float64{nil, &vix},
		PCRDates:    []timeseries.DateKey{"2024-01-02"},
		PCRIndex:    []float64{0.8215},
		LastUpdated: time.Date(2024, 1, 2, 12, 0, 0, 0, time.UTC),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	store := NewFileStore(path, zerolog.Nop())

	original := sampleSnapshot()
	if err := store.Save(original); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	loaded, ok := store.Load()
	if !ok {
		t.Fatal("saved snapshot should load back")
	}

	if !reflect.DeepEqual(loaded.Dates, original.Dates) {
		t.Fatalf("dates changed: %v vs %v", loaded.Dates, original.Dates)
	}
	if !reflect.DeepEqual(loaded.BTCPrices, original.BTCPrices) {
		t.Fatalf("prices changed: %v vs %v", loaded.BTCPrices, original.BTCPrices)
	}
	if !reflect.DeepEqual(loaded.FNGIndex, original.FNGIndex) {
		t.Fatalf("fng column changed")
	}
	if !reflect.DeepEqual(loaded.VIXIndex, original.VIXIndex) {
		t.Fatalf("vix column changed")
	}
	if !reflect.DeepEqual(loaded.PCRDates, original.PCRDates) || !reflect.DeepEqual(loaded.PCRIndex, original.PCRIndex) {
		t.Fatalf("pcr sequences changed")
	}
}

func TestFileStoreMissingFile(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nope.json"), zerolog.Nop())
	if snap, ok := store.Load(); ok || snap != nil {
		t.Fatal("missing file must load as absent")
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(path, zerolog.Nop())
	if snap, ok := store.Load(); ok || snap != nil {
		t.Fatal("corrupt file must load as absent, not crash")
	}
}

func TestFileStoreMismatchedColumns(t *testing.T) {
	// Parses as JSON, but the sentiment column is shorter than the date
	// axis; positional consumers would index out of range.
	truncated := `{
		"dates": ["2024-01-01", "2024-01-02"],
		"btc_prices": [100, 101],
		"fng_index": [null],
		"vix_index": [null, null],
		"pcr_dates": [],
		"pcr_index": []
	}`
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(truncated), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(path, zerolog.Nop())
	if snap, ok := store.Load(); ok || snap != nil {
		t.Fatal("mismatched sequence lengths must load as absent, not crash consumers")
	}
}

func TestFileStoreMismatchedPCRColumns(t *testing.T) {
	truncated := `{
		"dates": [],
		"btc_prices": [],
		"fng_index": [],
		"vix_index": [],
		"pcr_dates": ["2024-01-01", "2024-01-02"],
		"pcr_index": [0.5]
	}`
	path := filepath.Join(t.TempDir(), "data.json")
	if err := os.WriteFile(path, []byte(truncated), 0o644); err != nil {
		t.Fatal(err)
	}

	store := NewFileStore(path, zerolog.Nop())
	if _, ok := store.Load(); ok {
		t.Fatal("mismatched pcr sequences must load as absent")
	}
}

func TestFileStoreSaveCreatesDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out", "data.json")
	store := NewFileStore(path, zerolog.Nop())

	if err := store.Save(sampleSnapshot()); err != nil {
		t.Fatalf("save should create missing directories: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot file missing: %v", err)
	}
}

func TestPCRHistoryMismatchedLengths(t *testing.T) {
	snap := &Snapshot{
		PCRDates: []timeseries.DateKey{"2024-01-01", "2024-01-02"},
		PCRIndex: []float64{0.5},
	}
	if h := snap.PCRHistory(); h.Len() != 0 {
		t.Fatalf("mismatched sequences must reset the accumulator, got %d entries", h.Len())
	}
}

func TestPCRHistoryCopiesState(t *testing.T) {
	snap := sampleSnapshot()
	h := snap.PCRHistory()
	h.Values[0] = 99

	if snap.PCRIndex[0] == 99 {
		t.Fatal("history must be a copy of the snapshot state")
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	if _, ok := store.Load(); ok {
		t.Fatal("fresh memory store should be empty")
	}

	snap := sampleSnapshot()
	if err := store.Save(snap); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	loaded, ok := store.Load()
	if !ok || loaded != snap {
		t.Fatal("memory store should return the saved snapshot")
	}
}
