package collector

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"btc-market-pulse/internal/alerting"
	"btc-market-pulse/internal/snapshot"
	"btc-market-pulse/internal/timeseries"
)

type fakeSeries struct {
	name   string
	series timeseries.DateSeries
	err    error
}

func (f *fakeSeries) Name() string { return f.name }

func (f *fakeSeries) FetchSeries(context.Context) (timeseries.DateSeries, error) {
	return f.series, f.err
}

type fakeScalar struct {
	day   timeseries.DateKey
	value float64
	err   error
}

func (f *fakeScalar) Name() string { return "putcall" }

func (f *fakeScalar) FetchSample(context.Context) (timeseries.DateKey, float64, error) {
	return f.day, f.value, f.err
}

type fakeNotifier struct {
	notes []alerting.Notification
}

func (f *fakeNotifier) Notify(_ context.Context, note alerting.Notification) error {
	f.notes = append(f.notes, note)
	return nil
}

func testCollector(price, fng, vix *fakeSeries, pcr *fakeScalar, store snapshot.Store, opts Options) *Collector {
	return New(opts, price, fng, vix, pcr, store, nil, nil, zerolog.Nop())
}

func prices() *fakeSeries {
	return &fakeSeries{name: "coingecko", series: timeseries.DateSeries{
		"2024-01-01": 100, "2024-01-02": 101, "2024-01-03": 102,
	}}
}

func TestCollectReferenceFailureIsFatal(t *testing.T) {
	store := snapshot.NewMemoryStore()
	prior := &snapshot.Snapshot{Dates: []timeseries.DateKey{"2023-12-31"}, BTCPrices: []float64{99}}
	if err := store.Save(prior); err != nil {
		t.Fatal(err)
	}

	c := testCollector(
		&fakeSeries{name: "coingecko", err: errors.New("rate limited")},
		&fakeSeries{name: "feargreed"},
		&fakeSeries{name: "vix"},
		&fakeScalar{},
		store,
		Options{ToleranceDays: 3},
	)

	if _, err := c.Collect(context.Background()); !errors.Is(err, ErrReferenceUnavailable) {
		t.Fatalf("expected ErrReferenceUnavailable, got %v", err)
	}

	loaded, ok := store.Load()
	if !ok || loaded != prior {
		t.Fatal("a failed run must leave the prior snapshot untouched")
	}
}

func TestCollectEmptyReferenceIsFatal(t *testing.T) {
	c := testCollector(
		&fakeSeries{name: "coingecko", series: timeseries.DateSeries{}},
		&fakeSeries{name: "feargreed"},
		&fakeSeries{name: "vix"},
		&fakeScalar{},
		snapshot.NewMemoryStore(),
		Options{ToleranceDays: 3},
	)

	if _, err := c.Collect(context.Background()); !errors.Is(err, ErrReferenceUnavailable) {
		t.Fatalf("expected ErrReferenceUnavailable, got %v", err)
	}
}

func TestCollectAuxiliaryFailureDegrades(t *testing.T) {
	c := testCollector(
		prices(),
		&fakeSeries{name: "feargreed", err: errors.New("unreachable")},
		&fakeSeries{name: "vix", series: timeseries.DateSeries{"2024-01-02": 14.5}},
		&fakeScalar{err: errors.New("no chain")},
		snapshot.NewMemoryStore(),
		Options{ToleranceDays: 3},
	)

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("auxiliary failures must not fail the run: %v", err)
	}

	if len(snap.Dates) != 3 {
		t.Fatalf("expected full reference axis, got %d rows", len(snap.Dates))
	}
	for i, v := range snap.FNGIndex {
		if v != nil {
			t.Fatalf("failed auxiliary must yield an all-absent column, row %d has %v", i, *v)
		}
	}
	for i, v := range snap.VIXIndex {
		if v == nil || *v != 14.5 {
			t.Fatalf("vix row %d should be gap-filled to 14.5, got %v", i, v)
		}
	}
	if len(snap.PCRDates) != 0 {
		t.Fatalf("absent scalar sample must not grow the history, got %v", snap.PCRDates)
	}
}

func TestCollectAlignsAndStampsSnapshot(t *testing.T) {
	fng := &fakeSeries{name: "feargreed", series: timeseries.DateSeries{"2024-01-01": 50}}
	c := testCollector(
		prices(),
		fng,
		&fakeSeries{name: "vix"},
		&fakeScalar{day: "2024-01-03", value: 0.8215},
		snapshot.NewMemoryStore(),
		Options{ToleranceDays: 3},
	)

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	for i := range snap.Dates {
		if v := snap.FNGIndex[i]; v == nil || *v != 50 {
			t.Fatalf("single sample within tolerance should fill every row, row %d got %v", i, v)
		}
	}
	if snap.BTCPrices[0] != 100 || snap.BTCPrices[2] != 102 {
		t.Fatalf("reference values must pass through unchanged: %v", snap.BTCPrices)
	}
	if len(snap.PCRDates) != 1 || snap.PCRDates[0] != "2024-01-03" || snap.PCRIndex[0] != 0.8215 {
		t.Fatalf("scalar sample should seed the history: %v %v", snap.PCRDates, snap.PCRIndex)
	}
	if snap.LastUpdated.IsZero() {
		t.Fatal("last_updated must be stamped")
	}
}

func TestCollectAccumulatesAcrossRuns(t *testing.T) {
	store := snapshot.NewMemoryStore()
	pcr := &fakeScalar{day: "2024-01-01", value: 0.5}
	c := testCollector(prices(), &fakeSeries{name: "feargreed"}, &fakeSeries{name: "vix"}, pcr, store, Options{ToleranceDays: 3})

	if _, err := c.Collect(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	pcr.day, pcr.value = "2024-01-02", 0.7
	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	wantDates := []timeseries.DateKey{"2024-01-01", "2024-01-02"}
	wantValues := []float64{0.5, 0.7}
	if len(snap.PCRDates) != 2 {
		t.Fatalf("expected accumulated history, got %v", snap.PCRDates)
	}
	for i := range wantDates {
		if snap.PCRDates[i] != wantDates[i] || snap.PCRIndex[i] != wantValues[i] {
			t.Fatalf("expected %v/%v, got %v/%v", wantDates, wantValues, snap.PCRDates, snap.PCRIndex)
		}
	}
}

func TestCollectSameDayRerunReplacesSample(t *testing.T) {
	store := snapshot.NewMemoryStore()
	pcr := &fakeScalar{day: "2024-01-02", value: 0.7}
	c := testCollector(prices(), &fakeSeries{name: "feargreed"}, &fakeSeries{name: "vix"}, pcr, store, Options{ToleranceDays: 3})

	if _, err := c.Collect(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	pcr.value = 0.9
	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("rerun failed: %v", err)
	}

	if len(snap.PCRDates) != 1 || snap.PCRIndex[0] != 0.9 {
		t.Fatalf("same-day rerun should replace the sample, got %v/%v", snap.PCRDates, snap.PCRIndex)
	}
}

func TestCollectFiresExtremeFearAlert(t *testing.T) {
	fng := &fakeSeries{name: "feargreed", series: timeseries.DateSeries{"2024-01-03": 12}}
	notifier := &fakeNotifier{}

	c := New(
		Options{ToleranceDays: 0, FearThreshold: 20, GreedThreshold: 80},
		prices(), fng, &fakeSeries{name: "vix"}, &fakeScalar{err: errors.New("skip")},
		snapshot.NewMemoryStore(), nil, notifier, zerolog.Nop(),
	)

	if _, err := c.Collect(context.Background()); err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	if len(notifier.notes) != 1 {
		t.Fatalf("expected one alert, got %d", len(notifier.notes))
	}
	note := notifier.notes[0]
	if note.Direction != alerting.DirectionFear || note.Value != 12 || note.Day != "2024-01-03" {
		t.Fatalf("unexpected alert: %+v", note)
	}
}

func TestCollectNoAlertInsideBand(t *testing.T) {
	fng := &fakeSeries{name: "feargreed", series: timeseries.DateSeries{"2024-01-03": 55}}
	notifier := &fakeNotifier{}

	c := New(
		Options{ToleranceDays: 0, FearThreshold: 20, GreedThreshold: 80},
		prices(), fng, &fakeSeries{name: "vix"}, &fakeScalar{err: errors.New("skip")},
		snapshot.NewMemoryStore(), nil, notifier, zerolog.Nop(),
	)

	if _, err := c.Collect(context.Background()); err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(notifier.notes) != 0 {
		t.Fatalf("neutral sentiment must not alert, got %d notes", len(notifier.notes))
	}
}

func TestCollectRecoversFromCorruptHistory(t *testing.T) {
	store := snapshot.NewMemoryStore()
	if err := store.Save(&snapshot.Snapshot{
		PCRDates: []timeseries.DateKey{"2024-01-01", "2024-01-02"},
		PCRIndex: []float64{0.5}, // lengths disagree
	}); err != nil {
		t.Fatal(err)
	}

	c := testCollector(prices(), &fakeSeries{name: "feargreed"}, &fakeSeries{name: "vix"},
		&fakeScalar{day: "2024-01-03", value: 0.6}, store, Options{ToleranceDays: 3})

	snap, err := c.Collect(context.Background())
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}
	if len(snap.PCRDates) != 1 || snap.PCRDates[0] != "2024-01-03" {
		t.Fatalf("corrupt history should restart empty, got %v", snap.PCRDates)
	}
}
