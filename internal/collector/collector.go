// Package collector orchestrates one collection run: fetch every source,
// align onto the reference axis, merge the scalar accumulator, persist.
package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"btc-market-pulse/internal/alerting"
	"btc-market-pulse/internal/snapshot"
	"btc-market-pulse/internal/source"
	"btc-market-pulse/internal/storage"
	"btc-market-pulse/internal/timeseries"
)

// ErrReferenceUnavailable marks the one fatal failure mode: the price source
// that defines the date axis returned nothing. The run writes no output and
// leaves any prior snapshot untouched.
var ErrReferenceUnavailable = errors.New("collector: reference price series unavailable")

// Column names of the auxiliary series inside the aligned table.
const (
	colFNG = "fng"
	colVIX = "vix"
)

// Options tune a collection run.
type Options struct {
	// ToleranceDays bounds the nearest-neighbor gap fill during alignment.
	ToleranceDays int
	// MaxHistory caps the put/call rolling window.
	MaxHistory int
	// FearThreshold and GreedThreshold bound the alerting band; alerts fire
	// when the latest sentiment value leaves it. Alerting stays off while
	// Notifier is nil.
	FearThreshold  float64
	GreedThreshold float64
}

// Collector wires the sources, the snapshot store, and the optional archive
// and notifier into a runnable pipeline.
type Collector struct {
	opts      Options
	price     source.SeriesSource
	sentiment source.SeriesSource
	vol       source.SeriesSource
	putcall   source.ScalarSource
	snapshots snapshot.Store
	archive   storage.MetricsStore
	notifier  alerting.Notifier
	logger    zerolog.Logger

	now func() time.Time
}

// New constructs a collector. archive and notifier may be nil.
func New(opts Options, price, sentiment, vol source.SeriesSource, putcall source.ScalarSource, snapshots snapshot.Store, archive storage.MetricsStore, notifier alerting.Notifier, logger zerolog.Logger) *Collector {
	if opts.ToleranceDays < 0 {
		opts.ToleranceDays = 0
	}
	if opts.MaxHistory <= 0 {
		opts.MaxHistory = 365
	}

	return &Collector{
		opts:      opts,
		price:     price,
		sentiment: sentiment,
		vol:       vol,
		putcall:   putcall,
		snapshots: snapshots,
		archive:   archive,
		notifier:  notifier,
		logger:    logger.With().Str("component", "collector").Logger(),
		now:       time.Now,
	}
}

// Collect executes one full run and returns the snapshot it persisted.
func (c *Collector) Collect(ctx context.Context) (*snapshot.Snapshot, error) {
	c.logger.Info().Str("source", c.price.Name()).Msg("fetching reference price series")
	prices, err := c.price.FetchSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrReferenceUnavailable, c.price.Name(), err)
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("%w: %s returned an empty series", ErrReferenceUnavailable, c.price.Name())
	}
	c.logger.Info().Int("days", len(prices)).Msg("reference series fetched")

	auxiliaries := c.fetchAuxiliaries(ctx)

	sampleDay, sampleValue, haveSample := c.fetchSample(ctx)

	prior, _ := c.snapshots.Load()
	history := prior.PCRHistory()

	c.logger.Info().Int("tolerance_days", c.opts.ToleranceDays).Msg("aligning series")
	table := timeseries.Align(prices, auxiliaries, c.opts.ToleranceDays)

	if haveSample {
		history = history.Merge(sampleDay, sampleValue, c.opts.MaxHistory)
		c.logger.Info().Str("day", string(sampleDay)).Float64("ratio", sampleValue).Int("window", history.Len()).Msg("put/call sample merged")
	} else {
		c.logger.Info().Int("window", history.Len()).Msg("no put/call sample this run; history carried forward")
	}

	snap := buildSnapshot(table, history, c.now().UTC())

	if err := c.snapshots.Save(snap); err != nil {
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	c.logger.Info().Int("rows", len(snap.Dates)).Msg("snapshot persisted")

	c.archiveRows(ctx, snap)
	c.maybeAlert(ctx, snap)

	return snap, nil
}

// fetchAuxiliaries fetches the sentiment and volatility series concurrently.
// Each failure degrades to an empty series so one unavailable source never
// blocks the others.
func (c *Collector) fetchAuxiliaries(ctx context.Context) map[string]timeseries.DateSeries {
	type result struct {
		name   string
		series timeseries.DateSeries
	}

	fetch := func(col string, src source.SeriesSource, out *result, wg *sync.WaitGroup) {
		defer wg.Done()
		out.name = col
		if src == nil {
			out.series = timeseries.DateSeries{}
			return
		}
		c.logger.Info().Str("source", src.Name()).Msg("fetching auxiliary series")
		series, err := src.FetchSeries(ctx)
		if err != nil {
			c.logger.Warn().Err(err).Str("source", src.Name()).Msg("auxiliary source unavailable; continuing without it")
			out.series = timeseries.DateSeries{}
			return
		}
		c.logger.Info().Str("source", src.Name()).Int("days", len(series)).Msg("auxiliary series fetched")
		out.series = series
	}

	results := make([]result, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go fetch(colFNG, c.sentiment, &results[0], &wg)
	go fetch(colVIX, c.vol, &results[1], &wg)
	wg.Wait()

	auxiliaries := make(map[string]timeseries.DateSeries, len(results))
	for _, r := range results {
		auxiliaries[r.name] = r.series
	}
	return auxiliaries
}

func (c *Collector) fetchSample(ctx context.Context) (timeseries.DateKey, float64, bool) {
	if c.putcall == nil {
		return "", 0, false
	}

	c.logger.Info().Str("source", c.putcall.Name()).Msg("fetching put/call sample")
	day, value, err := c.putcall.FetchSample(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Str("source", c.putcall.Name()).Msg("put/call sample unavailable; continuing without it")
		return "", 0, false
	}
	return day, value, true
}

func (c *Collector) archiveRows(ctx context.Context, snap *snapshot.Snapshot) {
	if c.archive == nil {
		return
	}

	rows := storage.MetricsFromSnapshot(snap)
	if err := c.archive.UpsertDailyMetrics(ctx, rows); err != nil {
		c.logger.Error().Err(err).Msg("failed to archive merged rows")
		return
	}
	c.logger.Info().Int("rows", len(rows)).Msg("merged rows archived")
}

func (c *Collector) maybeAlert(ctx context.Context, snap *snapshot.Snapshot) {
	if c.notifier == nil {
		return
	}

	day, value, price, ok := latestSentiment(snap)
	if !ok {
		return
	}

	var direction string
	switch {
	case value <= c.opts.FearThreshold:
		direction = alerting.DirectionFear
	case value >= c.opts.GreedThreshold:
		direction = alerting.DirectionGreed
	default:
		return
	}

	note := alerting.Notification{
		Day:       day,
		Value:     value,
		BTCPrice:  price,
		Direction: direction,
	}
	if direction == alerting.DirectionFear {
		note.Threshold = c.opts.FearThreshold
	} else {
		note.Threshold = c.opts.GreedThreshold
	}

	if err := c.notifier.Notify(ctx, note); err != nil {
		c.logger.Error().Err(err).Msg("failed to dispatch sentiment alert")
	}
}

func buildSnapshot(table timeseries.AlignedTable, history timeseries.RollingHistory, updated time.Time) *snapshot.Snapshot {
	snap := &snapshot.Snapshot{
		Dates:       table.Dates,
		BTCPrices:   table.Reference,
		FNGIndex:    table.Columns[colFNG],
		VIXIndex:    table.Columns[colVIX],
		PCRDates:    history.Dates,
		PCRIndex:    history.Values,
		LastUpdated: updated,
	}

	// Length-matched non-nil sequences even when a column or the history is
	// empty; the JSON must carry arrays, not nulls.
	if snap.Dates == nil {
		snap.Dates = []timeseries.DateKey{}
	}
	if snap.BTCPrices == nil {
		snap.BTCPrices = []float64{}
	}
	if snap.FNGIndex == nil {
		snap.FNGIndex = make([]*float64, len(snap.Dates))
	}
	if snap.VIXIndex == nil {
		snap.VIXIndex = make([]*float64, len(snap.Dates))
	}
	if snap.PCRDates == nil {
		snap.PCRDates = []timeseries.DateKey{}
	}
	if snap.PCRIndex == nil {
		snap.PCRIndex = []float64{}
	}

	return snap
}

// latestSentiment walks back from the end of the axis to the most recent day
// with a sentiment value.
func latestSentiment(snap *snapshot.Snapshot) (timeseries.DateKey, float64, float64, bool) {
	for i := len(snap.Dates) - 1; i >= 0; i-- {
		if v := snap.FNGIndex[i]; v != nil {
			return snap.Dates[i], *v, snap.BTCPrices[i], true
		}
	}
	return "", 0, 0, false
}
