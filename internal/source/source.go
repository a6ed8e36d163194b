// Package source contains the adapters that turn external market APIs into
// canonical daily series.
package source

import (
	"context"

	"github.com/shopspring/decimal"

	"btc-market-pulse/internal/timeseries"
)

// SeriesSource retrieves a full daily history from one external API.
// Implementations return an error for any retrieval or parse failure; the
// collector decides whether that is fatal (reference source) or degrades to
// an empty series (auxiliary sources).
type SeriesSource interface {
	// Name identifies the source in logs and error messages.
	Name() string
	FetchSeries(ctx context.Context) (timeseries.DateSeries, error)
}

// ScalarSource retrieves a single sample for the current day. Used by
// sources that only publish their present value, accumulated across runs by
// the rolling history.
type ScalarSource interface {
	Name() string
	FetchSample(ctx context.Context) (timeseries.DateKey, float64, error)
}

// roundTo fixes a raw float to display precision at the adapter boundary,
// so the canonical series never carries raw floating-point noise.
func roundTo(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
