package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"btc-market-pulse/internal/timeseries"
)

// VIXOptions parameterise the volatility index fetcher.
type VIXOptions struct {
	BaseURL   string
	Symbol    string
	Range     string
	Timeout   time.Duration
	UserAgent string
}

// VIX fetches daily closes of the CBOE volatility index via the Yahoo
// Finance chart API.
type VIX struct {
	opts    VIXOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewVIX constructs a volatility index fetcher.
func NewVIX(opts VIXOptions, logger zerolog.Logger) *VIX {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}

	if opts.Symbol == "" {
		opts.Symbol = "^VIX"
	}
	if opts.Range == "" {
		opts.Range = "1y"
	}

	return &VIX{
		opts:    opts,
		logger:  logger.With().Str("component", "vix_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name implements SeriesSource.
func (v *VIX) Name() string { return "vix" }

// FetchSeries retrieves daily closes. The chart API pads market holidays
// with nulls; those rows are skipped, which is why the aligner's tolerance
// lookup exists. Closes are rounded to two decimals.
func (v *VIX) FetchSeries(ctx context.Context) (timeseries.DateSeries, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=1d",
		v.baseURL, url.PathEscape(v.opts.Symbol), url.QueryEscape(v.opts.Range))

	body, err := getJSON(ctx, v.client, endpoint, v.opts.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("vix: %w", err)
	}

	var payload struct {
		Chart struct {
			Result []struct {
				Timestamp  []int64 `json:"timestamp"`
				Indicators struct {
					Quote []struct {
						Close []*float64 `json:"close"`
					} `json:"quote"`
				} `json:"indicators"`
			} `json:"result"`
			Error *struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		} `json:"chart"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("vix: parse chart: %w", err)
	}
	if payload.Chart.Error != nil {
		return nil, fmt.Errorf("vix: chart api error %s: %s", payload.Chart.Error.Code, payload.Chart.Error.Description)
	}
	if len(payload.Chart.Result) == 0 || len(payload.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("vix: chart returned no quote data")
	}

	result := payload.Chart.Result[0]
	closes := result.Indicators.Quote[0].Close

	series := make(timeseries.DateSeries, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		series[timeseries.DayKeyFromUnix(ts)] = roundTo(*closes[i], 2)
	}

	v.logger.Debug().Int("days", len(series)).Msg("volatility history fetched")
	return series, nil
}

var _ SeriesSource = (*VIX)(nil)
