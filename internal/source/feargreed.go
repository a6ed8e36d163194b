package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"btc-market-pulse/internal/timeseries"
)

// FearGreedOptions parameterise the alternative.me sentiment fetcher.
type FearGreedOptions struct {
	BaseURL      string
	LookbackDays int
	Timeout      time.Duration
	UserAgent    string
}

// FearGreed fetches the crypto Fear & Greed index history from
// alternative.me.
type FearGreed struct {
	opts    FearGreedOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewFearGreed constructs a Fear & Greed fetcher.
func NewFearGreed(opts FearGreedOptions, logger zerolog.Logger) *FearGreed {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.alternative.me"
	}

	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 365
	}

	return &FearGreed{
		opts:    opts,
		logger:  logger.With().Str("component", "feargreed_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name implements SeriesSource.
func (f *FearGreed) Name() string { return "feargreed" }

// FetchSeries retrieves the index history. Values arrive as integer strings
// with unix-second timestamps; rows that fail to parse are skipped rather
// than failing the whole series.
func (f *FearGreed) FetchSeries(ctx context.Context) (timeseries.DateSeries, error) {
	endpoint := fmt.Sprintf("%s/fng/?limit=%d&format=json", f.baseURL, f.opts.LookbackDays)

	body, err := getJSON(ctx, f.client, endpoint, f.opts.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("feargreed: %w", err)
	}

	var payload struct {
		Data []struct {
			Value     string `json:"value"`
			Timestamp string `json:"timestamp"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("feargreed: parse response: %w", err)
	}

	series := make(timeseries.DateSeries, len(payload.Data))
	skipped := 0
	for _, row := range payload.Data {
		value, errV := strconv.Atoi(strings.TrimSpace(row.Value))
		ts, errT := strconv.ParseInt(strings.TrimSpace(row.Timestamp), 10, 64)
		if errV != nil || errT != nil {
			skipped++
			continue
		}
		series[timeseries.DayKeyFromUnix(ts)] = float64(value)
	}

	if skipped > 0 {
		f.logger.Warn().Int("skipped", skipped).Msg("dropped unparseable index rows")
	}
	f.logger.Debug().Int("days", len(series)).Msg("fear & greed history fetched")
	return series, nil
}

var _ SeriesSource = (*FearGreed)(nil)
