package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"btc-market-pulse/internal/timeseries"
)

const coingeckoChartPath = "/coins/bitcoin/market_chart"

// CoinGeckoOptions parameterise the Bitcoin price fetcher.
type CoinGeckoOptions struct {
	BaseURL      string
	VsCurrency   string
	LookbackDays int
	Timeout      time.Duration
	UserAgent    string
}

// CoinGecko fetches the daily Bitcoin spot price history. It is the
// reference source: its dates define the snapshot's axis.
type CoinGecko struct {
	opts    CoinGeckoOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewCoinGecko constructs a CoinGecko price fetcher.
func NewCoinGecko(opts CoinGeckoOptions, logger zerolog.Logger) *CoinGecko {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}

	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 365
	}

	return &CoinGecko{
		opts:    opts,
		logger:  logger.With().Str("component", "coingecko_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name implements SeriesSource.
func (c *CoinGecko) Name() string { return "coingecko" }

// FetchSeries retrieves the daily price history. Prices are rounded to two
// decimals and keyed by the local calendar day of their timestamp; multiple
// points falling on the same day collapse to the last one.
func (c *CoinGecko) FetchSeries(ctx context.Context) (timeseries.DateSeries, error) {
	endpoint := fmt.Sprintf("%s%s?vs_currency=%s&days=%d&interval=daily",
		c.baseURL, coingeckoChartPath, c.opts.VsCurrency, c.opts.LookbackDays)

	body, err := getJSON(ctx, c.client, endpoint, c.opts.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("coingecko: %w", err)
	}

	var payload struct {
		Prices [][]float64 `json:"prices"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("coingecko: parse market chart: %w", err)
	}
	if len(payload.Prices) == 0 {
		return nil, fmt.Errorf("coingecko: market chart returned no prices")
	}

	series := make(timeseries.DateSeries, len(payload.Prices))
	for _, point := range payload.Prices {
		if len(point) < 2 {
			continue
		}
		// CoinGecko timestamps are in milliseconds.
		day := timeseries.DayKeyFromUnix(int64(point[0]) / 1000)
		series[day] = roundTo(point[1], 2)
	}

	c.logger.Debug().Int("days", len(series)).Msg("price history fetched")
	return series, nil
}

func getJSON(ctx context.Context, client *http.Client, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "btcpulse/1.0")
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		trimmed := strings.TrimSpace(string(body))
		if len(trimmed) > 200 {
			// Cutting mid-rune would mangle the message.
			trimmed = strings.ToValidUTF8(trimmed[:200], "")
		}
		if trimmed != "" {
			return nil, fmt.Errorf("http %d: %s", resp.StatusCode, trimmed)
		}
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	return body, nil
}

var _ SeriesSource = (*CoinGecko)(nil)
