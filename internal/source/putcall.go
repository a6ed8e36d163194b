package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"btc-market-pulse/internal/timeseries"
)

// ErrNoCallInterest marks a day where the call side carried zero open
// interest, leaving the ratio undefined. The collector treats it like any
// other unavailable sample.
var ErrNoCallInterest = errors.New("putcall: zero call open interest, ratio undefined")

// PutCallOptions parameterise the options open-interest fetcher.
type PutCallOptions struct {
	BaseURL        string
	Symbol         string
	MaxExpirations int
	Timeout        time.Duration
	UserAgent      string
}

// PutCall derives a single put/call open-interest ratio for the current day
// from the Yahoo Finance options API. Unlike the series sources it yields
// one scalar per run; history builds up in the rolling accumulator.
type PutCall struct {
	opts    PutCallOptions
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
}

// NewPutCall constructs a put/call ratio fetcher.
func NewPutCall(opts PutCallOptions, logger zerolog.Logger) *PutCall {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://query2.finance.yahoo.com"
	}

	if opts.Symbol == "" {
		opts.Symbol = "BITO"
	}

	return &PutCall{
		opts:    opts,
		logger:  logger.With().Str("component", "putcall_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Name implements ScalarSource.
func (p *PutCall) Name() string { return "putcall" }

type optionChainPayload struct {
	OptionChain struct {
		Result []struct {
			ExpirationDates []int64 `json:"expirationDates"`
			Options         []struct {
				Calls []optionContract `json:"calls"`
				Puts  []optionContract `json:"puts"`
			} `json:"options"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"optionChain"`
}

type optionContract struct {
	OpenInterest int64 `json:"openInterest"`
}

// FetchSample lists the contract expiration groups, sub-fetches each group's
// chain, and sums open interest on both sides across every group. The sample
// is keyed to today's local calendar day and rounded to four decimals.
func (p *PutCall) FetchSample(ctx context.Context) (timeseries.DateKey, float64, error) {
	root, err := p.fetchChain(ctx, 0)
	if err != nil {
		return "", 0, err
	}

	expirations := root.ExpirationDates
	if max := p.opts.MaxExpirations; max > 0 && len(expirations) > max {
		expirations = expirations[:max]
	}

	var totalPut, totalCall int64
	if len(root.Options) > 0 {
		totalCall += sumOpenInterest(root.Options[0].Calls)
		totalPut += sumOpenInterest(root.Options[0].Puts)
	}

	// The first expiration group came with the listing response; the rest
	// need one sub-fetch each.
	if len(expirations) > 1 {
		for _, expiry := range expirations[1:] {
			group, err := p.fetchChain(ctx, expiry)
			if err != nil {
				return "", 0, fmt.Errorf("putcall: expiration %d: %w", expiry, err)
			}
			if len(group.Options) == 0 {
				continue
			}
			totalCall += sumOpenInterest(group.Options[0].Calls)
			totalPut += sumOpenInterest(group.Options[0].Puts)
		}
	}

	if totalCall == 0 {
		return "", 0, ErrNoCallInterest
	}

	ratio := roundTo(float64(totalPut)/float64(totalCall), 4)
	day := timeseries.DayKey(time.Now())

	p.logger.Debug().
		Int("expirations", len(expirations)).
		Int64("put_oi", totalPut).
		Int64("call_oi", totalCall).
		Float64("ratio", ratio).
		Msg("put/call ratio computed")

	return day, ratio, nil
}

type chainResult struct {
	ExpirationDates []int64
	Options         []struct {
		Calls []optionContract `json:"calls"`
		Puts  []optionContract `json:"puts"`
	}
}

func (p *PutCall) fetchChain(ctx context.Context, expiry int64) (*chainResult, error) {
	endpoint := fmt.Sprintf("%s/v7/finance/options/%s", p.baseURL, url.PathEscape(p.opts.Symbol))
	if expiry > 0 {
		endpoint = fmt.Sprintf("%s?date=%d", endpoint, expiry)
	}

	body, err := getJSON(ctx, p.client, endpoint, p.opts.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("putcall: %w", err)
	}

	var payload optionChainPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("putcall: parse option chain: %w", err)
	}
	if payload.OptionChain.Error != nil {
		return nil, fmt.Errorf("putcall: api error %s: %s",
			payload.OptionChain.Error.Code, payload.OptionChain.Error.Description)
	}
	if len(payload.OptionChain.Result) == 0 {
		return nil, fmt.Errorf("putcall: option chain returned no result")
	}

	result := payload.OptionChain.Result[0]
	return &chainResult{
		ExpirationDates: result.ExpirationDates,
		Options:         result.Options,
	}, nil
}

func sumOpenInterest(contracts []optionContract) int64 {
	var total int64
	for _, c := range contracts {
		total += c.OpenInterest
	}
	return total
}

var _ ScalarSource = (*PutCall)(nil)
