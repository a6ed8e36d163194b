package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"btc-market-pulse/internal/timeseries"
)

func TestFearGreedFetchSuccess(t *testing.T) {
	day := time.Date(2024, 3, 15, 6, 0, 0, 0, time.Local)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "365" {
			t.Fatalf("unexpected limit: %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"value": "72", "timestamp": fmt.Sprintf("%d", day.Unix())},
			},
		})
	}))
	defer srv.Close()

	src := NewFearGreed(FearGreedOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	series, err := src.FetchSeries(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if got := series[timeseries.DayKey(day)]; got != 72 {
		t.Fatalf("expected 72, got %v", got)
	}
}

func TestFearGreedSkipsMalformedRows(t *testing.T) {
	day := time.Date(2024, 3, 15, 6, 0, 0, 0, time.Local)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{
				{"value": "not-a-number", "timestamp": fmt.Sprintf("%d", day.Unix())},
				{"value": "55", "timestamp": "garbage"},
				{"value": "40", "timestamp": fmt.Sprintf("%d", day.Unix())},
			},
		})
	}))
	defer srv.Close()

	src := NewFearGreed(FearGreedOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())

	series, err := src.FetchSeries(context.Background())
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("malformed rows should be skipped, got %d entries", len(series))
	}
	if got := series[timeseries.DayKey(day)]; got != 40 {
		t.Fatalf("expected surviving row value 40, got %v", got)
	}
}

func TestFearGreedHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewFearGreed(FearGreedOptions{BaseURL: srv.URL, Timeout: time.Second}, noopLogger())
	if _, err := src.FetchSeries(context.Background()); err == nil {
		t.Fatal("http error must surface as an error")
	}
}
