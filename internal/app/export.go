package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"btc-market-pulse/internal/storage"
)

// Export renders the merged series from the snapshot as CSV and/or a PNG
// chart of price against sentiment.
func (a *App) Export(_ context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	snap, ok := a.newSnapshotStore().Load()
	if !ok {
		return errors.New("no snapshot found; run 'btcpulse collect' first")
	}
	if len(snap.Dates) == 0 {
		a.Logger.Info().Msg("snapshot is empty; nothing to export")
		return nil
	}

	rows := downsampleRows(storage.MetricsFromSnapshot(snap), opts.MaxPoints)
	a.Logger.Info().Int("total", len(snap.Dates)).Int("exported", len(rows)).Msg("exporting merged series")

	if opts.CSVPath != "" {
		if err := writeRowsCSV(opts.CSVPath, rows); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeRowsPNG(opts.PNGPath, rows); err != nil {
			return err
		}
	}

	return nil
}

func downsampleRows(rows []storage.DailyMetric, max int) []storage.DailyMetric {
	if max <= 0 || len(rows) <= max {
		return rows
	}

	result := make([]storage.DailyMetric, 0, max)
	step := float64(len(rows)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(rows) {
			idx = len(rows) - 1
		}
		result = append(result, rows[idx])
	}
	return result
}

func writeRowsCSV(path string, rows []storage.DailyMetric) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"date", "btc_price", "fng_index", "vix_index", "pcr_index"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, row := range rows {
		record := []string{
			string(row.Day),
			fmt.Sprintf("%.2f", row.BTCPrice),
			csvOptional(row.FNG, 0),
			csvOptional(row.VIX, 2),
			csvOptional(row.PCR, 4),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func csvOptional(v *float64, places int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.*f", places, *v)
}

func writeRowsPNG(path string, rows []storage.DailyMetric) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	var (
		x      []time.Time
		prices []float64
		fngX   []time.Time
		fng    []float64
	)
	for _, row := range rows {
		day, err := row.Day.Time()
		if err != nil {
			continue
		}
		x = append(x, day)
		prices = append(prices, row.BTCPrice)
		if row.FNG != nil {
			fngX = append(fngX, day)
			fng = append(fng, *row.FNG)
		}
	}
	if len(x) < 2 {
		return errors.New("not enough points to chart")
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name:    "BTC Price (USD)",
			XValues: x,
			YValues: prices,
		},
	}
	if len(fngX) >= 2 {
		series = append(series, chart.TimeSeries{
			Name:    "Fear & Greed",
			XValues: fngX,
			YValues: fng,
			YAxis:   chart.YAxisSecondary,
		})
	}

	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeDateValueFormatter,
		},
		YAxis: chart.YAxis{
			Name: "BTC Price (USD)",
		},
		YAxisSecondary: chart.YAxis{
			Name: "Fear & Greed Index",
		},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
