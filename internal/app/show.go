package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"btc-market-pulse/internal/storage"
)

// Show prints the most recent merged rows, newest first. It prefers the
// Postgres archive when one is configured and falls back to the snapshot
// file otherwise.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	limit := opts.Limit
	if limit <= 0 {
		limit = 30
	}

	archive, closeArchive, err := a.openArchive(ctx)
	if err != nil {
		return err
	}
	if closeArchive != nil {
		defer closeArchive()
	}

	var rows []storage.DailyMetric
	if archive != nil {
		rows, err = archive.ListRecentMetrics(ctx, limit)
		if err != nil {
			return err
		}
	} else {
		snap, ok := a.newSnapshotStore().Load()
		if !ok {
			return errors.New("no snapshot found; run 'btcpulse collect' first")
		}
		rows = storage.MetricsFromSnapshot(snap)
		if len(rows) > limit {
			rows = rows[len(rows)-limit:]
		}
		// Snapshot rows come oldest-first; match the archive's ordering.
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}

	if len(rows) == 0 {
		fmt.Fprintln(os.Stdout, "no data collected yet")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tBTC (USD)\tFear&Greed\tVIX\tPut/Call")
	for _, row := range rows {
		fmt.Fprintf(writer, "%s\t%.2f\t%s\t%s\t%s\n",
			row.Day,
			row.BTCPrice,
			formatOptional(row.FNG, 0),
			formatOptional(row.VIX, 2),
			formatOptional(row.PCR, 4),
		)
	}
	return writer.Flush()
}

func formatOptional(v *float64, places int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.*f", places, *v)
}
