package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"btc-market-pulse/internal/config"
	"btc-market-pulse/internal/timeseries"
)

// ErrNotConfigured indicates the storage pool was not initialised.
var ErrNotConfigured = errors.New("storage: pool not configured")

const (
	ensureSchemaSQL = `CREATE TABLE IF NOT EXISTS daily_metrics (
        day        date PRIMARY KEY,
        btc_price  numeric NOT NULL,
        fng        numeric,
        vix        numeric,
        pcr        numeric,
        created_at timestamptz NOT NULL DEFAULT now()
    );`

	upsertDailyMetricSQL = `INSERT INTO daily_metrics (
        day,
        btc_price,
        fng,
        vix,
        pcr
    ) VALUES (
        $1,$2,$3,$4,$5
    )
    ON CONFLICT (day) DO UPDATE
    SET
        btc_price = EXCLUDED.btc_price,
        fng       = EXCLUDED.fng,
        vix       = EXCLUDED.vix,
        pcr       = EXCLUDED.pcr;`

	listRecentMetricsSQL = `SELECT
        day,
        btc_price,
        fng,
        vix,
        pcr,
        created_at
    FROM daily_metrics
    ORDER BY day DESC
    LIMIT $1;`

	countMetricsSQL = `SELECT COUNT(*) FROM daily_metrics;`
)

// MetricsStore defines the operations the collector and CLI need from the
// Postgres archive.
type MetricsStore interface {
	UpsertDailyMetrics(ctx context.Context, rows []DailyMetric) error
	ListRecentMetrics(ctx context.Context, limit int) ([]DailyMetric, error)
	CountMetrics(ctx context.Context) (int64, error)
}

// Store archives merged daily rows in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to PostgreSQL per the database settings, creates the
// archive table when missing, and returns a ready Store.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, ErrNotConfigured
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	store := &Store{pool: pool}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the archive table when it does not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, ensureSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertDailyMetrics writes all rows in one batch, replacing existing days.
func (s *Store) UpsertDailyMetrics(ctx context.Context, rows []DailyMetric) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(upsertDailyMetricSQL,
			string(row.Day),
			row.BTCPrice,
			floatArg(row.FNG),
			floatArg(row.VIX),
			floatArg(row.PCR),
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert daily metric: %w", err)
		}
	}
	return nil
}

// ListRecentMetrics returns the newest rows, most recent day first.
func (s *Store) ListRecentMetrics(ctx context.Context, limit int) ([]DailyMetric, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 30
	}

	rows, err := pool.Query(ctx, listRecentMetricsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent metrics: %w", err)
	}
	defer rows.Close()

	var metrics []DailyMetric
	for rows.Next() {
		var (
			m   DailyMetric
			day time.Time
		)
		if err := rows.Scan(&day, &m.BTCPrice, &m.FNG, &m.VIX, &m.PCR, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan daily metric: %w", err)
		}
		m.Day = timeseries.DayKey(day)
		metrics = append(metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily metrics: %w", err)
	}
	return metrics, nil
}

// CountMetrics returns the number of archived days.
func (s *Store) CountMetrics(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var count int64
	if err := pool.QueryRow(ctx, countMetricsSQL).Scan(&count); err != nil {
		return 0, fmt.Errorf("count daily metrics: %w", err)
	}
	return count, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

func floatArg(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

var _ MetricsStore = (*Store)(nil)
