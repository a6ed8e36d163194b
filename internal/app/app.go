package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"btc-market-pulse/internal/alerting"
	"btc-market-pulse/internal/collector"
	"btc-market-pulse/internal/config"
	"btc-market-pulse/internal/scheduler"
	"btc-market-pulse/internal/snapshot"
	"btc-market-pulse/internal/source"
	"btc-market-pulse/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSources() (price, sentiment, vol source.SeriesSource, putcall source.ScalarSource) {
	srcCfg := a.Config.Sources

	price = source.NewCoinGecko(source.CoinGeckoOptions{
		BaseURL:      srcCfg.CoinGecko.BaseURL,
		VsCurrency:   srcCfg.CoinGecko.VsCurrency,
		LookbackDays: srcCfg.CoinGecko.LookbackDays,
		Timeout:      srcCfg.CoinGecko.RequestTimeout,
		UserAgent:    srcCfg.UserAgent,
	}, a.Logger)

	sentiment = source.NewFearGreed(source.FearGreedOptions{
		BaseURL:      srcCfg.FearGreed.BaseURL,
		LookbackDays: srcCfg.FearGreed.LookbackDays,
		Timeout:      srcCfg.FearGreed.RequestTimeout,
		UserAgent:    srcCfg.UserAgent,
	}, a.Logger)

	vol = source.NewVIX(source.VIXOptions{
		BaseURL:   srcCfg.VIX.BaseURL,
		Symbol:    srcCfg.VIX.Symbol,
		Range:     srcCfg.VIX.Range,
		Timeout:   srcCfg.VIX.RequestTimeout,
		UserAgent: srcCfg.UserAgent,
	}, a.Logger)

	putcall = source.NewPutCall(source.PutCallOptions{
		BaseURL:        srcCfg.PutCall.BaseURL,
		Symbol:         srcCfg.PutCall.Symbol,
		MaxExpirations: srcCfg.PutCall.MaxExpirations,
		Timeout:        srcCfg.PutCall.RequestTimeout,
		UserAgent:      srcCfg.UserAgent,
	}, a.Logger)

	return price, sentiment, vol, putcall
}

func (a *App) newSnapshotStore() snapshot.Store {
	return snapshot.NewFileStore(a.Config.Snapshot.Path, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled || !a.Config.Alerting.Telegram.Enabled {
		return nil
	}
	cfg := a.Config.Alerting.Telegram
	return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
}

// openArchive returns the Postgres archive, or nil when no DSN is
// configured.
func (a *App) openArchive(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	return store, store.Close, nil
}

func (a *App) newCollector(ctx context.Context) (*collector.Collector, func(), error) {
	price, sentiment, vol, putcall := a.newSources()

	archive, closeArchive, err := a.openArchive(ctx)
	if err != nil {
		return nil, nil, err
	}
	if archive == nil {
		a.Logger.Debug().Msg("database.dsn not configured; archive disabled")
	}

	var metricsStore storage.MetricsStore
	if archive != nil {
		metricsStore = archive
	}

	opts := collector.Options{
		ToleranceDays:  a.Config.Collector.ToleranceDays,
		MaxHistory:     a.Config.Collector.MaxHistory,
		FearThreshold:  a.Config.Alerting.FearThreshold,
		GreedThreshold: a.Config.Alerting.GreedThreshold,
	}

	c := collector.New(opts, price, sentiment, vol, putcall, a.newSnapshotStore(), metricsStore, a.newNotifier(), a.Logger)
	return c, closeArchive, nil
}

// Collect executes a single collection run.
func (a *App) Collect(ctx context.Context) error {
	c, closeArchive, err := a.newCollector(ctx)
	if err != nil {
		return err
	}
	if closeArchive != nil {
		defer closeArchive()
	}

	snap, err := c.Collect(ctx)
	if err != nil {
		return err
	}

	if n := len(snap.Dates); n > 0 {
		a.Logger.Info().
			Str("from", string(snap.Dates[0])).
			Str("to", string(snap.Dates[n-1])).
			Int("days", n).
			Int("pcr_window", len(snap.PCRDates)).
			Msg("collection run complete")
	}
	return nil
}

// Run executes the long-running daily collection daemon.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c, closeArchive, err := a.newCollector(ctx)
	if err != nil {
		return err
	}
	if closeArchive != nil {
		defer closeArchive()
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Scheduler.Interval).Msg("starting collection daemon")
	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		_, err := c.Collect(ctx)
		return err
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("daemon terminated with error")
		return err
	}

	a.Logger.Info().Msg("collection daemon stopped")
	return nil
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// ExportOptions hold parameters for exporting the merged series.
type ExportOptions struct {
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
