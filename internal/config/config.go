package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"btc-market-pulse/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Collector CollectorConfig `mapstructure:"collector"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// SnapshotConfig locates the persisted merged output.
type SnapshotConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig encapsulates the optional PostgreSQL archive.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CollectorConfig governs alignment and accumulation.
type CollectorConfig struct {
	ToleranceDays int `mapstructure:"tolerance_days"`
	MaxHistory    int `mapstructure:"max_history"`
}

// SourcesConfig groups per-source connectivity.
type SourcesConfig struct {
	CoinGecko CoinGeckoConfig `mapstructure:"coingecko"`
	FearGreed FearGreedConfig `mapstructure:"feargreed"`
	VIX       VIXConfig       `mapstructure:"vix"`
	PutCall   PutCallConfig   `mapstructure:"putcall"`
	UserAgent string          `mapstructure:"user_agent"`
}

// CoinGeckoConfig covers the reference price source.
type CoinGeckoConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	VsCurrency     string        `mapstructure:"vs_currency"`
	LookbackDays   int           `mapstructure:"lookback_days"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// FearGreedConfig covers the sentiment index source.
type FearGreedConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	LookbackDays   int           `mapstructure:"lookback_days"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// VIXConfig covers the volatility index source.
type VIXConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Symbol         string        `mapstructure:"symbol"`
	Range          string        `mapstructure:"range"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// PutCallConfig covers the options open-interest source.
type PutCallConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Symbol         string        `mapstructure:"symbol"`
	MaxExpirations int           `mapstructure:"max_expirations"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// SchedulerConfig governs the daemon collection cadence.
type SchedulerConfig struct {
	Interval     time.Duration `mapstructure:"interval"`
	AlignToStart bool          `mapstructure:"align_to_start"`
	StartupDelay time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines sentiment alert thresholds and routing.
type AlertingConfig struct {
	Enabled        bool           `mapstructure:"enabled"`
	FearThreshold  float64        `mapstructure:"fear_threshold"`
	GreedThreshold float64        `mapstructure:"greed_threshold"`
	Telegram       TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes the Telegram delivery channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BTCPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "btcpulse")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("snapshot.path", "data.json")

	v.SetDefault("collector.tolerance_days", 3)
	v.SetDefault("collector.max_history", 365)

	v.SetDefault("sources.user_agent", "btcpulse/1.0")
	v.SetDefault("sources.coingecko.base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("sources.coingecko.vs_currency", "usd")
	v.SetDefault("sources.coingecko.lookback_days", 365)
	v.SetDefault("sources.coingecko.request_timeout", "15s")
	v.SetDefault("sources.feargreed.base_url", "https://api.alternative.me")
	v.SetDefault("sources.feargreed.lookback_days", 365)
	v.SetDefault("sources.feargreed.request_timeout", "15s")
	v.SetDefault("sources.vix.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("sources.vix.symbol", "^VIX")
	v.SetDefault("sources.vix.range", "1y")
	v.SetDefault("sources.vix.request_timeout", "15s")
	v.SetDefault("sources.putcall.base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("sources.putcall.symbol", "BITO")
	v.SetDefault("sources.putcall.max_expirations", 0)
	v.SetDefault("sources.putcall.request_timeout", "20s")

	v.SetDefault("scheduler.interval", "24h")
	v.SetDefault("scheduler.align_to_start", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.fear_threshold", 20.0)
	v.SetDefault("alerting.greed_threshold", 80.0)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Snapshot.Path == "" {
		return fmt.Errorf("snapshot.path must not be empty")
	}
	if c.Collector.ToleranceDays < 0 {
		return fmt.Errorf("collector.tolerance_days cannot be negative")
	}
	if c.Collector.MaxHistory <= 0 {
		return fmt.Errorf("collector.max_history must be greater than zero")
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.FearThreshold > c.Alerting.GreedThreshold {
		return fmt.Errorf("alerting.fear_threshold cannot exceed alerting.greed_threshold")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required when telegram is enabled")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required when telegram is enabled")
		}
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
