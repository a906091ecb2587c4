// Package config defines the top-level configuration for the trading hub and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by STRATO_* environment variables.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	Feed     FeedConfig     `toml:"feed"`
	Router   RouterConfig   `toml:"router"`
	Sizer    SizerConfig    `toml:"sizer"`
	Sim      SimConfig      `toml:"sim"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// FeedConfig holds market data feed parameters.
type FeedConfig struct {
	// Source selects the price feed: "sim" or "binance".
	Source       string   `toml:"source"`
	Symbols      []string `toml:"symbols"`
	WsHost       string   `toml:"ws_host"`
	HistorySize  int      `toml:"history_size"`
	TickInterval duration `toml:"tick_interval"`
	Seed         int64    `toml:"seed"`
}

// RouterConfig holds smart order router loop timings.
type RouterConfig struct {
	IdleRecheck  duration `toml:"idle_recheck"`
	AttemptDelay duration `toml:"attempt_delay"`
	Seed         int64    `toml:"seed"`
}

// SizerConfig holds position sizing risk parameters.
type SizerConfig struct {
	MaxKellyFraction      float64 `toml:"max_kelly_fraction"`
	ExpectedLoss          float64 `toml:"expected_loss"`
	BaselineVolatility    float64 `toml:"baseline_volatility"`
	MaxSinglePositionRisk float64 `toml:"max_single_position_risk"`
	MaxPortfolioVAR       float64 `toml:"max_portfolio_var"`
	ConfidenceLevel       float64 `toml:"confidence_level"`
}

// SimConfig holds execution simulator account parameters.
type SimConfig struct {
	Capital     float64 `toml:"capital"`
	RiskPercent float64 `toml:"risk_percent"`
	Seed        int64   `toml:"seed"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Postgres: PostgresConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "stratohub",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		Feed: FeedConfig{
			Source:       "sim",
			Symbols:      []string{"BTCUSDT", "ETHUSDT"},
			WsHost:       "wss://stream.binance.com:9443/ws",
			HistorySize:  1000,
			TickInterval: duration{time.Second},
			Seed:         1,
		},
		Router: RouterConfig{
			IdleRecheck:  duration{time.Second},
			AttemptDelay: duration{500 * time.Millisecond},
			Seed:         1,
		},
		Sizer: SizerConfig{
			MaxKellyFraction:      0.25,
			ExpectedLoss:          0.015,
			BaselineVolatility:    0.02,
			MaxSinglePositionRisk: 0.02,
			MaxPortfolioVAR:       0.05,
			ConfidenceLevel:       0.95,
		},
		Sim: SimConfig{
			Capital:     100_000,
			RiskPercent: 0.01,
			Seed:        1,
		},
		Notify: NotifyConfig{
			Events: []string{"execution_completed", "execution_failed", "execution_cancelled"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"live":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validFeedSources enumerates the accepted values for FeedConfig.Source.
var validFeedSources = map[string]bool{
	"sim":     true,
	"binance": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, live)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 {
			errs = append(errs, "postgres: pool_min_conns must be >= 0")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// Feed
	if !validFeedSources[strings.ToLower(c.Feed.Source)] {
		errs = append(errs, fmt.Sprintf("feed: unknown source %q (valid: sim, binance)", c.Feed.Source))
	}
	if len(c.Feed.Symbols) == 0 {
		errs = append(errs, "feed: at least one symbol must be configured")
	}
	if strings.ToLower(c.Feed.Source) == "binance" && c.Feed.WsHost == "" {
		errs = append(errs, "feed: ws_host must not be empty for binance source")
	}
	if c.Feed.HistorySize < 1 {
		errs = append(errs, "feed: history_size must be >= 1")
	}

	// Router
	if c.Router.IdleRecheck.Duration <= 0 {
		errs = append(errs, "router: idle_recheck must be positive")
	}
	if c.Router.AttemptDelay.Duration <= 0 {
		errs = append(errs, "router: attempt_delay must be positive")
	}

	// Sizer
	if c.Sizer.MaxKellyFraction <= 0 || c.Sizer.MaxKellyFraction > 1 {
		errs = append(errs, "sizer: max_kelly_fraction must be in (0, 1]")
	}
	if c.Sizer.ExpectedLoss <= 0 {
		errs = append(errs, "sizer: expected_loss must be > 0")
	}
	if c.Sizer.BaselineVolatility <= 0 {
		errs = append(errs, "sizer: baseline_volatility must be > 0")
	}
	if c.Sizer.MaxSinglePositionRisk <= 0 {
		errs = append(errs, "sizer: max_single_position_risk must be > 0")
	}
	if c.Sizer.MaxPortfolioVAR <= 0 {
		errs = append(errs, "sizer: max_portfolio_var must be > 0")
	}
	if c.Sizer.ConfidenceLevel < 0.5 || c.Sizer.ConfidenceLevel >= 1 {
		errs = append(errs, "sizer: confidence_level must be in [0.5, 1)")
	}

	// Sim
	if c.Sim.Capital <= 0 {
		errs = append(errs, "sim: capital must be > 0")
	}
	if c.Sim.RiskPercent <= 0 || c.Sim.RiskPercent > 1 {
		errs = append(errs, "sim: risk_percent must be in (0, 1]")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
