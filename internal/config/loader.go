package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies STRATO_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known STRATO_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setBool(&cfg.Server.Enabled, "STRATO_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "STRATO_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "STRATO_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "STRATO_SERVER_CORS_ORIGINS")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "STRATO_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "STRATO_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "STRATO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "STRATO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "STRATO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "STRATO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "STRATO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "STRATO_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "STRATO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "STRATO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "STRATO_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "STRATO_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "STRATO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "STRATO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "STRATO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "STRATO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "STRATO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "STRATO_REDIS_TLS_ENABLED")

	// ── Feed ──
	setStr(&cfg.Feed.Source, "STRATO_FEED_SOURCE")
	setStringSlice(&cfg.Feed.Symbols, "STRATO_FEED_SYMBOLS")
	setStr(&cfg.Feed.WsHost, "STRATO_FEED_WS_HOST")
	setInt(&cfg.Feed.HistorySize, "STRATO_FEED_HISTORY_SIZE")
	setDuration(&cfg.Feed.TickInterval, "STRATO_FEED_TICK_INTERVAL")
	setInt64(&cfg.Feed.Seed, "STRATO_FEED_SEED")

	// ── Router ──
	setDuration(&cfg.Router.IdleRecheck, "STRATO_ROUTER_IDLE_RECHECK")
	setDuration(&cfg.Router.AttemptDelay, "STRATO_ROUTER_ATTEMPT_DELAY")
	setInt64(&cfg.Router.Seed, "STRATO_ROUTER_SEED")

	// ── Sizer ──
	setFloat64(&cfg.Sizer.MaxKellyFraction, "STRATO_SIZER_MAX_KELLY_FRACTION")
	setFloat64(&cfg.Sizer.ExpectedLoss, "STRATO_SIZER_EXPECTED_LOSS")
	setFloat64(&cfg.Sizer.BaselineVolatility, "STRATO_SIZER_BASELINE_VOLATILITY")
	setFloat64(&cfg.Sizer.MaxSinglePositionRisk, "STRATO_SIZER_MAX_SINGLE_POSITION_RISK")
	setFloat64(&cfg.Sizer.MaxPortfolioVAR, "STRATO_SIZER_MAX_PORTFOLIO_VAR")
	setFloat64(&cfg.Sizer.ConfidenceLevel, "STRATO_SIZER_CONFIDENCE_LEVEL")

	// ── Sim ──
	setFloat64(&cfg.Sim.Capital, "STRATO_SIM_CAPITAL")
	setFloat64(&cfg.Sim.RiskPercent, "STRATO_SIM_RISK_PERCENT")
	setInt64(&cfg.Sim.Seed, "STRATO_SIM_SEED")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "STRATO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "STRATO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "STRATO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "STRATO_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "STRATO_MODE")
	setStr(&cfg.LogLevel, "STRATO_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
