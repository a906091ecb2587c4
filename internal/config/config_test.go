package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Server.Port = 0
	cfg.Sim.Capital = -1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "server: port")
	assert.Contains(t, err.Error(), "sim: capital")
}

func TestValidateBinanceRequiresWsHost(t *testing.T) {
	cfg := Defaults()
	cfg.Feed.Source = "binance"
	cfg.Feed.WsHost = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ws_host")
}

func TestValidatePostgresDSNSkipsHostChecks(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Enabled = true
	cfg.Postgres.DSN = "postgres://user:pass@db:5432/stratohub"
	cfg.Postgres.Host = ""

	require.NoError(t, cfg.Validate())
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeTempConfig(t, `
mode = "server"
log_level = "debug"

[server]
port = 9001

[feed]
source = "sim"
symbols = ["SOLUSDT"]
tick_interval = "250ms"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, []string{"SOLUSDT"}, cfg.Feed.Symbols)
	assert.Equal(t, 250*time.Millisecond, cfg.Feed.TickInterval.Duration)

	// Untouched sections keep their defaults.
	assert.Equal(t, 0.25, cfg.Sizer.MaxKellyFraction)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	path := writeTempConfig(t, `
[server]
port = 9001
`)

	t.Setenv("STRATO_SERVER_PORT", "9002")
	t.Setenv("STRATO_FEED_SYMBOLS", "BTCUSDT, DOGEUSDT")
	t.Setenv("STRATO_REDIS_ENABLED", "true")
	t.Setenv("STRATO_ROUTER_IDLE_RECHECK", "2s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9002, cfg.Server.Port)
	assert.Equal(t, []string{"BTCUSDT", "DOGEUSDT"}, cfg.Feed.Symbols)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Router.IdleRecheck.Duration)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}

func TestDurationRoundTrip(t *testing.T) {
	var d duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration)

	out, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "1m30s", string(out))

	require.Error(t, d.UnmarshalText([]byte("not-a-duration")))
}
