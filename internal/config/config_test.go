package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "gradelens.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "api", cfg.History.Source)
	assert.Equal(t, 20, cfg.History.Limit)
	assert.Equal(t, time.Minute, cfg.History.RefreshInterval())
	assert.Equal(t, "http://localhost:8000/api", cfg.API.BaseURL)
	assert.Equal(t, 15, cfg.API.TimeoutSecs)
	assert.InDelta(t, 5.0, cfg.API.RatePerSec, 0.001)
	assert.Equal(t, 3, cfg.API.MaxAttempts)
	assert.InDelta(t, 20.0, cfg.Analytics.AxisMax, 0.001)
	assert.False(t, cfg.Analytics.Clamp)
	assert.Equal(t, "UTC", cfg.Analytics.Timezone)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/gradelens
history:
  source: store
  limit: 50
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://dashboard.example.com
analytics:
  clamp: true
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "store", cfg.History.Source)
	assert.Equal(t, 50, cfg.History.Limit)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://dashboard.example.com"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Analytics.Clamp)
	// Defaults still apply for unset values
	assert.InDelta(t, 20.0, cfg.Analytics.AxisMax, 0.001)
	assert.Equal(t, 3, cfg.API.MaxAttempts)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("GRADELENS_STORE_DRIVER", "postgres")
	t.Setenv("GRADELENS_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("GRADELENS_SERVER_PORT", "3000")
	t.Setenv("GRADELENS_HISTORY_REFRESH_INTERVAL_SECS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Zero(t, cfg.History.RefreshInterval())
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = "gradelens.db"
	cfg.History.Source = "api"
	cfg.History.Limit = 20
	cfg.API.BaseURL = "http://localhost:8000/api"
	cfg.API.MaxAttempts = 3
	cfg.Analytics.AxisMax = 20
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"serve", "report", "history"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// report does not bind a port
	assert.NoError(t, cfg.Validate("report"))
}

func TestValidate_APISourceNeedsBaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.API.BaseURL = ""
	cfg.API.MaxAttempts = 0

	err := cfg.Validate("report")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "api.base_url is required")
	assert.Contains(t, err.Error(), "api.max_attempts must be >= 1")
}

func TestValidate_StoreSource(t *testing.T) {
	cfg := validDefaults()
	cfg.History.Source = "store"
	cfg.API.BaseURL = ""
	cfg.Store.Driver = "mysql"
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver must be sqlite or postgres")
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidate_UnknownSource(t *testing.T) {
	cfg := validDefaults()
	cfg.History.Source = "ftp"

	err := cfg.Validate("report")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "history.source must be api or store")
}

func TestValidate_AxisMax(t *testing.T) {
	cfg := validDefaults()
	cfg.Analytics.AxisMax = 0

	err := cfg.Validate("report")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "analytics.axis_max must be > 0")
}

func TestValidate_Timezone(t *testing.T) {
	cfg := validDefaults()
	cfg.Analytics.Timezone = "Mars/Olympus_Mons"

	err := cfg.Validate("report")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "analytics.timezone must be an IANA zone name")
}

func TestAnalyticsLocation(t *testing.T) {
	loc, err := AnalyticsConfig{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)

	loc, err = AnalyticsConfig{Timezone: "Local"}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = AnalyticsConfig{Timezone: "Nowhere/Special"}.Location()
	assert.Error(t, err)
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
