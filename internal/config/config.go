package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	History   HistoryConfig   `yaml:"history" mapstructure:"history"`
	API       APIConfig       `yaml:"api" mapstructure:"api"`
	Analytics AnalyticsConfig `yaml:"analytics" mapstructure:"analytics"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// HistoryConfig selects where prediction history is read from.
type HistoryConfig struct {
	Source              string `yaml:"source" mapstructure:"source"` // api or store
	Limit               int    `yaml:"limit" mapstructure:"limit"`
	RefreshIntervalSecs int    `yaml:"refresh_interval_secs" mapstructure:"refresh_interval_secs"`
}

// RefreshInterval returns the background refresh period. Zero disables it.
func (h HistoryConfig) RefreshInterval() time.Duration {
	if h.RefreshIntervalSecs <= 0 {
		return 0
	}
	return time.Duration(h.RefreshIntervalSecs) * time.Second
}

// APIConfig holds the prediction service client settings.
type APIConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Token       string  `yaml:"token" mapstructure:"token"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	MaxAttempts int     `yaml:"max_attempts" mapstructure:"max_attempts"`
}

// AnalyticsConfig tunes chart projection.
type AnalyticsConfig struct {
	AxisMax float64 `yaml:"axis_max" mapstructure:"axis_max"`
	Clamp   bool    `yaml:"clamp" mapstructure:"clamp"`
	// Timezone names the IANA zone trend dates are labelled in.
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// Location resolves Timezone. Empty means UTC.
func (a AnalyticsConfig) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, eris.Wrapf(err, "config: load timezone %q", a.Timezone)
	}
	return loc, nil
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GRADELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "gradelens.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("history.source", "api")
	v.SetDefault("history.limit", 20)
	v.SetDefault("history.refresh_interval_secs", 60)
	v.SetDefault("api.base_url", "http://localhost:8000/api")
	v.SetDefault("api.timeout_secs", 15)
	v.SetDefault("api.rate_per_sec", 5.0)
	v.SetDefault("api.max_attempts", 3)
	v.SetDefault("analytics.axis_max", 20.0)
	v.SetDefault("analytics.clamp", false)
	v.SetDefault("analytics.timezone", "UTC")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the fields a command mode depends on. Modes are
// "serve", "report" and "history".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		problems = append(problems, c.validateHistory()...)
	case "report":
		problems = append(problems, c.validateHistory()...)
	case "history":
		problems = append(problems, c.validateStore()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Analytics.AxisMax <= 0 {
		problems = append(problems, "analytics.axis_max must be > 0")
	}
	if _, err := c.Analytics.Location(); err != nil {
		problems = append(problems, "analytics.timezone must be an IANA zone name")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) validateHistory() []string {
	var problems []string
	if c.History.Limit < 0 {
		problems = append(problems, "history.limit must be >= 0")
	}
	switch c.History.Source {
	case "api":
		if c.API.BaseURL == "" {
			problems = append(problems, "api.base_url is required when history.source is api")
		}
		if c.API.MaxAttempts < 1 {
			problems = append(problems, "api.max_attempts must be >= 1")
		}
	case "store":
		problems = append(problems, c.validateStore()...)
	default:
		problems = append(problems, "history.source must be api or store")
	}
	return problems
}

func (c *Config) validateStore() []string {
	var problems []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}
	return problems
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
