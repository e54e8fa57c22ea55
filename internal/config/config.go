package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store       StoreConfig       `yaml:"store" mapstructure:"store"`
	FullContact FullContactConfig `yaml:"fullcontact" mapstructure:"fullcontact"`
	Batch       BatchConfig       `yaml:"batch" mapstructure:"batch"`
	Log         LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the customer store backend.
type StoreConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	URI        string `yaml:"uri" mapstructure:"uri"`
	Database   string `yaml:"database" mapstructure:"database"`
	Collection string `yaml:"collection" mapstructure:"collection"`
	MaxConns   int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// FullContactConfig holds person-match API settings.
type FullContactConfig struct {
	Endpoint          string   `yaml:"endpoint" mapstructure:"endpoint"`
	Token             string   `yaml:"token" mapstructure:"token"`
	Packages          []string `yaml:"packages" mapstructure:"packages"`
	TimeoutSecs       int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSecond float64  `yaml:"requests_per_second" mapstructure:"requests_per_second"`
}

// BatchConfig configures CSV input and per-record pacing.
type BatchConfig struct {
	InputPath     string `yaml:"input_path" mapstructure:"input_path"`
	Delimiter     string `yaml:"delimiter" mapstructure:"delimiter"`
	ProgressEvery int    `yaml:"progress_every" mapstructure:"progress_every"`
	DelayMillis   int    `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional; existing environment variables win.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "mongo")
	v.SetDefault("store.uri", "mongodb://localhost:27017")
	v.SetDefault("store.database", "customers")
	v.SetDefault("store.collection", "customers")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("fullcontact.endpoint", "https://api.fullcontact.com/v3/person.enrich")
	v.SetDefault("fullcontact.packages", []string{"individual", "demographics", "location", "household"})
	v.SetDefault("fullcontact.token", "")
	v.SetDefault("fullcontact.timeout_secs", 30)
	v.SetDefault("fullcontact.requests_per_second", 0)
	v.SetDefault("batch.input_path", "customers.csv")
	v.SetDefault("batch.delimiter", ",")
	v.SetDefault("batch.progress_every", 100)
	v.SetDefault("batch.delay_ms", 1000)
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

// Validate checks that the fields required by the given command mode are set.
// Modes: "update", "enrich", "report", "export", "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch mode {
	case "update", "report", "export", "migrate":
		errs = append(errs, c.validateStore()...)
	case "enrich":
		errs = append(errs, c.validateStore()...)
		if c.FullContact.Token == "" {
			errs = append(errs, "fullcontact.token is required (ENRICH_FULLCONTACT_TOKEN)")
		}
		if c.FullContact.Endpoint == "" {
			errs = append(errs, "fullcontact.endpoint is required")
		}
		if c.FullContact.RequestsPerSecond < 0 {
			errs = append(errs, "fullcontact.requests_per_second must be >= 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Batch.ProgressEvery <= 0 {
		errs = append(errs, "batch.progress_every must be > 0")
	}
	if c.Batch.DelayMillis < 0 {
		errs = append(errs, "batch.delay_ms must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "mongo":
		if c.Store.URI == "" {
			errs = append(errs, "store.uri is required (ENRICH_STORE_URI)")
		}
		if c.Store.Database == "" {
			errs = append(errs, "store.database is required")
		}
		if c.Store.Collection == "" {
			errs = append(errs, "store.collection is required")
		}
	case "postgres", "sqlite":
		if c.Store.URI == "" {
			errs = append(errs, "store.uri is required (ENRICH_STORE_URI)")
		}
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q is not supported (mongo, postgres, sqlite)", c.Store.Driver))
	}
	return errs
}

// DelimiterRune returns the configured CSV delimiter, defaulting to ','.
func (b BatchConfig) DelimiterRune() rune {
	if b.Delimiter == "" {
		return ','
	}
	if b.Delimiter == `\t` || b.Delimiter == "tab" {
		return '\t'
	}
	return []rune(b.Delimiter)[0]
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
