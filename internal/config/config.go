// Package config loads ledger settings from an optional YAML file, the
// environment (PLANTLEDGER_ prefix) and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// PLANTLEDGER_STORAGE_DRIVER for storage.driver.
const EnvPrefix = "PLANTLEDGER"

// Config is the root settings struct passed to constructors.
type Config struct {
	OrganizationName string        `mapstructure:"organization_name" yaml:"organization_name"`
	Storage          StorageConfig `mapstructure:"storage" yaml:"storage"`
	Blob             BlobConfig    `mapstructure:"blob" yaml:"blob"`
	Ledger           LedgerConfig  `mapstructure:"ledger" yaml:"ledger"`
	Logging          LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Metrics          MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver      string           `mapstructure:"driver" yaml:"driver"` // memory|sqlite|postgres|relational
	SQLitePath  string           `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	PostgresDSN string           `mapstructure:"postgres_dsn" yaml:"postgres_dsn"`
	Relational  RelationalConfig `mapstructure:"relational" yaml:"relational"`
}

// RelationalConfig configures the normalized gorm store.
type RelationalConfig struct {
	Dialect       string        `mapstructure:"dialect" yaml:"dialect"` // sqlite|mysql|postgres
	DSN           string        `mapstructure:"dsn" yaml:"dsn"`
	MaxOpenConns  int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	SlowThreshold time.Duration `mapstructure:"slow_threshold" yaml:"slow_threshold"`
}

// BlobConfig selects the image file backend.
type BlobConfig struct {
	Driver string   `mapstructure:"driver" yaml:"driver"` // fs|memory|s3
	FSRoot string   `mapstructure:"fs_root" yaml:"fs_root"`
	S3     S3Config `mapstructure:"s3" yaml:"s3"`
}

// S3Config holds bucket settings for the s3 blob driver.
type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	PathStyle       bool   `mapstructure:"path_style" yaml:"path_style"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"-"`
}

// LedgerConfig tunes ledger and reporting behavior.
type LedgerConfig struct {
	CodeRetries        int           `mapstructure:"code_retries" yaml:"code_retries"`
	SurvivalAgeDays    int           `mapstructure:"survival_age_days" yaml:"survival_age_days"`
	SurvivalMinRecords int           `mapstructure:"survival_min_records" yaml:"survival_min_records"`
	ReportCacheTTL     time.Duration `mapstructure:"report_cache_ttl" yaml:"report_cache_ttl"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // json|text
}

// MetricsConfig toggles the Prometheus recorder.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("organization_name", "")

	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.sqlite_path", "plantledger.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.relational.dialect", "sqlite")
	v.SetDefault("storage.relational.dsn", "plantledger_relational.db")
	v.SetDefault("storage.relational.max_open_conns", 0)
	v.SetDefault("storage.relational.slow_threshold", 200*time.Millisecond)

	v.SetDefault("blob.driver", "fs")
	v.SetDefault("blob.fs_root", "images")
	v.SetDefault("blob.s3.bucket", "")
	v.SetDefault("blob.s3.region", "us-east-1")
	v.SetDefault("blob.s3.endpoint", "")
	v.SetDefault("blob.s3.path_style", false)
	v.SetDefault("blob.s3.access_key_id", "")
	v.SetDefault("blob.s3.secret_access_key", "")

	v.SetDefault("ledger.code_retries", 5)
	v.SetDefault("ledger.survival_age_days", 90)
	v.SetDefault("ledger.survival_min_records", 5)
	v.SetDefault("ledger.report_cache_ttl", time.Minute)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "plantledger")
}

// Default returns the configuration produced by defaults alone.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return cfg
}

// Load reads configuration. An empty path searches for plantledger.yaml in
// the working directory and $HOME/.plantledger; a missing file is not an
// error. Environment variables override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("plantledger")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.plantledger")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("error validating settings: %w", err)
	}
	return cfg, nil
}

// Validate checks enumerated values and numeric bounds.
func (c Config) Validate() error {
	var problems []string
	switch c.Storage.Driver {
	case "memory", "sqlite", "postgres", "relational":
	default:
		problems = append(problems, fmt.Sprintf("storage.driver %q must be memory, sqlite, postgres or relational", c.Storage.Driver))
	}
	if c.Storage.Driver == "postgres" && c.Storage.PostgresDSN == "" {
		problems = append(problems, "storage.postgres_dsn is required for the postgres driver")
	}
	if c.Storage.Driver == "relational" {
		switch c.Storage.Relational.Dialect {
		case "sqlite", "mysql", "postgres":
		default:
			problems = append(problems, fmt.Sprintf("storage.relational.dialect %q must be sqlite, mysql or postgres", c.Storage.Relational.Dialect))
		}
	}
	switch c.Blob.Driver {
	case "fs", "memory":
	case "s3":
		if c.Blob.S3.Bucket == "" {
			problems = append(problems, "blob.s3.bucket is required for the s3 driver")
		}
	default:
		problems = append(problems, fmt.Sprintf("blob.driver %q must be fs, memory or s3", c.Blob.Driver))
	}
	if c.Ledger.CodeRetries < 1 {
		problems = append(problems, "ledger.code_retries must be at least 1")
	}
	if c.Ledger.SurvivalAgeDays < 0 {
		problems = append(problems, "ledger.survival_age_days must not be negative")
	}
	if c.Ledger.SurvivalMinRecords < 1 {
		problems = append(problems, "ledger.survival_min_records must be at least 1")
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		problems = append(problems, fmt.Sprintf("logging.format %q must be json or text", c.Logging.Format))
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}
