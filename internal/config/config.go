// Package config loads and validates tagtally configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	Batch   BatchConfig   `mapstructure:"batch"`
	Store   StoreConfig   `mapstructure:"store"`
	Export  ExportConfig  `mapstructure:"export"`
	Ops     OpsConfig     `mapstructure:"ops"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// BatchConfig governs the worker pool and per-request behavior.
type BatchConfig struct {
	Workers        int    `mapstructure:"workers"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	TargetTag      string `mapstructure:"target_tag"`
}

// StoreConfig selects and configures the outcome store backend.
type StoreConfig struct {
	// Driver is one of "sqlite", "postgres", "memory".
	Driver string `mapstructure:"driver"`
	// Path is the sqlite database file.
	Path string `mapstructure:"path"`
	// DSN configures the postgres driver.
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// ExportConfig controls the snapshot written after a run.
type ExportConfig struct {
	CSVPath string `mapstructure:"csv_path"`
}

// OpsConfig toggles the operational HTTP endpoint exposed during a run.
type OpsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TAGTALLY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("batch.workers", 10)
	v.SetDefault("batch.timeout_seconds", 10)
	v.SetDefault("batch.user_agent", "Mozilla/5.0 (compatible; WebScraper/1.0)")
	v.SetDefault("batch.target_tag", "script")
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "results.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("export.csv_path", "results.csv")
	v.SetDefault("ops.enabled", false)
	v.SetDefault("ops.port", 9090)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits. Invalid worker
// counts and timeouts are configuration errors caught here, before any
// dispatch happens.
func (c Config) Validate() error {
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("batch.workers must be > 0")
	}
	if c.Batch.TimeoutSeconds <= 0 {
		return fmt.Errorf("batch.timeout_seconds must be > 0")
	}
	if c.Batch.TargetTag == "" {
		return fmt.Errorf("batch.target_tag must be set")
	}
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must be set for the sqlite driver")
		}
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn must be set for the postgres driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.Export.CSVPath == "" {
		return fmt.Errorf("export.csv_path must be set")
	}
	if c.Ops.Enabled && c.Ops.Port <= 0 {
		return fmt.Errorf("ops.port must be > 0 when ops is enabled")
	}
	return nil
}

// Timeout converts the whole-second request budget into a duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.Batch.TimeoutSeconds) * time.Second
}
