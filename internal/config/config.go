// Package config loads RecipeBox settings from the environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr     string `env:"RECIPEBOX_ADDR" envDefault:":8080"`
	LogLevel string `env:"RECIPEBOX_LOG_LEVEL" envDefault:"info"`

	// DBPath selects the SQLite file; empty keeps recipes in memory only.
	DBPath     string `env:"RECIPEBOX_DB_PATH"`
	QuotaBytes int    `env:"RECIPEBOX_QUOTA_BYTES" envDefault:"5242880"`

	MetricsEnabled bool   `env:"RECIPEBOX_METRICS_ENABLED" envDefault:"false"`
	MetricsToken   string `env:"RECIPEBOX_METRICS_TOKEN"`

	WriteLimitPerMin int `env:"RECIPEBOX_WRITE_LIMIT_PER_MIN" envDefault:"60"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.QuotaBytes <= 0 {
		return Config{}, fmt.Errorf("RECIPEBOX_QUOTA_BYTES must be positive, got %d", cfg.QuotaBytes)
	}
	if cfg.WriteLimitPerMin < 0 {
		return Config{}, fmt.Errorf("RECIPEBOX_WRITE_LIMIT_PER_MIN must not be negative, got %d", cfg.WriteLimitPerMin)
	}
	return cfg, nil
}
