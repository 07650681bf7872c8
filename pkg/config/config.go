package config

import (
	"fmt"
	"os"

	"github.com/sessionforge/sessionforge/pkg/models"
	"gopkg.in/yaml.v3"
)

// Config holds all sessionforge configuration.
type Config struct {
	DBPath    string              `yaml:"db_path"`
	LogLevel  string              `yaml:"log_level"`
	Cache     CacheConfig         `yaml:"cache"`
	Analytics AnalyticsConfig     `yaml:"analytics"`
	GenLog    models.GenLogConfig `yaml:"genlog"`
}

// AnalyticsConfig controls the cache hit analytics sink.
type AnalyticsConfig struct {
	Enabled bool   `yaml:"enabled"`
	DBPath  string `yaml:"db_path"`
}

// CacheConfig controls the generation result cache. All values are fixed at
// process start; the engine never re-reads them.
type CacheConfig struct {
	Enabled        bool `yaml:"enabled"`
	TTLDays        int  `yaml:"ttl_days"`
	MaxBudgetUnits int  `yaml:"max_budget_units"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath:   "sessionforge.db",
		LogLevel: "info",
		Cache: CacheConfig{
			Enabled:        true,
			TTLDays:        30,
			MaxBudgetUnits: 500,
		},
		Analytics: AnalyticsConfig{
			Enabled: true,
			DBPath:  "sessionforge_analytics.db",
		},
		GenLog: models.GenLogConfig{
			Enabled:       true,
			DBPath:        "sessionforge_genlog.db",
			RetentionDays: 90,
		},
	}
}

// Load reads a YAML config file, expands environment variables, and
// validates the result. Configuration errors surface here, at startup,
// never at request time.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks invariants that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path must not be empty")
	}
	if c.Cache.TTLDays <= 0 {
		return fmt.Errorf("cache.ttl_days must be positive, got %d", c.Cache.TTLDays)
	}
	if c.Cache.MaxBudgetUnits <= 0 {
		return fmt.Errorf("cache.max_budget_units must be positive, got %d", c.Cache.MaxBudgetUnits)
	}
	if c.Analytics.Enabled && c.Analytics.DBPath == "" {
		return fmt.Errorf("analytics.db_path must not be empty when analytics is enabled")
	}
	if c.GenLog.Enabled && c.GenLog.RetentionDays <= 0 {
		return fmt.Errorf("genlog.retention_days must be positive, got %d", c.GenLog.RetentionDays)
	}
	return nil
}
