package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if !cfg.Cache.Enabled {
		t.Error("expected cache enabled by default")
	}
	if cfg.Cache.TTLDays != 30 {
		t.Errorf("expected 30 day TTL, got %d", cfg.Cache.TTLDays)
	}
	if cfg.Cache.MaxBudgetUnits != 500 {
		t.Errorf("expected 500 budget units, got %d", cfg.Cache.MaxBudgetUnits)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("TEST_DB_DIR", "/tmp/sf")

	content := `
db_path: "${TEST_DB_DIR}/main.db"
log_level: debug
cache:
  enabled: false
  ttl_days: 7
  max_budget_units: 100
genlog:
  enabled: true
  db_path: "${TEST_DB_DIR}/genlog.db"
  retention_days: 14
`
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "/tmp/sf/main.db" {
		t.Errorf("env var not expanded: got %s", cfg.DBPath)
	}
	if cfg.Cache.Enabled {
		t.Error("expected cache disabled")
	}
	if cfg.Cache.TTLDays != 7 {
		t.Errorf("expected 7 day TTL, got %d", cfg.Cache.TTLDays)
	}
	if cfg.GenLog.RetentionDays != 14 {
		t.Errorf("expected 14 retention days, got %d", cfg.GenLog.RetentionDays)
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidateRejectsBadTTL(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero ttl", func(c *Config) { c.Cache.TTLDays = 0 }},
		{"negative ttl", func(c *Config) { c.Cache.TTLDays = -1 }},
		{"zero budget", func(c *Config) { c.Cache.MaxBudgetUnits = 0 }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero retention", func(c *Config) { c.GenLog.RetentionDays = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}
