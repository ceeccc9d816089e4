package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snake.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load defaults: %v", err)
	}
	if cfg.Sync.From != "online" || cfg.Sync.To != "target" || cfg.Sync.Every != 100 {
		t.Fatalf("unexpected sync defaults: %+v", cfg.Sync)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[train]
episodes = 3
grid_width = 8

[sync]
every = 10
from = ""
to = "target"
step_start = true

[history]
store = "sqlite"
path = "runs.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Train.Episodes != 3 || cfg.Train.GridWidth != 8 || cfg.Train.GridHeight != 20 {
		t.Fatalf("unexpected train config: %+v", cfg.Train)
	}
	if cfg.Sync.From != "" || !cfg.Sync.AtStepStart || cfg.Sync.Every != 10 {
		t.Fatalf("unexpected sync config: %+v", cfg.Sync)
	}
	if cfg.History.Store != "sqlite" || cfg.History.Path != "runs.db" {
		t.Fatalf("unexpected history config: %+v", cfg.History)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "[sync]\nevery = 5\nperiod = 3\n")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown keys") {
		t.Fatalf("expected unknown key error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero interval", func(c *Config) { c.Sync.Every = 0 }, "sync.every"},
		{"same scopes", func(c *Config) { c.Sync.From = "target" }, "must differ"},
		{"sqlite without path", func(c *Config) { c.History.Store = "sqlite" }, "history.path"},
		{"unknown store", func(c *Config) { c.History.Store = "redis" }, "unsupported"},
		{"tiny replay", func(c *Config) { c.Train.ReplaySize = 1 }, "replay_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
