package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFullConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calldeck.yaml")

	yaml := `
listen:
  address: 127.0.0.1
  port: 9090
store:
  path: /var/lib/calldeck/records.json
webhook:
  url: https://crm.example.com/hooks/call-ended
  timeout_sec: 5
  retry_count: 1
dashboard:
  enabled: false
  brand: Acme Intake
log_level: debug
log_format: json
`
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Address != "127.0.0.1" || cfg.Listen.Port != 9090 {
		t.Errorf("listen = %+v", cfg.Listen)
	}
	if cfg.Store.Path != "/var/lib/calldeck/records.json" {
		t.Errorf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Webhook.URL != "https://crm.example.com/hooks/call-ended" {
		t.Errorf("webhook.url = %q", cfg.Webhook.URL)
	}
	if cfg.Webhook.TimeoutSec != 5 || cfg.Webhook.RetryCount != 1 {
		t.Errorf("webhook = %+v", cfg.Webhook)
	}
	if cfg.DashboardEnabled() {
		t.Error("dashboard should be disabled")
	}
	if cfg.Dashboard.Brand != "Acme Intake" {
		t.Errorf("dashboard.brand = %q", cfg.Dashboard.Brand)
	}
	if cfg.LogLevel != "debug" || cfg.LogFormat != "json" {
		t.Errorf("log settings = %q %q", cfg.LogLevel, cfg.LogFormat)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "calldeck.yaml")
	if err := os.WriteFile(path, []byte("log_level: info\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Listen.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Listen.Port)
	}
	if cfg.Store.Path != "data/calldeck.json" {
		t.Errorf("default store.path = %q", cfg.Store.Path)
	}
	if !cfg.DashboardEnabled() {
		t.Error("dashboard should default to enabled")
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("CALLDECK_TEST_DATA", "/srv/intake")

	dir := t.TempDir()
	path := filepath.Join(dir, "calldeck.yaml")
	if err := os.WriteFile(path, []byte("store:\n  path: ${CALLDECK_TEST_DATA}/records.json\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Store.Path != "/srv/intake/records.json" {
		t.Errorf("store.path = %q, want env-expanded path", cfg.Store.Path)
	}
}

func TestFindConfigExplicitMissing(t *testing.T) {
	if _, err := FindConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing explicit config")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults ok", func(c *Config) {}, false},
		{"bad port", func(c *Config) { c.Listen.Port = 70000 }, true},
		{"empty store path", func(c *Config) { c.Store.Path = "" }, true},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, true},
		{"json log format", func(c *Config) { c.LogFormat = "json" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"INFO", slog.LevelInfo, false},
		{" debug ", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", LevelTrace, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
