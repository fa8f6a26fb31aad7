// Package config handles Calldeck configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./calldeck.yaml, ~/.config/calldeck/config.yaml, /etc/calldeck/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"calldeck.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "calldeck", "config.yaml"))
	}

	paths = append(paths, "/etc/calldeck/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Calldeck configuration.
type Config struct {
	Listen    ListenConfig  `yaml:"listen"`
	Store     StoreConfig   `yaml:"store"`
	Webhook   WebhookConfig `yaml:"webhook"`
	Dashboard DashConfig    `yaml:"dashboard"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"` // "text" (default) or "json"
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// StoreConfig defines where the JSON document lives.
type StoreConfig struct {
	// Path is the backing file for the record store. The parent
	// directory is created on first save if it does not exist.
	Path string `yaml:"path"`
}

// WebhookConfig defines the optional call-end notification target.
// When URL is empty, no notifications are sent.
type WebhookConfig struct {
	URL string `yaml:"url"`
	// TimeoutSec bounds each delivery attempt (default 10).
	TimeoutSec int `yaml:"timeout_sec"`
	// RetryCount is the number of retries on transient connection
	// errors (default 2).
	RetryCount int `yaml:"retry_count"`
}

// DashConfig defines the embedded dashboard.
type DashConfig struct {
	// Enabled serves the HTML dashboard at "/". On by default; set
	// `enabled: false` explicitly to run headless.
	Enabled *bool  `yaml:"enabled"`
	Brand   string `yaml:"brand"` // Page title override
	// Notes is an optional Markdown block shown at the top of the
	// dashboard (e.g. escalation instructions for the team).
	Notes string `yaml:"notes"`
}

// DashboardEnabled reports whether the dashboard should be served.
func (c *Config) DashboardEnabled() bool {
	return c.Dashboard.Enabled == nil || *c.Dashboard.Enabled
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		Listen: ListenConfig{Port: 8080},
		Store:  StoreConfig{Path: "data/calldeck.json"},
		Webhook: WebhookConfig{
			TimeoutSec: 10,
			RetryCount: 2,
		},
	}
}

// Validate checks config values that would otherwise fail deep inside
// startup. Returns the first problem found.
func (c *Config) Validate() error {
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port out of range: %d", c.Listen.Port)
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return err
		}
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q (valid: text, json)", c.LogFormat)
	}
	return nil
}
