package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the backstock.yaml file format.
type Config struct {
	// ListenAddr is the HTTP API bind address.
	ListenAddr string `yaml:"listen_addr"`

	// DatabasePath is the SQLite file holding collection configuration.
	DatabasePath string `yaml:"database_path"`

	// Shop is the myshopify domain, e.g. "example.myshopify.com".
	// Also the owner scope for persisted configuration.
	Shop string `yaml:"shop"`

	// APIVersion is the Admin API version, e.g. "2026-07".
	APIVersion string `yaml:"api_version"`
}

// LoadConfig reads and validates a yaml config file, applying defaults
// for optional fields.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := Config{
		ListenAddr:   ":8080",
		DatabasePath: "backstock.db",
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.Shop == "" {
		return Config{}, fmt.Errorf("config %s: shop is required", path)
	}
	if cfg.APIVersion == "" {
		return Config{}, fmt.Errorf("config %s: api_version is required", path)
	}
	return cfg, nil
}
