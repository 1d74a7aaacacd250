// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"cloudwright/internal/logging"
)

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Catalog contains catalog store configuration
	Catalog CatalogConfig `json:"catalog"`

	// Refresh contains catalog refresh configuration
	Refresh RefreshConfig `json:"refresh"`

	// Server contains HTTP server configuration
	Server ServerConfig `json:"server"`

	// Defaults contains spec-level defaults
	Defaults DefaultsConfig `json:"defaults"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging"`
}

// CatalogConfig contains catalog store settings
type CatalogConfig struct {
	// Path is the catalog store file location
	Path string `json:"path"`

	// RegistryDir overrides the embedded service category files when set
	RegistryDir string `json:"registry_dir,omitempty"`

	// SeedDir overrides the embedded seed data files when set
	SeedDir string `json:"seed_dir,omitempty"`
}

// RefreshConfig contains catalog refresh settings
type RefreshConfig struct {
	// Concurrency is the number of providers refreshed in parallel
	Concurrency int `json:"concurrency"`

	// HTTPTimeoutSeconds is the per-request adapter timeout
	HTTPTimeoutSeconds int `json:"http_timeout_seconds"`

	// GCPAPIKeyEnv names the environment variable holding the GCP key
	GCPAPIKeyEnv string `json:"gcp_api_key_env"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	// Addr is the listen address
	Addr string `json:"addr"`

	// ReadTimeoutSeconds bounds request reads
	ReadTimeoutSeconds int `json:"read_timeout_seconds"`

	// WriteTimeoutSeconds bounds response writes
	WriteTimeoutSeconds int `json:"write_timeout_seconds"`
}

// DefaultsConfig contains defaults applied to sparse specs
type DefaultsConfig struct {
	// Provider is the default cloud provider
	Provider string `json:"provider"`

	// Region is the default region
	Region string `json:"region"`

	// PricingTier is the default pricing tier
	PricingTier string `json:"pricing_tier"`
}

// Default returns a default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	catalogPath := filepath.Join(homeDir, ".cloudwright", "catalog.db")

	return &Config{
		Version: "1.0",
		Catalog: CatalogConfig{
			Path: catalogPath,
		},
		Refresh: RefreshConfig{
			Concurrency:        3,
			HTTPTimeoutSeconds: 30,
			GCPAPIKeyEnv:       "GCP_API_KEY",
		},
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  30,
			WriteTimeoutSeconds: 60,
		},
		Defaults: DefaultsConfig{
			Provider:    "aws",
			Region:      "us-east-1",
			PricingTier: "on_demand",
		},
		Logging: logging.DefaultConfig(),
	}
}

// Load loads configuration from a file, falling back to defaults
// when the file does not exist
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, err
	}

	return config, nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

var (
	globalMu     sync.RWMutex
	globalConfig = Default()
)

// Get returns the global configuration
func Get() *Config {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = config
}
