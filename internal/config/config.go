// Package config provides configuration loading for the aquacore service.
// Defaults are embedded; an optional YAML file and AQUACORE_* environment
// variables override them, in that order.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all service configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Blob    BlobConfig    `yaml:"blob"`
	Persist PersistConfig `yaml:"persist"`
	Catalog CatalogConfig `yaml:"catalog"`
	Cache   CacheConfig   `yaml:"cache"`
	Tank    TankConfig    `yaml:"tank"`
	Compat  CompatConfig  `yaml:"compat"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StorageConfig selects the tank store backend.
type StorageConfig struct {
	Driver      string `yaml:"driver"` // memory | sqlite | postgres
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig selects the preview blob backend.
type BlobConfig struct {
	Driver string `yaml:"driver"` // fs | s3 | memory
	FSRoot string `yaml:"fs_root"`
}

// PersistConfig tunes the debounced writer.
type PersistConfig struct {
	DebounceMS int `yaml:"debounce_ms"`
}

// CatalogConfig points at species catalog sources.
type CatalogConfig struct {
	YAMLPath string `yaml:"yaml_path"`
	CSVPath  string `yaml:"csv_path"`
}

// CacheConfig locates the local snapshot cache.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// TankConfig is the default drawable region for new sessions.
type TankConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// CompatConfig tunes the compatibility evaluator.
type CompatConfig struct {
	SelfAvoid []string `yaml:"self_avoid"`
}

// Load builds the effective configuration: embedded defaults, then the YAML
// file at path (if non-empty), then environment overrides.
func Load(path string) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse embedded defaults: %w", err)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if cfg.Persist.DebounceMS <= 0 {
		return Config{}, fmt.Errorf("persist.debounce_ms must be positive, got %d", cfg.Persist.DebounceMS)
	}
	return cfg, nil
}

// Environment overrides. Unset variables leave the current value in place.
//
//	AQUACORE_ADDR
//	AQUACORE_STORAGE_DRIVER / AQUACORE_SQLITE_PATH / AQUACORE_POSTGRES_DSN
//	AQUACORE_BLOB_DRIVER / AQUACORE_BLOB_FS_ROOT
//	AQUACORE_DEBOUNCE_MS
//	AQUACORE_CATALOG_YAML / AQUACORE_CATALOG_CSV
//	AQUACORE_CACHE_DIR
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "AQUACORE_ADDR")
	setString(&cfg.Storage.Driver, "AQUACORE_STORAGE_DRIVER")
	setString(&cfg.Storage.SQLitePath, "AQUACORE_SQLITE_PATH")
	setString(&cfg.Storage.PostgresDSN, "AQUACORE_POSTGRES_DSN")
	setString(&cfg.Blob.Driver, "AQUACORE_BLOB_DRIVER")
	setString(&cfg.Blob.FSRoot, "AQUACORE_BLOB_FS_ROOT")
	setInt(&cfg.Persist.DebounceMS, "AQUACORE_DEBOUNCE_MS")
	setString(&cfg.Catalog.YAMLPath, "AQUACORE_CATALOG_YAML")
	setString(&cfg.Catalog.CSVPath, "AQUACORE_CATALOG_CSV")
	setString(&cfg.Cache.Dir, "AQUACORE_CACHE_DIR")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
