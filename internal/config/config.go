// Package config provides configuration loading and structs for the styleseek server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Images    ImagesConfig    `yaml:"images"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Vibe      VibeConfig      `yaml:"vibe"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// CatalogConfig holds the product catalog input settings.
type CatalogConfig struct {
	// Path points at the catalog file; .csv and .xlsx are supported.
	Path string `yaml:"path"`
	// MaxProducts caps how many rows are considered (0 = all).
	MaxProducts int `yaml:"max_products"`
}

// ImagesConfig holds the local image cache settings.
type ImagesConfig struct {
	Dir          string `yaml:"dir"`
	ManifestPath string `yaml:"manifest_path"`
	Concurrency  int    `yaml:"concurrency"`
	RatePerSec   int    `yaml:"rate_per_sec"`
	// Watch enables background indexing of images that arrive after startup.
	Watch bool `yaml:"watch"`
}

// StorageConfig holds paths for the checkpoint and the keyword index.
type StorageConfig struct {
	CheckpointPath   string `yaml:"checkpoint_path"`
	KeywordIndexPath string `yaml:"keyword_index_path"`
}

// EmbeddingConfig holds the external embedding service settings.
type EmbeddingConfig struct {
	// ServiceURL points at the CLIP embedding service. The value "mock"
	// selects a deterministic in-process embedder for development.
	ServiceURL     string `yaml:"service_url"`
	Dimensions     int    `yaml:"dimensions"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	CacheSize      int    `yaml:"cache_size"`
	BatchSize      int    `yaml:"batch_size"`
}

// SearchConfig holds query-time settings.
type SearchConfig struct {
	DefaultTopK int `yaml:"default_top_k"`
	MaxTopK     int `yaml:"max_top_k"`
	// VibeWordThreshold routes queries longer than this many words through
	// vibe expansion. Kept configurable rather than a literal in code.
	VibeWordThreshold int `yaml:"vibe_word_threshold"`
}

// VibeConfig holds the generative query-expansion settings.
// APIKey is normally left empty in the file and supplied via GEMINI_API_KEY.
type VibeConfig struct {
	Enabled bool   `yaml:"enabled"`
	Model   string `yaml:"model"`
	APIKey  string `yaml:"api_key"`
}

// Load reads and parses the config file at path, expands paths, applies defaults,
// and overlays secrets from the environment.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Catalog.Path = expandPath(cfg.Catalog.Path, configDir)
	cfg.Images.Dir = expandPath(cfg.Images.Dir, configDir)
	cfg.Images.ManifestPath = expandPath(cfg.Images.ManifestPath, configDir)
	cfg.Storage.CheckpointPath = expandPath(cfg.Storage.CheckpointPath, configDir)
	cfg.Storage.KeywordIndexPath = expandPath(cfg.Storage.KeywordIndexPath, configDir)

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		cfg.Vibe.APIKey = key
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
