// Package config provides configuration loading for projectd.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fyrsmithlabs/projectd/internal/logging"
)

// Config is the full projectd configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Logging   logging.Config  `koanf:"logging"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Cache     CacheConfig     `koanf:"cache"`
	Embedding EmbeddingConfig `koanf:"embedding"`
	Registry  RegistryConfig  `koanf:"registry"`
	Artifacts ArtifactsConfig `koanf:"artifacts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// DiscoveryConfig holds file discovery settings.
type DiscoveryConfig struct {
	// Timeout is the wall-clock budget for a single scan.
	Timeout Duration `koanf:"timeout"`

	// ProgressInterval bounds how often the progress sink is invoked.
	ProgressInterval Duration `koanf:"progress_interval"`

	// MaxFileSize is the largest file the indexer will read.
	MaxFileSize int64 `koanf:"max_file_size"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	// Dir is the directory for the persistent tier.
	Dir string `koanf:"dir"`

	// MaxMemoryEntries bounds the in-memory tier (LRU eviction beyond it).
	MaxMemoryEntries int `koanf:"max_memory_entries"`
}

// EmbeddingConfig holds embedding backend settings.
type EmbeddingConfig struct {
	// BaseURL is the base URL of the TEI-compatible embedding API.
	BaseURL string `koanf:"base_url"`

	// Model is the embedding model name.
	Model string `koanf:"model"`

	// Revision is the backend configuration revision. Bumping it changes
	// every cache fingerprint, which is how backend reconfiguration
	// invalidates cached vectors.
	Revision string `koanf:"revision"`
}

// RegistryConfig holds project registry settings.
type RegistryConfig struct {
	// Path is the directory holding registry.json.
	Path string `koanf:"path"`
}

// ArtifactsConfig holds per-project artifact locations.
type ArtifactsConfig struct {
	// AdapterDir holds fine-tuned adapter artifacts, one subdirectory
	// per project id.
	AdapterDir string `koanf:"adapter_dir"`

	// VectorStoreDir holds per-project vector indexes, one subdirectory
	// per project id.
	VectorStoreDir string `koanf:"vector_store_dir"`

	// VectorSize is the embedding dimension expected by the index.
	VectorSize int `koanf:"vector_size"`
}

// NewDefaultConfig returns config with production-ready defaults.
func NewDefaultConfig() *Config {
	base := defaultBaseDir()
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 9090,
		},
		Logging: *logging.NewDefaultConfig(),
		Discovery: DiscoveryConfig{
			Timeout:          Duration(30 * time.Second),
			ProgressInterval: Duration(500 * time.Millisecond),
			MaxFileSize:      1024 * 1024,
		},
		Cache: CacheConfig{
			Dir:              filepath.Join(base, "cache"),
			MaxMemoryEntries: 4096,
		},
		Embedding: EmbeddingConfig{
			BaseURL:  "http://localhost:8080",
			Model:    "BAAI/bge-small-en-v1.5",
			Revision: "v1",
		},
		Registry: RegistryConfig{
			Path: filepath.Join(base, "registry"),
		},
		Artifacts: ArtifactsConfig{
			AdapterDir:     filepath.Join(base, "adapters"),
			VectorStoreDir: filepath.Join(base, "vectorstore"),
			VectorSize:     384,
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in (0, 65535], got %d", c.Server.Port)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Discovery.Timeout.Duration() <= 0 {
		return fmt.Errorf("discovery.timeout must be positive, got %s", c.Discovery.Timeout.Duration())
	}
	if c.Discovery.ProgressInterval.Duration() <= 0 {
		return fmt.Errorf("discovery.progress_interval must be positive, got %s", c.Discovery.ProgressInterval.Duration())
	}
	if c.Discovery.MaxFileSize <= 0 {
		return fmt.Errorf("discovery.max_file_size must be positive, got %d", c.Discovery.MaxFileSize)
	}
	if c.Cache.MaxMemoryEntries <= 0 {
		return fmt.Errorf("cache.max_memory_entries must be positive, got %d", c.Cache.MaxMemoryEntries)
	}
	if c.Embedding.BaseURL == "" {
		return fmt.Errorf("embedding.base_url is required")
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Artifacts.VectorSize <= 0 {
		return fmt.Errorf("artifacts.vector_size must be positive, got %d", c.Artifacts.VectorSize)
	}
	return nil
}

// defaultBaseDir returns the default state directory.
func defaultBaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "projectd")
	}
	return filepath.Join(home, ".config", "projectd")
}
