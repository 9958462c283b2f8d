package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, zapcore.InfoLevel, cfg.Logging.Level)
	assert.Equal(t, 30*time.Second, cfg.Discovery.Timeout.Duration())
	assert.Equal(t, 4096, cfg.Cache.MaxMemoryEntries)
	assert.Equal(t, 384, cfg.Artifacts.VectorSize)
	assert.NotEmpty(t, cfg.Cache.Dir)
	assert.NotEmpty(t, cfg.Registry.Path)

	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero port", func(c *Config) { c.Server.Port = 0 }},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }},
		{"zero discovery timeout", func(c *Config) { c.Discovery.Timeout = 0 }},
		{"zero progress interval", func(c *Config) { c.Discovery.ProgressInterval = 0 }},
		{"zero max file size", func(c *Config) { c.Discovery.MaxFileSize = 0 }},
		{"zero cache entries", func(c *Config) { c.Cache.MaxMemoryEntries = 0 }},
		{"invalid logging format", func(c *Config) { c.Logging.Format = "xml" }},
		{"missing embedding URL", func(c *Config) { c.Embedding.BaseURL = "" }},
		{"missing embedding model", func(c *Config) { c.Embedding.Model = "" }},
		{"zero vector size", func(c *Config) { c.Artifacts.VectorSize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 8181
logging:
  level: debug
  format: console
discovery:
  timeout: 45s
embedding:
  model: custom-model
  revision: v7
cache:
  max_memory_entries: 64
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, zapcore.DebugLevel, cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 45*time.Second, cfg.Discovery.Timeout.Duration())
	assert.Equal(t, "custom-model", cfg.Embedding.Model)
	assert.Equal(t, "v7", cfg.Embedding.Revision)
	assert.Equal(t, 64, cfg.Cache.MaxMemoryEntries)
	// Untouched fields keep their defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8181\n"), 0o644))

	t.Setenv("PROJECTD_SERVER_PORT", "7070")
	t.Setenv("PROJECTD_EMBEDDING_MODEL", "env-model")
	t.Setenv("PROJECTD_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "env-model", cfg.Embedding.Model)
	assert.Equal(t, zapcore.WarnLevel, cfg.Logging.Level)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\nnot yaml {{"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_InvalidValuesRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestDuration_UnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	assert.Error(t, d.UnmarshalText([]byte("-5s")))
	assert.Error(t, d.UnmarshalText([]byte("bogus")))
}

func TestDuration_Marshal(t *testing.T) {
	d := Duration(2 * time.Second)

	text, err := d.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2s", string(text))

	raw, err := d.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2s"`, string(raw))
}
