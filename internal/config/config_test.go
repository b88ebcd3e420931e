package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Daemon.LogLevel != "info" {
		t.Errorf("expected LogLevel 'info', got %s", cfg.Daemon.LogLevel)
	}
	if cfg.Search.AsyncTimeout() != 2*time.Second {
		t.Errorf("expected 2s async timeout, got %v", cfg.Search.AsyncTimeout())
	}
	if len(cfg.Sources) == 0 {
		t.Error("expected default sources")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile_Missing(t *testing.T) {
	cfg, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Search, cfg.Search)
}

func TestLoadFromFile_SourcesReplaceDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
daemon:
  daemonize: true
  log_level: debug
search:
  async_timeout_ms: 500
  debounce_ms: 0
  max_results: 8
sources:
  - type: web
    name: Google
    alias: g
    priority: 10
    keyword_required: true
    args:
      engine: google
      url: "https://google.com/search?q={keyword}"
  - type: bulk_text
    name: Weather
    async: true
    timeout_ms: 750
    args:
      exec: curl
      args: ["-s", "wttr.in/{keyword}"]
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.True(t, cfg.Daemon.Daemonize)
	assert.Equal(t, "debug", cfg.Daemon.LogLevel)
	assert.Equal(t, 500*time.Millisecond, cfg.Search.AsyncTimeout())
	require.Len(t, cfg.Sources, 2)

	web := cfg.Sources[0]
	assert.Equal(t, "web", web.Type)
	assert.Equal(t, "g", web.Alias)
	assert.True(t, web.KeywordRequired)
	assert.Equal(t, "google", web.Args["engine"])

	bulk := cfg.Sources[1]
	assert.True(t, bulk.Async)
	assert.Equal(t, 750, bulk.TimeoutMs)
	assert.Equal(t, []any{"-s", "wttr.in/{keyword}"}, bulk.Args["args"])
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("daemon:\n  log_level: loud\n"), 0o600))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestLoadFromFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: [\n"), 0o600))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("FLARE_LOG_LEVEL", "warn")
	t.Setenv("FLARE_SOCKET", "/tmp/flare-test.sock")
	t.Setenv("FLARE_ASYNC_TIMEOUT_MS", "300")
	t.Setenv("FLARE_DAEMONIZE", "true")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnvOverrides())

	assert.Equal(t, "warn", cfg.Daemon.LogLevel)
	assert.Equal(t, "/tmp/flare-test.sock", cfg.Daemon.SocketPath)
	assert.Equal(t, 300*time.Millisecond, cfg.Search.AsyncTimeout())
	assert.True(t, cfg.Daemon.Daemonize)
}

func TestApplyEnvOverrides_InvalidLevelIgnored(t *testing.T) {
	t.Setenv("FLARE_LOG_LEVEL", "loud")

	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnvOverrides())
	assert.Equal(t, "info", cfg.Daemon.LogLevel)
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")
	cfg := DefaultConfig()
	cfg.Daemon.MetricsAddr = "127.0.0.1:9109"
	require.NoError(t, cfg.SaveToFile(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9109", loaded.Daemon.MetricsAddr)
	assert.Len(t, loaded.Sources, len(cfg.Sources))
}
