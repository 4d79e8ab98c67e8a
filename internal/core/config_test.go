package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50*time.Millisecond, cfg.ErrCheckInterval)
	assert.Equal(t, "main", cfg.WindowName)
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
err_check_interval: 20ms
memory_limit_mb: 64
window: true
window_name: editor
log_level: debug
remote:
  addr: "localhost:9000"
  max_clients: 4
  compress: true
`))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, cfg.ErrCheckInterval)
	assert.Equal(t, 64, cfg.MemoryLimitMB)
	assert.True(t, cfg.Window)
	assert.Equal(t, "editor", cfg.WindowName)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "localhost:9000", cfg.Remote.Addr)
	assert.Equal(t, 4, cfg.Remote.MaxClients)
	assert.True(t, cfg.Remote.Compress)
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("window: true\n"))
	require.NoError(t, err)
	assert.Equal(t, DefaultErrCheckInterval, cfg.ErrCheckInterval)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"negative interval", "err_check_interval: -5ms\n"},
		{"negative memory", "memory_limit_mb: -1\n"},
		{"unknown level", "log_level: loud\n"},
		{"bad addr", "remote:\n  addr: \"no port\"\n"},
		{"negative clients", "remote:\n  max_clients: -2\n"},
		{"not yaml", "window: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("memory_limit_mb: 32\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.MemoryLimitMB)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
