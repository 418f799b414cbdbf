package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	v := NewViper()
	v.Set("data.dir", t.TempDir())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.ServerURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.ProbeInterval)
	assert.NotEmpty(t, cfg.DeviceName)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	content := "server:\n  url: https://home.example.com\ndevice:\n  name: kitchen-tablet\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600))

	v := NewViper()
	v.Set("data.dir", dir)

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://home.example.com", cfg.ServerURL)
	assert.Equal(t, "kitchen-tablet", cfg.DeviceName)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HOMEKEEPER_SERVER_URL", "https://env.example.com")
	t.Setenv("HOMEKEEPER_SYNC_PROBE_INTERVAL", "5s")

	v := NewViper()
	v.Set("data.dir", t.TempDir())

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.com", cfg.ServerURL)
	assert.Equal(t, 5*time.Second, cfg.ProbeInterval)
}

func TestLoad_RejectsBadProbeInterval(t *testing.T) {
	v := NewViper()
	v.Set("data.dir", t.TempDir())
	v.Set("sync.probe_interval", "0s")

	_, err := Load(v)
	assert.Error(t, err)
}
