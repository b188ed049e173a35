package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "3000", cfg.Port)
	assert.Equal(t, 32, cfg.MaxConcurrentChecks)
	assert.Equal(t, 1.2, cfg.Heartbeat.GracePeriod)
	assert.Equal(t, 10, cfg.Heartbeat.SweepInterval)
	assert.False(t, cfg.Heartbeat.CreateIncidents)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
port: "8080"
log_level: debug
max_concurrent_checks: 8
heartbeat:
  sweep_interval: 5
  grace_period: 2.0
  create_incidents: true
browser:
  engines:
    - name: chromium
      exec_path: /usr/bin/chromium
    - name: chrome-remote
      remote_url: ws://browsers:9222
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 8, cfg.MaxConcurrentChecks)
	assert.Equal(t, 2.0, cfg.Heartbeat.GracePeriod)
	assert.True(t, cfg.Heartbeat.CreateIncidents)

	require.Len(t, cfg.Browser.Engines, 2)
	assert.Equal(t, "/usr/bin/chromium", cfg.Browser.Engines[0].ExecPath)
	assert.Equal(t, "ws://browsers:9222", cfg.Browser.Engines[1].RemoteURL)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("MAX_CONCURRENT_CHECKS", "3")
	t.Setenv("HEARTBEAT_CREATE_INCIDENTS", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 3, cfg.MaxConcurrentChecks)
	assert.True(t, cfg.Heartbeat.CreateIncidents)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadClampsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
max_concurrent_checks: -1
heartbeat:
  sweep_interval: 0
  grace_period: -3
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 32, cfg.MaxConcurrentChecks)
	assert.Equal(t, 10, cfg.Heartbeat.SweepInterval)
	assert.Equal(t, 1.2, cfg.Heartbeat.GracePeriod)
}
