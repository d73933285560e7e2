package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/okkola/labdaq/internal/config"
	"codeberg.org/okkola/labdaq/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tempDir := t.TempDir()

	configContent := []byte(`
descriptor_dir = "/opt/lab/devices"
log_level = "debug"
listen_addr = ":8077"
queue_depth = 128
default_rate_hz = 10.0
console = false
archive = true
archive_db = "/tmp/labdaq-test.db"
mqtt_broker = "tcp://localhost:1883"
`)
	configPath := filepath.Join(tempDir, "labdaq.toml")
	err := os.WriteFile(configPath, configContent, 0o600)
	require.NoError(t, err)

	t.Setenv("LABDAQ_CONFIG", configPath)

	cfg, err := config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "/opt/lab/devices", cfg.DescriptorDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, ":8077", cfg.ListenAddr)
	assert.Equal(t, 128, cfg.QueueDepth)
	assert.InDelta(t, 10.0, cfg.DefaultRateHz, 1e-9)
	assert.False(t, cfg.Console)
	assert.True(t, cfg.Archive)
	assert.Equal(t, "/tmp/labdaq-test.db", cfg.ArchiveDB)
	assert.Equal(t, "tcp://localhost:1883", cfg.MQTTBroker)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("LABDAQ_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := config.Load(nil)
	// An explicitly named but missing config file is an error; fall back to
	// defaults by pointing at an empty file instead.
	require.Error(t, err)

	emptyPath := filepath.Join(t.TempDir(), "labdaq.toml")
	require.NoError(t, os.WriteFile(emptyPath, nil, 0o600))
	t.Setenv("LABDAQ_CONFIG", emptyPath)

	cfg, err = config.Load(nil)
	require.NoError(t, err)

	assert.Equal(t, "devices", cfg.DescriptorDir)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, 64, cfg.QueueDepth)
	assert.Equal(t, 5000, cfg.ShutdownTimeoutMs)
	assert.True(t, cfg.Console)
	assert.False(t, cfg.Archive)
	assert.Empty(t, cfg.ListenAddr)
}

func TestLoadFlagsOverrideFile(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "labdaq.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("log_level = \"error\"\n"), 0o600))
	t.Setenv("LABDAQ_CONFIG", configPath)

	cfg, err := config.Load([]string{"--log-level", "debug", "--queue-depth", "16"})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 16, cfg.QueueDepth)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "labdaq.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("This is not a valid TOML file\n"), 0o600))
	t.Setenv("LABDAQ_CONFIG", configPath)

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "labdaq.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("log_level = \"noisy\"\n"), 0o600))
	t.Setenv("LABDAQ_CONFIG", configPath)

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestInvalidQueueDepth(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "labdaq.toml")
	require.NoError(t, os.WriteFile(configPath, []byte("queue_depth = -1\n"), 0o600))
	t.Setenv("LABDAQ_CONFIG", configPath)

	_, err := config.Load(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "queue_depth")
}
