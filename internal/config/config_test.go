package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/config"
	"codeberg.org/mutker/heartbeatd/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "heartbeatd.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
interval = 60
storage_capacity = 4096
drain_interval = 2
database = "/path/to/heartbeats.db"
archive = false
listen = ""
gpu = false
gpu_index = 1
high_temperature = 75
pid_file = "/run/heartbeatd.pid"
log_level = "debug"
`)

	// Set environment variable to point to the test config file
	t.Setenv("HEARTBEATD_CONFIG", configPath)

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Interval, "Expected Interval 60")
	assert.Equal(t, time.Minute, cfg.Period())
	assert.Equal(t, 4096, cfg.StorageCapacity)
	assert.Equal(t, 2*time.Second, cfg.DrainPeriod())
	assert.Equal(t, "/path/to/heartbeats.db", cfg.Database)
	assert.False(t, cfg.Archive)
	assert.Empty(t, cfg.Listen)
	assert.False(t, cfg.GPU)
	assert.Equal(t, 1, cfg.GPUIndex)
	assert.Equal(t, 75, cfg.HighTemperature)
	assert.Equal(t, "/run/heartbeatd.pid", cfg.PIDFile)
	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel)
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no config file is used
	t.Setenv("HEARTBEATD_CONFIG", "")

	cfg, err := config.Load(config.WithArgs(nil))
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.DefaultInterval, cfg.Interval)
	assert.Equal(t, time.Hour, cfg.Period())
	assert.Equal(t, config.DefaultStorageCapacity, cfg.StorageCapacity)
	assert.Equal(t, config.DefaultDrainInterval, cfg.DrainInterval)
	assert.Equal(t, config.DefaultDatabase, cfg.Database)
	assert.True(t, cfg.Archive)
	assert.Equal(t, config.DefaultListen, cfg.Listen)
	assert.True(t, cfg.GPU)
	assert.Equal(t, config.DefaultHighTemperature, cfg.HighTemperature)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
}

func TestLoadPrecedence(t *testing.T) {
	configPath := writeConfig(t, `
interval = 60
storage_capacity = 2048
log_level = "info"
`)

	t.Setenv("HEARTBEATD_STORAGE_CAPACITY", "512")
	t.Setenv("HEARTBEATD_LOG_LEVEL", "error")

	cfg, err := config.Load(
		config.WithConfigFile(configPath),
		config.WithArgs([]string{"--log-level", "debug"}),
	)
	require.NoError(t, err)

	assert.Equal(t, 60, cfg.Interval, "file overrides default")
	assert.Equal(t, 512, cfg.StorageCapacity, "env overrides file")
	assert.Equal(t, config.LogLevelDebug, cfg.LogLevel, "flag overrides env")
}

func TestEnvPrefix(t *testing.T) {
	t.Setenv("HEARTBEATD_CONFIG", "")
	t.Setenv("HBTEST_INTERVAL", "30")

	cfg, err := config.Load(config.WithEnvPrefix("HBTEST"), config.WithArgs(nil))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Interval)
}

func TestConfigFlag(t *testing.T) {
	configPath := writeConfig(t, `interval = 10`)

	cfg, err := config.Load(config.WithArgs([]string{"--config", configPath}))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Interval)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)

	// Set environment variable to point to the invalid config file
	t.Setenv("HEARTBEATD_CONFIG", configPath)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrReadConfig))
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := config.Load(
		config.WithConfigFile(filepath.Join(t.TempDir(), "missing.toml")),
		config.WithArgs(nil),
	)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrReadConfig))
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "invalid"
`)

	t.Setenv("HEARTBEATD_CONFIG", configPath)

	_, err := config.Load(config.WithArgs(nil))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrInvalidLogLevel))
}

func TestLogLevelFlag(t *testing.T) {
	t.Setenv("HEARTBEATD_CONFIG", "")

	cfg, err := config.Load(config.WithArgs([]string{"--log-level", "warn"}))
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelWarning, cfg.LogLevel, "warn is an alias for warning")
}

func TestUnknownFlag(t *testing.T) {
	t.Setenv("HEARTBEATD_CONFIG", "")

	_, err := config.Load(config.WithArgs([]string{"--temperature", "80"}))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrBindFlags))
}

func TestValidate(t *testing.T) {
	valid := func() config.Config {
		return config.Config{
			Interval:        3600,
			StorageCapacity: 1024,
			DrainInterval:   5,
			Database:        "/tmp/hb.db",
			Archive:         true,
			HighTemperature: 80,
			LogLevel:        config.LogLevelWarning,
		}
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		code   errors.ErrorCode
	}{
		{"valid", func(*config.Config) {}, ""},
		{"zero interval", func(c *config.Config) { c.Interval = 0 }, errors.ErrInvalidInterval},
		{"negative drain", func(c *config.Config) { c.DrainInterval = -1 }, errors.ErrInvalidInterval},
		{"bad level", func(c *config.Config) { c.LogLevel = "loud" }, errors.ErrInvalidLogLevel},
		{"no capacity", func(c *config.Config) { c.StorageCapacity = 0 }, errors.ErrInvalidConfig},
		{"archive without database", func(c *config.Config) { c.Database = "" }, errors.ErrInvalidConfig},
		{"no database without archive", func(c *config.Config) { c.Database, c.Archive = "", false }, ""},
		{"negative gpu index", func(c *config.Config) { c.GPUIndex = -1 }, errors.ErrInvalidConfig},
		{"zero threshold", func(c *config.Config) { c.HighTemperature = 0 }, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.IsCode(err, tt.code), "got %v", err)
		})
	}
}
