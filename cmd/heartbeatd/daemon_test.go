package main

import (
	"context"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/heartbeatd/internal/config"
	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Interval:        3600,
		StorageCapacity: config.DefaultStorageCapacity,
		DrainInterval:   3600,
		Database:        filepath.Join(t.TempDir(), "heartbeats.db"),
		Archive:         true,
		Listen:          "127.0.0.1:0",
		GPU:             false,
		HighTemperature: config.DefaultHighTemperature,
		LogLevel:        config.LogLevelWarning,
	}
}

func TestDaemonLifecycle(t *testing.T) {
	d, err := newDaemon(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NoError(t, d.start())

	assert.True(t, d.session.Booted())
	assert.NotEmpty(t, d.api.Addr())

	require.NoError(t, d.session.DebugTrigger())
	n, err := d.drainer.Drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	records, err := d.repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, records, 1)

	var uptime *heartbeat.Value
	for i, v := range records[0].Event.Values {
		if v.Name == string(heartbeat.KeyUptime) {
			uptime = &records[0].Event.Values[i]
		}
	}
	require.NotNil(t, uptime)
	assert.True(t, uptime.Running, "uptime timer runs for the whole session")

	require.NoError(t, d.stop())
	assert.False(t, d.session.Booted())
	assert.Equal(t, uint64(2), d.session.Cycles(), "stop takes a final heartbeat")

	drained, _ := d.drainer.Stats()
	assert.Equal(t, uint64(2), drained)
}

func TestDaemonWithoutArchiveOrListener(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive = false
	cfg.Listen = ""

	d, err := newDaemon(context.Background(), cfg)
	require.NoError(t, err)
	assert.Nil(t, d.api)

	require.NoError(t, d.start())
	require.NoError(t, d.stop())
}

func TestDaemonStorageTooSmall(t *testing.T) {
	cfg := testConfig(t)
	cfg.StorageCapacity = 8

	d, err := newDaemon(context.Background(), cfg)
	require.NoError(t, err)

	err = d.start()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, heartbeat.ErrStorageTooSmall))
	assert.Equal(t, 5, exitCode(err))

	require.NoError(t, d.stop())
}

func TestExitCode(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 7, exitCode(errFactory.New(heartbeat.ErrNotBooted)))
	assert.Equal(t, 127, exitCode(errFactory.New(errors.ErrServeFailed)))
}
