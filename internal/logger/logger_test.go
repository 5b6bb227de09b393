package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name  string
		want  logger.LogLevel
		valid bool
	}{
		{"debug", logger.DebugLevel, true},
		{"info", logger.InfoLevel, true},
		{"warning", logger.WarnLevel, true},
		{"warn", logger.WarnLevel, true},
		{"error", logger.ErrorLevel, true},
		{"loud", logger.WarnLevel, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := logger.ParseLevel(tt.name)
			assert.Equal(t, tt.valid, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComponentLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.DebugLevel, true)
	defer logger.SetLogLevel(logger.WarnLevel)

	log := logger.Default().With("heartbeat")
	log.Info().Str("metric", "gpu_temperature_c").Msg("value")
	log.ErrorWithCode(errors.New().New(errors.ErrTimeout)).Msg("failed")

	out := buf.String()
	assert.Contains(t, out, "component=heartbeat")
	assert.Contains(t, out, "metric=gpu_temperature_c")
	assert.Contains(t, out, "error_code=operation_timeout")
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, logger.WarnLevel, true)

	logger.Debug().Msg("hidden")
	logger.Warn().Msg("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
