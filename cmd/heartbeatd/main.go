package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/heartbeatd/internal/config"
	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"codeberg.org/mutker/heartbeatd/internal/logger"
	"codeberg.org/mutker/heartbeatd/internal/pid"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	level, _ := logger.ParseLevel(cfg.LogLevel.String())
	logger.Init(level, logger.IsService())
	logger.Debug().Msg("Config loaded")

	pidPath := pid.Path(cfg.PIDFile)
	if err := pid.Write(pidPath); err != nil {
		logger.Error().Err(err).Str("path", pidPath).Msg("Failed to write PID file")
		return 1
	}
	defer func() {
		if err := pid.Remove(pidPath); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := newDaemon(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize")
		return 1
	}

	if err := d.start(); err != nil {
		logger.Error().Err(err).Msg("Failed to start")
		if stopErr := d.stop(); stopErr != nil {
			logger.Debug().Err(stopErr).Msg("Cleanup after failed start")
		}
		return exitCode(err)
	}

	<-ctx.Done()
	logger.Info().Msg("Received termination signal.")

	if err := d.stop(); err != nil {
		logger.Error().Err(err).Msg("Shutdown incomplete")
		return 1
	}

	logger.Info().Msg("Exiting...")

	return 0
}

// exitCode maps a heartbeat status onto a process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	return -heartbeat.ReturnCode(err)
}
