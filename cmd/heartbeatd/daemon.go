package main

import (
	"context"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/archive"
	"codeberg.org/mutker/heartbeatd/internal/config"
	"codeberg.org/mutker/heartbeatd/internal/debugapi"
	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/eventstorage"
	"codeberg.org/mutker/heartbeatd/internal/exporter"
	"codeberg.org/mutker/heartbeatd/internal/gpu"
	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"codeberg.org/mutker/heartbeatd/internal/logger"
	"codeberg.org/mutker/heartbeatd/internal/platform"
	"codeberg.org/mutker/heartbeatd/internal/serializer"
)

const shutdownTimeout = 5 * time.Second

type daemon struct {
	cfg      *config.Config
	log      logger.Logger
	ring     *eventstorage.Ring
	repo     archive.Repository
	exporter *exporter.Exporter
	gpu      *gpu.Handle
	ticker   *platform.Ticker
	session  *heartbeat.Session
	drainer  *archive.Drainer
	api      *debugapi.Server
}

// newDaemon wires every component but starts nothing.
func newDaemon(ctx context.Context, cfg *config.Config) (*daemon, error) {
	errFactory := errors.New()
	log := logger.Default().With("heartbeatd")

	ring, err := eventstorage.NewRing(cfg.StorageCapacity)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	archiveCfg := archive.DefaultConfig()
	archiveCfg.DBPath = cfg.Database
	archiveCfg.Enabled = cfg.Archive

	repo, err := archive.Open(ctx, archiveCfg, log.With("archive"))
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	gpuCfg := gpu.DefaultConfig()
	gpuCfg.Enabled = cfg.GPU
	gpuCfg.DeviceIndex = cfg.GPUIndex
	gpuCfg.HighTemperature = cfg.HighTemperature

	gpuHandle, err := gpu.Open(gpuCfg)
	if err != nil {
		repo.Close()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	clock := platform.MonotonicClock{}
	ticker := platform.NewTicker()

	session, err := heartbeat.New(
		heartbeat.WithClock(clock),
		heartbeat.WithTimer(ticker),
		heartbeat.WithCollector(gpuHandle),
		heartbeat.WithSerializer(serializer.New(clock)),
		heartbeat.WithPeriod(cfg.Period()),
		heartbeat.WithLogger(log.With("heartbeat")),
	)
	if err != nil {
		gpuHandle.Close()
		repo.Close()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	exp := exporter.New(true)
	exp.WatchStorage(ring)

	d := &daemon{
		cfg:      cfg,
		log:      log,
		ring:     ring,
		repo:     repo,
		exporter: exp,
		gpu:      gpuHandle,
		ticker:   ticker,
		session:  session,
		drainer:  archive.NewDrainer(ring, repo, session.Table(), cfg.DrainPeriod(), log.With("drainer"), exp),
	}
	if cfg.Listen != "" {
		d.api = debugapi.NewServer(session, repo, exp.Handler(), log.With("debugapi"))
	}

	return d, nil
}

// start boots the session and launches the background loops.
func (d *daemon) start() error {
	errFactory := errors.New()

	if err := d.session.Boot(d.ring); err != nil {
		return err
	}
	if err := d.session.TimerStart(heartbeat.KeyUptime); err != nil {
		return errFactory.Wrap(errors.ErrBootFailed, err)
	}

	d.drainer.Start()

	if d.api != nil {
		if err := d.api.Start(d.cfg.Listen); err != nil {
			return err
		}
	}

	d.log.Info().
		Dur("interval", d.cfg.Period()).
		Int("storage_capacity", d.ring.Capacity()).
		Int("metrics", d.session.NumMetrics()).
		Bool("archive", d.cfg.Archive).
		Bool("gpu", d.cfg.GPU).
		Msg("Heartbeat daemon started")

	return nil
}

// stop takes a last heartbeat, drains it and releases everything.
func (d *daemon) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	d.ticker.Stop()
	d.ticker.Wait()

	var errs []error

	if d.session.Booted() {
		if err := d.session.CollectAndSerialize(); err != nil {
			d.log.Warn().Err(err).Msg("Final heartbeat failed")
		}
	}
	d.session.Close()

	if err := d.drainer.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.api != nil {
		if err := d.api.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.repo.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := d.gpu.Close(); err != nil {
		errs = append(errs, err)
	}

	drained, discarded := d.drainer.Stats()
	d.log.Info().
		Uint64("cycles", d.session.Cycles()).
		Uint64("archived", drained).
		Uint64("discarded", discarded).
		Uint64("dropped", d.ring.Dropped()).
		Msg("Heartbeat daemon stopped")

	if len(errs) > 0 {
		return errors.New().WithData(errors.ErrShutdownFailed, errs)
	}

	return nil
}
