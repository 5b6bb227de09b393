// Package gpu samples an NVIDIA GPU into heartbeat metrics.
package gpu

import (
	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"codeberg.org/mutker/heartbeatd/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

// Collector implements heartbeat.Collector for one GPU.
type Collector struct {
	device   Device
	cfg      Config
	lastTemp int64
	haveTemp bool
}

func NewCollector(device Device, cfg Config) *Collector {
	return &Collector{
		device: device,
		cfg:    cfg,
	}
}

// CollectData samples the device. A failed read bumps gpu_sample_errors and
// leaves the corresponding metric at its reset value.
func (c *Collector) CollectData(m heartbeat.Metrics) error {
	var failed []string

	fail := func(sensor string, ret nvml.Return) {
		failed = append(failed, sensor+": "+nvml.ErrorString(ret))
		if err := m.Add(heartbeat.KeyGPUSampleErrors, 1); err != nil {
			logger.Debug().Err(err).Msg("Failed to count sample error")
		}
	}

	if temp, ret := c.device.GetTemperature(nvml.TEMPERATURE_GPU); IsNVMLSuccess(ret) {
		c.recordTemperature(m, temp)
	} else {
		fail("temperature", ret)
	}

	if speed, ret := c.device.GetFanSpeed(); IsNVMLSuccess(ret) {
		_ = m.SetUnsigned(heartbeat.KeyGPUFanSpeed, speed)
	} else {
		fail("fan_speed", ret)
	}

	if power, ret := c.device.GetPowerUsage(); IsNVMLSuccess(ret) {
		_ = m.SetUnsigned(heartbeat.KeyGPUPowerUsage, power)
	} else {
		fail("power_usage", ret)
	}

	if util, ret := c.device.GetUtilizationRates(); IsNVMLSuccess(ret) {
		_ = m.SetUnsigned(heartbeat.KeyGPUUtilization, util.Gpu)
	} else {
		fail("utilization", ret)
	}

	if len(failed) > 0 {
		return errors.New().WithData(ErrSampleFailed, failed)
	}

	return nil
}

func (c *Collector) recordTemperature(m heartbeat.Metrics, temp uint32) {
	_ = m.SetUnsigned(heartbeat.KeyGPUTemperature, temp)

	cur := int64(temp)
	if c.haveTemp {
		_ = m.Add(heartbeat.KeyGPUTemperatureDelta, int32(cur-c.lastTemp))
	}
	c.lastTemp, c.haveTemp = cur, true

	// ErrInvalidState only means the timer is already where we want it.
	if cur >= int64(c.cfg.HighTemperature) {
		_ = m.TimerStart(heartbeat.KeyGPUHighTemperature)
	} else {
		_ = m.TimerStop(heartbeat.KeyGPUHighTemperature)
	}
}

// Handle couples a collector with the NVML library lifetime.
type Handle struct {
	heartbeat.Collector
	lib nvmlController
}

// Close shuts NVML down if Open initialized it.
func (h *Handle) Close() error {
	if h.lib == nil {
		return nil
	}
	return h.lib.Shutdown()
}

// Open initializes NVML and returns a collector for the configured device,
// or a no-op collector when GPU sampling is disabled.
func Open(cfg Config) (*Handle, error) {
	return open(cfg, &nvmlWrapper{})
}

func open(cfg Config, lib nvmlController) (*Handle, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if !cfg.Enabled {
		logger.Debug().Msg("GPU sampling disabled, using no-op collector")
		return &Handle{Collector: noopCollector{}}, nil
	}

	if err := lib.Initialize(); err != nil {
		return nil, err
	}

	device, err := lib.GetDevice(cfg.DeviceIndex)
	if err != nil {
		if shutdownErr := lib.Shutdown(); shutdownErr != nil {
			logger.Debug().Err(shutdownErr).Msg("Failed to shut down NVML")
		}
		return nil, errFactory.Wrap(ErrInitFailed, err)
	}

	if name, ret := device.GetName(); IsNVMLSuccess(ret) {
		logger.Info().Str("name", name).Int("index", cfg.DeviceIndex).Msg("Detected GPU")
	} else {
		logger.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return &Handle{
		Collector: NewCollector(device, cfg),
		lib:       lib,
	}, nil
}

type noopCollector struct{}

func (noopCollector) CollectData(heartbeat.Metrics) error {
	return nil
}
