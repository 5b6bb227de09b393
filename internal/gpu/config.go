package gpu

import "codeberg.org/mutker/heartbeatd/internal/errors"

const (
	defaultHighTemperature = 80
	maxTemperature         = 120
)

type Config struct {
	Enabled         bool
	DeviceIndex     int
	HighTemperature int
}

func DefaultConfig() Config {
	return Config{
		Enabled:         true,
		HighTemperature: defaultHighTemperature,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	if !c.Enabled {
		return nil
	}
	if c.DeviceIndex < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{"device_index", c.DeviceIndex})
	}
	if c.HighTemperature <= 0 || c.HighTemperature > maxTemperature {
		return errFactory.WithData(ErrInvalidConfig, struct {
			Field string
			Value int
		}{"high_temperature", c.HighTemperature})
	}
	return nil
}
