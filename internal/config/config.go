// Package config loads heartbeatd settings from defaults, a TOML file, the
// environment and command line flags, in increasing precedence.
package config

import (
	"os"
	"strings"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DefaultEnvPrefix       = "HEARTBEATD"
	DefaultConfigName      = "heartbeatd"
	DefaultConfigDir       = "/etc"
	DefaultInterval        = 3600
	DefaultStorageCapacity = 1024
	DefaultDrainInterval   = 5
	DefaultDatabase        = "/var/lib/heartbeatd/heartbeats.db"
	DefaultListen          = "127.0.0.1:9464"
	DefaultHighTemperature = 80
	DefaultLogLevel        = LogLevelWarning

	maxStorageCapacity = 1 << 20
)

type Config struct {
	Interval        int      `mapstructure:"interval"`
	StorageCapacity int      `mapstructure:"storage_capacity"`
	DrainInterval   int      `mapstructure:"drain_interval"`
	Database        string   `mapstructure:"database"`
	Archive         bool     `mapstructure:"archive"`
	Listen          string   `mapstructure:"listen"`
	GPU             bool     `mapstructure:"gpu"`
	GPUIndex        int      `mapstructure:"gpu_index"`
	HighTemperature int      `mapstructure:"high_temperature"`
	PIDFile         string   `mapstructure:"pid_file"`
	LogLevel        LogLevel `mapstructure:"log_level"`
}

// Period is the heartbeat interval as a duration.
func (c *Config) Period() time.Duration {
	return time.Duration(c.Interval) * time.Second
}

// DrainPeriod is how often the archive drains event storage.
func (c *Config) DrainPeriod() time.Duration {
	return time.Duration(c.DrainInterval) * time.Second
}

type flagDef struct {
	key   string
	name  string
	usage string
}

var flagDefs = []flagDef{
	{"interval", "interval", "Heartbeat interval in seconds"},
	{"storage_capacity", "storage-capacity", "Event storage capacity in bytes"},
	{"drain_interval", "drain-interval", "Seconds between archive drains"},
	{"database", "database", "Path to the heartbeat archive database"},
	{"archive", "archive", "Archive heartbeats to sqlite"},
	{"listen", "listen", "Debug HTTP listen address, empty to disable"},
	{"gpu", "gpu", "Sample GPU metrics through NVML"},
	{"gpu_index", "gpu-index", "NVML device index"},
	{"high_temperature", "high-temperature", "GPU temperature that starts the high temperature timer"},
	{"pid_file", "pid-file", "PID file path"},
	{"log_level", "log-level", "Log level (debug, info, warning, error)"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("storage_capacity", DefaultStorageCapacity)
	v.SetDefault("drain_interval", DefaultDrainInterval)
	v.SetDefault("database", DefaultDatabase)
	v.SetDefault("archive", true)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("gpu", true)
	v.SetDefault("gpu_index", 0)
	v.SetDefault("high_temperature", DefaultHighTemperature)
	v.SetDefault("pid_file", "")
	v.SetDefault("log_level", string(DefaultLogLevel))
}

func newFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet(DefaultConfigName, pflag.ContinueOnError)
	fs.String("config", "", "Path to config file")
	fs.Int("interval", DefaultInterval, "")
	fs.Int("storage-capacity", DefaultStorageCapacity, "")
	fs.Int("drain-interval", DefaultDrainInterval, "")
	fs.String("database", DefaultDatabase, "")
	fs.Bool("archive", true, "")
	fs.String("listen", DefaultListen, "")
	fs.Bool("gpu", true, "")
	fs.Int("gpu-index", 0, "")
	fs.Int("high-temperature", DefaultHighTemperature, "")
	fs.String("pid-file", "", "")
	fs.String("log-level", string(DefaultLogLevel), "")

	for _, d := range flagDefs {
		fs.Lookup(d.name).Usage = d.usage
	}

	return fs
}

// Load reads configuration from all sources and validates it.
func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}
	if !o.argsSet {
		o.args = os.Args[1:]
	}

	v := viper.New()
	setDefaults(v)

	fs := newFlagSet()
	if err := fs.Parse(o.args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}
	for _, d := range flagDefs {
		if err := v.BindPFlag(d.key, fs.Lookup(d.name)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o, fs); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}
	cfg.LogLevel = LogLevel(strings.ToLower(string(cfg.LogLevel)))
	if cfg.LogLevel == "warn" {
		cfg.LogLevel = LogLevelWarning
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// readConfigFile picks the first of WithConfigFile, --config and
// $PREFIX_CONFIG. Only the default location may be absent.
func readConfigFile(v *viper.Viper, o *options, fs *pflag.FlagSet) error {
	errFactory := errors.New()

	path := o.configPath
	if path == "" {
		path, _ = fs.GetString("config")
	}
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
		return nil
	}

	v.SetConfigName(DefaultConfigName)
	v.SetConfigType("toml")
	v.AddConfigPath(DefaultConfigDir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errFactory.Wrap(errors.ErrReadConfig, err)
		}
	}

	return nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Interval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if c.DrainInterval <= 0 {
		return errFactory.WithData(errors.ErrInvalidInterval, c.DrainInterval)
	}
	if !c.LogLevel.IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	invalid := func(field string, value any) error {
		return errFactory.WithData(errors.ErrInvalidConfig, struct {
			Field string
			Value any
		}{field, value})
	}

	switch {
	case c.StorageCapacity <= 0 || c.StorageCapacity > maxStorageCapacity:
		return invalid("storage_capacity", c.StorageCapacity)
	case c.Archive && c.Database == "":
		return invalid("database", c.Database)
	case c.GPUIndex < 0:
		return invalid("gpu_index", c.GPUIndex)
	case c.HighTemperature <= 0:
		return invalid("high_temperature", c.HighTemperature)
	}

	return nil
}
