package heartbeat

// Metrics tracked by the daemon.
const (
	KeyGPUTemperature      Key = "gpu_temperature_c"
	KeyGPUFanSpeed         Key = "gpu_fan_speed_pct"
	KeyGPUPowerUsage       Key = "gpu_power_usage_mw"
	KeyGPUUtilization      Key = "gpu_utilization_pct"
	KeyGPUTemperatureDelta Key = "gpu_temperature_delta_c"
	KeyGPUHighTemperature  Key = "gpu_high_temperature_ms"
	KeyGPUSampleErrors     Key = "gpu_sample_errors"
	KeyUptime              Key = "heartbeat_uptime_ms"
)

// DefaultTable is the compiled-in metric set.
var DefaultTable = MustTable(
	Definition{Name: KeyGPUTemperature, Type: Unsigned},
	Definition{Name: KeyGPUFanSpeed, Type: Unsigned},
	Definition{Name: KeyGPUPowerUsage, Type: Unsigned},
	Definition{Name: KeyGPUUtilization, Type: Unsigned},
	Definition{Name: KeyGPUTemperatureDelta, Type: Signed},
	Definition{Name: KeyGPUHighTemperature, Type: Timer},
	Definition{Name: KeyGPUSampleErrors, Type: Unsigned},
	Definition{Name: KeyUptime, Type: Timer},
)
