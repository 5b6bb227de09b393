package gpu

import (
	"codeberg.org/mutker/heartbeatd/internal/errors"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	// Initialization and Lifecycle Errors
	ErrNotInitialized = errors.ErrorCode("gpu_not_initialized")
	ErrInitFailed     = errors.ErrorCode("gpu_init_failed")
	ErrDeviceNotFound = errors.ErrorCode("gpu_device_not_found")
	ErrShutdownFailed = errors.ErrorCode("gpu_shutdown_failed")
	ErrInvalidConfig  = errors.ErrorCode("gpu_invalid_config")

	// Sampling Errors
	ErrSampleFailed = errors.ErrorCode("gpu_sample_failed")
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrNotInitialized: "NVML not initialized",
		ErrInitFailed:     "Failed to initialize NVML",
		ErrDeviceNotFound: "GPU device not found",
		ErrShutdownFailed: "Failed to shutdown NVML",
		ErrInvalidConfig:  "Invalid GPU configuration",
		ErrSampleFailed:   "Failed to sample GPU",
	})
}

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}
