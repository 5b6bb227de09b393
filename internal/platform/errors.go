package platform

import "codeberg.org/mutker/heartbeatd/internal/errors"

const (
	ErrInvalidPeriod  = errors.ErrInvalidInterval
	ErrAlreadyStarted = errors.ErrorCode("platform_timer_already_started")
)
