package debugapi

import "codeberg.org/mutker/heartbeatd/internal/errors"

const (
	ErrListenFailed   = errors.ErrServeFailed
	ErrInvalidLimit   = errors.ErrorCode("debugapi_invalid_limit")
	ErrShutdownFailed = errors.ErrShutdownFailed
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrInvalidLimit: "Invalid history limit",
	})
}
