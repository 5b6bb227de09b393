package heartbeat

import "codeberg.org/mutker/heartbeatd/internal/errors"

const (
	ErrInvalidArgument = errors.ErrInvalidArgument
	ErrKeyNotFound     = errors.ErrorCode("heartbeat_key_not_found")
	ErrTypeMismatch    = errors.ErrorCode("heartbeat_type_mismatch")
	ErrInvalidState    = errors.ErrorCode("heartbeat_invalid_state")
	ErrTimerInitFailed = errors.ErrorCode("heartbeat_timer_init_failed")
	ErrStorageTooSmall = errors.ErrorCode("heartbeat_storage_too_small")
	ErrNotBooted       = errors.ErrorCode("heartbeat_not_booted")
	ErrInvalidTable    = errors.ErrorCode("heartbeat_invalid_table")
	ErrSerializeFailed = errors.ErrorCode("heartbeat_serialize_failed")
)

func init() {
	errors.RegisterMessages(map[errors.ErrorCode]string{
		ErrKeyNotFound:     "Metric key not found",
		ErrTypeMismatch:    "Metric type mismatch",
		ErrInvalidState:    "Invalid metric state",
		ErrTimerInitFailed: "Failed to start heartbeat timer",
		ErrStorageTooSmall: "Event storage too small for heartbeat",
		ErrNotBooted:       "Heartbeat metrics not booted",
		ErrInvalidTable:    "Invalid metric definition table",
		ErrSerializeFailed: "Failed to serialize heartbeat",
	})
}

var returnCodes = map[errors.ErrorCode]int{
	ErrKeyNotFound:     -1,
	ErrTypeMismatch:    -2,
	ErrInvalidArgument: -3,
	ErrInvalidState:    -4,
	ErrStorageTooSmall: -5,
	ErrTimerInitFailed: -6,
	ErrNotBooted:       -7,
	ErrInvalidTable:    -8,
	ErrSerializeFailed: -9,
}

// ReturnCode maps an error from this package onto a negative integer status,
// 0 for nil and -127 for anything unrecognized.
func ReturnCode(err error) int {
	if err == nil {
		return 0
	}
	if rc, ok := returnCodes[errors.CodeOf(err)]; ok {
		return rc
	}

	return -127
}

type mismatch struct {
	Key  Key
	Want MetricType
	Have MetricType
}
