package serializer

import "codeberg.org/mutker/heartbeatd/internal/errors"

const (
	ErrStorageWrite   = errors.ErrorCode("serializer_storage_write_failed")
	ErrMalformedEvent = errors.ErrorCode("serializer_malformed_event")
	ErrUnknownMetric  = errors.ErrorCode("serializer_unknown_metric")
)
