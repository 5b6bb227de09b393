package eventstorage

import "codeberg.org/mutker/heartbeatd/internal/errors"

const (
	ErrInvalidCapacity = errors.ErrorCode("eventstorage_invalid_capacity")
	ErrStorageFull     = errors.ErrorCode("eventstorage_full")
	ErrEmptyEvent      = errors.ErrorCode("eventstorage_empty_event")
)
