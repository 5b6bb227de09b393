// Package archive persists decoded heartbeats to sqlite and drains them out
// of event storage.
package archive

import (
	"context"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/serializer"
)

// Recorder stores decoded heartbeats.
type Recorder interface {
	Record(ctx context.Context, event serializer.Event) error
}

// Repository defines the interface for heartbeat storage
type Repository interface {
	Recorder
	// Recent returns up to n heartbeats, newest first.
	Recent(ctx context.Context, n int) ([]Record, error)
	Close() error
}

// Record is an archived heartbeat.
type Record struct {
	ID         int64            `json:"id"`
	RecordedAt time.Time        `json:"recorded_at"`
	Event      serializer.Event `json:"event"`
}

// Source yields encoded events in FIFO order.
type Source interface {
	Peek() ([]byte, bool)
	Pop() ([]byte, bool)
}

// Sink observes every archived heartbeat.
type Sink interface {
	Observe(event serializer.Event)
}
