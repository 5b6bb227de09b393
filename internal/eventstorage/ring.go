// Package eventstorage holds serialized heartbeats until they are drained.
package eventstorage

import (
	"sync"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"github.com/eapache/queue"
)

// Ring is a FIFO of encoded events bounded by total byte size.
type Ring struct {
	mu       sync.Mutex
	events   *queue.Queue
	capacity int
	used     int
	dropped  uint64
}

// NewRing creates a ring holding at most capacity bytes of events.
func NewRing(capacity int) (*Ring, error) {
	if capacity <= 0 {
		return nil, errors.New().WithData(ErrInvalidCapacity, capacity)
	}

	return &Ring{
		events:   queue.New(),
		capacity: capacity,
	}, nil
}

func (r *Ring) Capacity() int {
	return r.capacity
}

// Write appends event. An event that does not fit in the free space is
// rejected and counted as dropped; nothing already stored is evicted.
func (r *Ring) Write(event []byte) error {
	errFactory := errors.New()

	if len(event) == 0 {
		return errFactory.New(ErrEmptyEvent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.used+len(event) > r.capacity {
		r.dropped++
		return errFactory.WithData(ErrStorageFull, struct {
			Size int
			Free int
		}{len(event), r.capacity - r.used})
	}

	r.events.Add(event)
	r.used += len(event)

	return nil
}

// Peek returns the oldest event without removing it.
func (r *Ring) Peek() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.events.Length() == 0 {
		return nil, false
	}

	return r.events.Peek().([]byte), true
}

// Pop removes and returns the oldest event.
func (r *Ring) Pop() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.events.Length() == 0 {
		return nil, false
	}

	event := r.events.Remove().([]byte)
	r.used -= len(event)

	return event, true
}

// Len returns the number of stored events.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.events.Length()
}

// Used returns the number of bytes held.
func (r *Ring) Used() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.used
}

// Dropped returns how many writes were rejected for lack of space.
func (r *Ring) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.dropped
}
