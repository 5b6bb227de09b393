package heartbeat

import "time"

// Clock supplies a monotonic millisecond reading, non-decreasing for the
// lifetime of the process.
type Clock interface {
	NowMs() uint64
}

// PeriodicTimer invokes callback roughly every period. Start must not call
// callback synchronously.
type PeriodicTimer interface {
	Start(period time.Duration, callback func()) error
}

// Stopper is implemented by periodic timers that can be deregistered.
type Stopper interface {
	Stop()
}

// Collector lets the platform populate metrics right before serialization.
// The Metrics handed in is only valid for the duration of the call.
type Collector interface {
	CollectData(m Metrics) error
}

// Serializer writes the current snapshot into event storage.
type Serializer interface {
	Serialize(storage EventStorage, r Reader) error
	// WorstCaseSize is the largest encoding a snapshot of t can produce.
	WorstCaseSize(t Table) int
}

// EventStorage is the opaque destination of serialized heartbeats.
type EventStorage interface {
	Capacity() int
	Write(event []byte) error
}

// Reader is the read-only half of the metric operations.
type Reader interface {
	ReadUnsigned(key Key, out *uint32) error
	ReadSigned(key Key, out *int32) error
	TimerRead(key Key, out *uint32) error
	Snapshot() []Value
	Table() Table
}

// Metrics is the full set of metric operations.
type Metrics interface {
	Reader
	SetUnsigned(key Key, value uint32) error
	SetSigned(key Key, value int32) error
	Add(key Key, delta int32) error
	TimerStart(key Key) error
	TimerStop(key Key) error
}

// Value is a point-in-time copy of one slot. Timer slots report their
// elapsed milliseconds in Unsigned.
type Value struct {
	Name     string     `json:"name"`
	Type     MetricType `json:"type"`
	Unsigned uint32     `json:"unsigned,omitempty"`
	Signed   int32      `json:"signed,omitempty"`
	Running  bool       `json:"running,omitempty"`
}

// Int64 returns the slot value widened to int64 regardless of type.
func (v Value) Int64() int64 {
	if v.Type == Signed {
		return int64(v.Signed)
	}

	return int64(v.Unsigned)
}
