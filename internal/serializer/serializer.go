// Package serializer encodes heartbeat snapshots in protobuf wire format.
//
// An event is
//
//	1: sequence  (varint)
//	2: uptime_ms (varint)
//	3: metric    (bytes, repeated)
//
// and each metric is
//
//	1: index    (varint, slot position in the table)
//	2: type     (varint)
//	3: unsigned (varint)   or   4: signed (zigzag varint)
//	5: running  (varint, timers only)
//
// Every field is always written, which keeps the worst-case size a simple sum.
package serializer

import (
	"math"
	"sync/atomic"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldSequence protowire.Number = 1
	fieldUptime   protowire.Number = 2
	fieldMetric   protowire.Number = 3

	fieldIndex    protowire.Number = 1
	fieldType     protowire.Number = 2
	fieldUnsigned protowire.Number = 3
	fieldSigned   protowire.Number = 4
	fieldRunning  protowire.Number = 5

	maxVarint32 = 5
	maxVarint64 = 10
)

// Encoder implements heartbeat.Serializer.
type Encoder struct {
	clock    heartbeat.Clock
	sequence atomic.Uint64
}

func New(clock heartbeat.Clock) *Encoder {
	return &Encoder{clock: clock}
}

// Serialize encodes the snapshot of r and writes it to storage as one event.
func (e *Encoder) Serialize(storage heartbeat.EventStorage, r heartbeat.Reader) error {
	errFactory := errors.New()

	values := r.Snapshot()
	event := e.encode(e.sequence.Add(1), e.clock.NowMs(), values, e.WorstCaseSize(r.Table()))

	if err := storage.Write(event); err != nil {
		return errFactory.Wrap(ErrStorageWrite, err)
	}

	return nil
}

func (e *Encoder) encode(seq, uptime uint64, values []heartbeat.Value, sizeHint int) []byte {
	b := make([]byte, 0, sizeHint)
	b = protowire.AppendTag(b, fieldSequence, protowire.VarintType)
	b = protowire.AppendVarint(b, seq)
	b = protowire.AppendTag(b, fieldUptime, protowire.VarintType)
	b = protowire.AppendVarint(b, uptime)

	var m []byte
	for i, v := range values {
		m = appendMetric(m[:0], i, v)
		b = protowire.AppendTag(b, fieldMetric, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	return b
}

func appendMetric(b []byte, index int, v heartbeat.Value) []byte {
	b = protowire.AppendTag(b, fieldIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(index))
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v.Type))

	switch v.Type {
	case heartbeat.Signed:
		b = protowire.AppendTag(b, fieldSigned, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(v.Signed)))
	case heartbeat.Timer:
		b = protowire.AppendTag(b, fieldUnsigned, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Unsigned))
		b = protowire.AppendTag(b, fieldRunning, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(v.Running))
	default:
		b = protowire.AppendTag(b, fieldUnsigned, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Unsigned))
	}

	return b
}

// WorstCaseSize returns the largest event a snapshot of t can encode to.
func (e *Encoder) WorstCaseSize(t heartbeat.Table) int {
	return WorstCaseSize(t)
}

// WorstCaseSize is the package-level form of Encoder.WorstCaseSize.
func WorstCaseSize(t heartbeat.Table) int {
	size := protowire.SizeTag(fieldSequence) + maxVarint64 +
		protowire.SizeTag(fieldUptime) + maxVarint64

	for i := 0; i < t.Len(); i++ {
		size += protowire.SizeTag(fieldMetric) + protowire.SizeBytes(maxMetricSize(i, t.At(i).Type))
	}

	return size
}

func maxMetricSize(index int, typ heartbeat.MetricType) int {
	n := protowire.SizeTag(fieldIndex) + protowire.SizeVarint(uint64(index)) +
		protowire.SizeTag(fieldType) + protowire.SizeVarint(uint64(typ))

	switch typ {
	case heartbeat.Signed:
		n += protowire.SizeTag(fieldSigned) + protowire.SizeVarint(protowire.EncodeZigZag(math.MinInt32))
	case heartbeat.Timer:
		n += protowire.SizeTag(fieldUnsigned) + maxVarint32
		n += protowire.SizeTag(fieldRunning) + 1
	default:
		n += protowire.SizeTag(fieldUnsigned) + maxVarint32
	}

	return n
}
