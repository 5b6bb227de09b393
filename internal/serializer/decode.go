package serializer

import (
	"fmt"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"google.golang.org/protobuf/encoding/protowire"
)

// Event is a decoded heartbeat.
type Event struct {
	Sequence uint64            `json:"sequence"`
	UptimeMs uint64            `json:"uptime_ms"`
	Values   []heartbeat.Value `json:"values"`
}

// Decode parses an encoded event, naming metrics from t.
func Decode(b []byte, t heartbeat.Table) (Event, error) {
	errFactory := errors.New()

	var ev Event
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Event{}, errFactory.Wrap(ErrMalformedEvent, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSequence && typ == protowire.VarintType:
			ev.Sequence, n = protowire.ConsumeVarint(b)
		case num == fieldUptime && typ == protowire.VarintType:
			ev.UptimeMs, n = protowire.ConsumeVarint(b)
		case num == fieldMetric && typ == protowire.BytesType:
			var raw []byte
			raw, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				v, err := decodeMetric(raw, t)
				if err != nil {
					return Event{}, err
				}
				ev.Values = append(ev.Values, v)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return Event{}, errFactory.Wrap(ErrMalformedEvent, protowire.ParseError(n))
		}
		b = b[n:]
	}

	return ev, nil
}

func decodeMetric(b []byte, t heartbeat.Table) (heartbeat.Value, error) {
	errFactory := errors.New()

	var (
		v     heartbeat.Value
		index = -1
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return v, errFactory.Wrap(ErrMalformedEvent, protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return v, errFactory.Wrap(ErrMalformedEvent, protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}

		x, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return v, errFactory.Wrap(ErrMalformedEvent, protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldIndex:
			index = int(x)
		case fieldType:
			v.Type = heartbeat.MetricType(x)
		case fieldUnsigned:
			v.Unsigned = uint32(x)
		case fieldSigned:
			v.Signed = int32(protowire.DecodeZigZag(x))
		case fieldRunning:
			v.Running = protowire.DecodeBool(x)
		}
	}

	if index < 0 || index >= t.Len() {
		return v, errFactory.WithData(ErrUnknownMetric, fmt.Sprintf("index %d", index))
	}
	def := t.At(index)
	if def.Type != v.Type {
		return v, errFactory.WithData(ErrUnknownMetric, fmt.Sprintf("%s: encoded as %s", def.Name, v.Type))
	}
	v.Name = string(def.Name)

	return v, nil
}
