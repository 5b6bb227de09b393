package heartbeat

import (
	"fmt"

	"codeberg.org/mutker/heartbeatd/internal/errors"
)

// MetricType is the closed set of value kinds a metric can hold.
type MetricType uint8

const (
	Unsigned MetricType = iota
	Signed
	Timer

	NumTypes = int(Timer) + 1
)

func (t MetricType) String() string {
	switch t {
	case Unsigned:
		return "unsigned"
	case Signed:
		return "signed"
	case Timer:
		return "timer"
	default:
		return fmt.Sprintf("MetricType(%d)", uint8(t))
	}
}

// MarshalText renders the type by name in JSON and logs.
func (t MetricType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *MetricType) UnmarshalText(b []byte) error {
	for c := Unsigned; c <= Timer; c++ {
		if c.String() == string(b) {
			*t = c
			return nil
		}
	}
	return errors.New().WithData(ErrInvalidArgument, string(b))
}

func (t MetricType) valid() bool {
	return t <= Timer
}

// Key names a metric in a Table.
type Key string

// Definition describes one metric.
type Definition struct {
	Name Key
	Type MetricType
}

// Table is a validated, immutable list of definitions. Position in the
// table is the metric's slot index.
type Table struct {
	defs  []Definition
	index map[Key]int
}

// NewTable validates defs and builds the key index.
func NewTable(defs ...Definition) (Table, error) {
	errFactory := errors.New()

	if len(defs) == 0 {
		return Table{}, errFactory.WithMessage(ErrInvalidTable, "metric table is empty")
	}

	index := make(map[Key]int, len(defs))
	for i, def := range defs {
		if def.Name == "" {
			return Table{}, errFactory.WithData(ErrInvalidTable, fmt.Sprintf("definition %d has no name", i))
		}
		if !def.Type.valid() {
			return Table{}, errFactory.WithData(ErrInvalidTable, fmt.Sprintf("%s has unknown type %d", def.Name, def.Type))
		}
		if _, dup := index[def.Name]; dup {
			return Table{}, errFactory.WithData(ErrInvalidTable, fmt.Sprintf("%s defined twice", def.Name))
		}
		index[def.Name] = i
	}

	return Table{
		defs:  append([]Definition(nil), defs...),
		index: index,
	}, nil
}

// MustTable is NewTable for compiled-in tables; it panics on an invalid table.
func MustTable(defs ...Definition) Table {
	t, err := NewTable(defs...)
	if err != nil {
		panic(err)
	}

	return t
}

// Len returns the number of metrics in the table.
func (t Table) Len() int {
	return len(t.defs)
}

// At returns the definition in slot i.
func (t Table) At(i int) Definition {
	return t.defs[i]
}

// Definitions returns a copy of the definitions in slot order.
func (t Table) Definitions() []Definition {
	return append([]Definition(nil), t.defs...)
}

// Lookup resolves key to its slot index.
func (t Table) Lookup(key Key) (int, bool) {
	i, ok := t.index[key]
	return i, ok
}
