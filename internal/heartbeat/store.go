package heartbeat

import "codeberg.org/mutker/heartbeatd/internal/errors"

type slot struct {
	unsigned uint32
	signed   int32
	timer    timerState
}

// store is the fixed slot array. None of its methods lock; the owning
// Session serializes access.
type store struct {
	table Table
	slots []slot
	clock Clock
}

func newStore(table Table, clock Clock) store {
	return store{
		table: table,
		slots: make([]slot, table.Len()),
		clock: clock,
	}
}

// resolve finds the slot for key and checks that it holds want.
func (s *store) resolve(key Key, want MetricType) (*slot, error) {
	errFactory := errors.New()

	i, ok := s.table.Lookup(key)
	if !ok {
		return nil, errFactory.WithData(ErrKeyNotFound, key)
	}
	if have := s.table.At(i).Type; have != want {
		return nil, errFactory.WithData(ErrTypeMismatch, mismatch{Key: key, Want: want, Have: have})
	}

	return &s.slots[i], nil
}

// resolveCounter accepts either Unsigned or Signed slots.
func (s *store) resolveCounter(key Key) (*slot, MetricType, error) {
	errFactory := errors.New()

	i, ok := s.table.Lookup(key)
	if !ok {
		return nil, 0, errFactory.WithData(ErrKeyNotFound, key)
	}
	typ := s.table.At(i).Type
	if typ == Timer {
		return nil, 0, errFactory.WithData(ErrTypeMismatch, mismatch{Key: key, Want: Unsigned, Have: Timer})
	}

	return &s.slots[i], typ, nil
}

func (s *store) setUnsigned(key Key, value uint32) error {
	sl, err := s.resolve(key, Unsigned)
	if err != nil {
		return err
	}
	sl.unsigned = value

	return nil
}

func (s *store) setSigned(key Key, value int32) error {
	sl, err := s.resolve(key, Signed)
	if err != nil {
		return err
	}
	sl.signed = value

	return nil
}

func (s *store) add(key Key, delta int32) error {
	sl, typ, err := s.resolveCounter(key)
	if err != nil {
		return err
	}
	if typ == Signed {
		sl.signed = addSigned(sl.signed, delta)
	} else {
		sl.unsigned = addUnsigned(sl.unsigned, delta)
	}

	return nil
}

func (s *store) readUnsigned(key Key, out *uint32) error {
	if out == nil {
		return errors.New().WithMessage(ErrInvalidArgument, "nil destination")
	}
	sl, err := s.resolve(key, Unsigned)
	if err != nil {
		return err
	}
	*out = sl.unsigned

	return nil
}

func (s *store) readSigned(key Key, out *int32) error {
	if out == nil {
		return errors.New().WithMessage(ErrInvalidArgument, "nil destination")
	}
	sl, err := s.resolve(key, Signed)
	if err != nil {
		return err
	}
	*out = sl.signed

	return nil
}

func (s *store) timerStart(key Key) error {
	sl, err := s.resolve(key, Timer)
	if err != nil {
		return err
	}
	if !sl.timer.start(s.clock.NowMs()) {
		return errors.New().WithData(ErrInvalidState, "timer "+string(key)+" already running")
	}

	return nil
}

func (s *store) timerStop(key Key) error {
	sl, err := s.resolve(key, Timer)
	if err != nil {
		return err
	}
	if !sl.timer.stop(s.clock.NowMs()) {
		return errors.New().WithData(ErrInvalidState, "timer "+string(key)+" not running")
	}

	return nil
}

func (s *store) timerRead(key Key, out *uint32) error {
	if out == nil {
		return errors.New().WithMessage(ErrInvalidArgument, "nil destination")
	}
	sl, err := s.resolve(key, Timer)
	if err != nil {
		return err
	}
	*out = sl.timer.read(s.clock.NowMs())

	return nil
}

// reset returns every slot to its baseline. Running timers stay running,
// re-anchored at the current time.
func (s *store) reset() {
	now := s.clock.NowMs()
	for i := range s.slots {
		s.slots[i].unsigned = 0
		s.slots[i].signed = 0
		s.slots[i].timer.reset(now)
	}
}

// clear drops all state including running timers. Used at boot.
func (s *store) clear() {
	for i := range s.slots {
		s.slots[i] = slot{}
	}
}

func (s *store) snapshot() []Value {
	now := s.clock.NowMs()
	values := make([]Value, len(s.slots))
	for i := range s.slots {
		def := s.table.At(i)
		v := Value{Name: string(def.Name), Type: def.Type}
		switch def.Type {
		case Unsigned:
			v.Unsigned = s.slots[i].unsigned
		case Signed:
			v.Signed = s.slots[i].signed
		case Timer:
			v.Unsigned = s.slots[i].timer.read(now)
			v.Running = s.slots[i].timer.running()
		}
		values[i] = v
	}

	return values
}

// view exposes the store through the Metrics interface without locking.
// Collection hooks receive one while the session lock is held.
type view struct {
	s *store
}

func (v view) SetUnsigned(key Key, value uint32) error { return v.s.setUnsigned(key, value) }
func (v view) SetSigned(key Key, value int32) error    { return v.s.setSigned(key, value) }
func (v view) Add(key Key, delta int32) error          { return v.s.add(key, delta) }
func (v view) ReadUnsigned(key Key, out *uint32) error { return v.s.readUnsigned(key, out) }
func (v view) ReadSigned(key Key, out *int32) error    { return v.s.readSigned(key, out) }
func (v view) TimerStart(key Key) error                { return v.s.timerStart(key) }
func (v view) TimerStop(key Key) error                 { return v.s.timerStop(key) }
func (v view) TimerRead(key Key, out *uint32) error    { return v.s.timerRead(key, out) }
func (v view) Snapshot() []Value                       { return v.s.snapshot() }
func (v view) Table() Table                            { return v.s.table }
