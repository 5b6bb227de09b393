package heartbeat

import (
	"sync"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/logger"
)

// DefaultPeriod is the heartbeat interval used when none is configured.
const DefaultPeriod = time.Hour

// Session owns the metric store and drives its collection cycle. Every
// exported method holds the session lock for its whole duration.
type Session struct {
	mu         sync.Locker
	store      store
	timer      PeriodicTimer
	collector  Collector
	serializer Serializer
	period     time.Duration
	log        logger.Logger

	booted  bool
	storage EventStorage
	cycles  uint64
}

// Option configures a Session.
type Option func(*Session)

// WithTable replaces DefaultTable.
func WithTable(t Table) Option {
	return func(s *Session) {
		s.store.table = t
	}
}

func WithClock(c Clock) Option {
	return func(s *Session) {
		s.store.clock = c
	}
}

func WithTimer(t PeriodicTimer) Option {
	return func(s *Session) {
		s.timer = t
	}
}

func WithCollector(c Collector) Option {
	return func(s *Session) {
		s.collector = c
	}
}

func WithSerializer(sz Serializer) Option {
	return func(s *Session) {
		s.serializer = sz
	}
}

// WithLocker replaces the default sync.Mutex. The locker need not be
// reentrant.
func WithLocker(l sync.Locker) Option {
	return func(s *Session) {
		s.mu = l
	}
}

func WithPeriod(d time.Duration) Option {
	return func(s *Session) {
		s.period = d
	}
}

func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		s.log = l
	}
}

// New builds a session with every slot at baseline. A periodic timer and a
// serializer are required.
func New(opts ...Option) (*Session, error) {
	errFactory := errors.New()

	s := &Session{
		mu:        &sync.Mutex{},
		store:     store{table: DefaultTable, clock: systemClock{start: time.Now()}},
		collector: noopCollector{},
		period:    DefaultPeriod,
		log:       logger.Default().With("heartbeat"),
	}
	for _, opt := range opts {
		opt(s)
	}

	switch {
	case s.timer == nil:
		return nil, errFactory.WithMessage(ErrInvalidArgument, "periodic timer is required")
	case s.serializer == nil:
		return nil, errFactory.WithMessage(ErrInvalidArgument, "serializer is required")
	case s.store.clock == nil || s.mu == nil || s.collector == nil:
		return nil, errFactory.WithMessage(ErrInvalidArgument, "nil collaborator")
	case s.period <= 0:
		return nil, errFactory.WithData(errors.ErrInvalidInterval, s.period)
	case s.store.table.Len() == 0:
		return nil, errFactory.WithMessage(ErrInvalidTable, "metric table is empty")
	}

	s.store = newStore(s.store.table, s.store.clock)

	return s, nil
}

// Boot starts the periodic timer and validates that storage can hold a
// worst-case heartbeat.
func (s *Session) Boot(storage EventStorage) error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if storage == nil {
		return errFactory.WithMessage(ErrInvalidArgument, "event storage is nil")
	}
	if s.booted {
		return errFactory.WithMessage(ErrInvalidState, "already booted")
	}

	if err := s.timer.Start(s.period, s.onTimer); err != nil {
		return errFactory.Wrap(ErrTimerInitFailed, err)
	}

	need, have := s.serializer.WorstCaseSize(s.store.table), storage.Capacity()
	if need > have {
		s.log.Warn().
			Int("needed", need).
			Int("capacity", have).
			Msg("Event storage too small to hold a heartbeat")
		if st, ok := s.timer.(Stopper); ok {
			st.Stop()
		}
		return errFactory.WithData(ErrStorageTooSmall, struct {
			Needed   int
			Capacity int
		}{need, have})
	}

	s.storage = storage
	s.store.clear()
	s.booted = true

	s.log.Debug().
		Dur("period", s.period).
		Int("metrics", s.store.table.Len()).
		Int("worst_case_size", need).
		Msg("Heartbeat metrics booted")

	return nil
}

func (s *Session) onTimer() {
	if err := s.CollectAndSerialize(); err != nil {
		s.log.Warn().Err(err).Msg("Heartbeat collection failed")
	}
}

// CollectAndSerialize runs one collection cycle: the collector hook, the
// serializer, then a reset of every slot. The reset happens even when
// serialization fails.
func (s *Session) CollectAndSerialize() error {
	errFactory := errors.New()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.booted {
		return errFactory.New(ErrNotBooted)
	}

	v := view{s: &s.store}
	if err := s.collector.CollectData(v); err != nil {
		s.log.Warn().Err(err).Msg("Heartbeat data collection incomplete")
	}

	serializeErr := s.serializer.Serialize(s.storage, v)
	s.store.reset()
	s.cycles++

	if serializeErr != nil {
		return errFactory.Wrap(ErrSerializeFailed, serializeErr)
	}

	s.log.Debug().Uint64("cycle", s.cycles).Msg("Heartbeat serialized")

	return nil
}

// DebugTrigger forces a collection cycle now.
func (s *Session) DebugTrigger() error {
	return s.CollectAndSerialize()
}

// DebugPrint logs the current value of every metric.
func (s *Session) DebugPrint() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.store.snapshot() {
		e := s.log.Info().Str("metric", v.Name).Stringer("type", v.Type)
		switch v.Type {
		case Signed:
			e.Int32("value", v.Signed)
		case Timer:
			e.Uint32("value", v.Unsigned).Bool("running", v.Running)
		default:
			e.Uint32("value", v.Unsigned)
		}
		e.Msg("Heartbeat metric")
	}
}

// NumMetrics returns the number of defined metrics.
func (s *Session) NumMetrics() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.table.Len()
}

// Booted reports whether Boot has succeeded.
func (s *Session) Booted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.booted
}

// Cycles returns the number of completed collection cycles.
func (s *Session) Cycles() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.cycles
}

// Close stops the periodic timer if it supports it. The lock is not held
// while stopping so that an in-flight cycle can finish.
func (s *Session) Close() {
	s.mu.Lock()
	s.booted = false
	s.mu.Unlock()

	if st, ok := s.timer.(Stopper); ok {
		st.Stop()
	}
}

func (s *Session) SetUnsigned(key Key, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.setUnsigned(key, value)
}

func (s *Session) SetSigned(key Key, value int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.setSigned(key, value)
}

// Add applies delta to an Unsigned or Signed metric, saturating at the
// bounds of the metric's type.
func (s *Session) Add(key Key, delta int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.add(key, delta)
}

func (s *Session) ReadUnsigned(key Key, out *uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.readUnsigned(key, out)
}

func (s *Session) ReadSigned(key Key, out *int32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.readSigned(key, out)
}

func (s *Session) TimerStart(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.timerStart(key)
}

func (s *Session) TimerStop(key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.timerStop(key)
}

// TimerRead reports accumulated time, including the in-progress interval of
// a running timer.
func (s *Session) TimerRead(key Key, out *uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.timerRead(key, out)
}

// Snapshot copies every slot under a single lock acquisition.
func (s *Session) Snapshot() []Value {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.store.snapshot()
}

func (s *Session) Table() Table {
	return s.store.table
}

type noopCollector struct{}

func (noopCollector) CollectData(Metrics) error {
	return nil
}

// systemClock measures from process start on Go's monotonic clock.
type systemClock struct {
	start time.Time
}

func (c systemClock) NowMs() uint64 {
	return uint64(time.Since(c.start).Milliseconds())
}
