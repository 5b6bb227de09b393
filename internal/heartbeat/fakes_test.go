package heartbeat_test

import (
	stderrors "errors"
	"sync"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
)

const (
	keyUnsigned heartbeat.Key = "test_key_unsigned"
	keySigned   heartbeat.Key = "test_key_signed"
	keyTimer    heartbeat.Key = "test_key_timer"

	fakeStorageSize = 100
)

var testTable = heartbeat.MustTable(
	heartbeat.Definition{Name: keyUnsigned, Type: heartbeat.Unsigned},
	heartbeat.Definition{Name: keySigned, Type: heartbeat.Signed},
	heartbeat.Definition{Name: keyTimer, Type: heartbeat.Timer},
)

type countingLocker struct {
	mu       sync.Mutex
	locks    int
	unlocks  int
	counters sync.Mutex
}

func (l *countingLocker) Lock() {
	l.mu.Lock()
	l.counters.Lock()
	l.locks++
	l.counters.Unlock()
}

func (l *countingLocker) Unlock() {
	l.counters.Lock()
	l.unlocks++
	l.counters.Unlock()
	l.mu.Unlock()
}

func (l *countingLocker) balanced() bool {
	l.counters.Lock()
	defer l.counters.Unlock()
	return l.locks == l.unlocks
}

type fakeClock struct {
	ms uint64
}

func (c *fakeClock) NowMs() uint64     { return c.ms }
func (c *fakeClock) set(ms uint64)     { c.ms = ms }
func (c *fakeClock) advance(ms uint64) { c.ms += ms }

type fakeTimer struct {
	periods  []time.Duration
	callback func()
	fail     bool
	stopped  int
}

func (t *fakeTimer) Start(period time.Duration, callback func()) error {
	t.periods = append(t.periods, period)
	if t.fail {
		return stderrors.New("no timer available")
	}
	t.callback = callback
	return nil
}

func (t *fakeTimer) Stop() {
	t.stopped++
}

type fakeStorage struct {
	capacity int
	events   [][]byte
}

func (s *fakeStorage) Capacity() int { return s.capacity }

func (s *fakeStorage) Write(event []byte) error {
	s.events = append(s.events, event)
	return nil
}

type recorder struct {
	calls []string
}

type fakeSerializer struct {
	rec       *recorder
	worstCase int
	fail      error
	check     func(r heartbeat.Reader)
	snapshots [][]heartbeat.Value
}

func (f *fakeSerializer) Serialize(storage heartbeat.EventStorage, r heartbeat.Reader) error {
	f.rec.calls = append(f.rec.calls, "serialize")
	if f.check != nil {
		f.check(r)
	}
	f.snapshots = append(f.snapshots, r.Snapshot())
	if f.fail != nil {
		return f.fail
	}
	return storage.Write([]byte("heartbeat"))
}

func (f *fakeSerializer) WorstCaseSize(heartbeat.Table) int {
	f.rec.calls = append(f.rec.calls, "worst_case_size")
	return f.worstCase
}

type fakeCollector struct {
	rec     *recorder
	collect func(m heartbeat.Metrics) error
}

func (c *fakeCollector) CollectData(m heartbeat.Metrics) error {
	c.rec.calls = append(c.rec.calls, "collect_data")
	if c.collect != nil {
		return c.collect(m)
	}
	return nil
}

type harness struct {
	session    *heartbeat.Session
	locker     *countingLocker
	clock      *fakeClock
	timer      *fakeTimer
	storage    *fakeStorage
	serializer *fakeSerializer
	collector  *fakeCollector
	rec        *recorder
}

func newHarness() *harness {
	rec := &recorder{}
	h := &harness{
		locker:     &countingLocker{},
		clock:      &fakeClock{},
		timer:      &fakeTimer{},
		storage:    &fakeStorage{capacity: fakeStorageSize},
		serializer: &fakeSerializer{rec: rec, worstCase: fakeStorageSize},
		collector:  &fakeCollector{rec: rec},
		rec:        rec,
	}

	s, err := heartbeat.New(
		heartbeat.WithTable(testTable),
		heartbeat.WithLocker(h.locker),
		heartbeat.WithClock(h.clock),
		heartbeat.WithTimer(h.timer),
		heartbeat.WithSerializer(h.serializer),
		heartbeat.WithCollector(h.collector),
	)
	if err != nil {
		panic(err)
	}
	h.session = s

	return h
}
