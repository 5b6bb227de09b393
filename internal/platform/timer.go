// Package platform provides the host implementations of the heartbeat
// clock and periodic timer.
package platform

import (
	"sync"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/logger"
)

var processStart = time.Now()

// Ticker runs a callback on a time.Ticker in its own goroutine.
type Ticker struct {
	mu      sync.Mutex
	ticker  *time.Ticker
	stop    chan struct{}
	done    chan struct{}
	started bool
	ticks   uint64
}

func NewTicker() *Ticker {
	return &Ticker{}
}

// Start begins invoking callback every period. A Ticker can be started once.
func (t *Ticker) Start(period time.Duration, callback func()) error {
	errFactory := errors.New()

	if period <= 0 {
		return errFactory.WithData(ErrInvalidPeriod, period)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started {
		return errFactory.New(ErrAlreadyStarted)
	}

	t.started = true
	t.ticker = time.NewTicker(period)
	t.stop = make(chan struct{})
	t.done = make(chan struct{})

	go t.run(t.ticker, t.stop, t.done, callback)

	logger.Debug().Dur("period", period).Msg("Periodic timer started")

	return nil
}

func (t *Ticker) run(ticker *time.Ticker, stop, done chan struct{}, callback func()) {
	defer close(done)

	for {
		select {
		case <-ticker.C:
			t.mu.Lock()
			t.ticks++
			t.mu.Unlock()
			callback()
		case <-stop:
			return
		}
	}
}

// Stop halts the ticker. It does not wait for a callback already running,
// so it is safe to call while holding a lock that callback takes.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stop == nil {
		return
	}

	t.ticker.Stop()
	close(t.stop)
	t.stop = nil
}

// Wait blocks until the goroutine started by Start has exited. Call after
// Stop.
func (t *Ticker) Wait() {
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()

	if done != nil {
		<-done
	}
}

// Ticks returns how many times the callback has been invoked.
func (t *Ticker) Ticks() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.ticks
}
