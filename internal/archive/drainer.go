package archive

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/heartbeat"
	"codeberg.org/mutker/heartbeatd/internal/logger"
	"codeberg.org/mutker/heartbeatd/internal/serializer"
)

// Drainer moves encoded heartbeats from event storage into a Recorder and
// forwards each archived event to the sinks.
type Drainer struct {
	source   Source
	recorder Recorder
	table    heartbeat.Table
	sinks    []Sink
	interval time.Duration
	logger   logger.Logger

	mu        sync.Mutex
	drained   uint64
	discarded uint64

	startOnce     sync.Once
	closeOnce     sync.Once
	flushTicker   *time.Ticker
	shutdownChan  chan struct{}
	flushDoneChan chan struct{}
}

func NewDrainer(source Source, recorder Recorder, table heartbeat.Table, interval time.Duration, log logger.Logger, sinks ...Sink) *Drainer {
	if interval <= 0 {
		interval = defaultDrainInterval
	}

	return &Drainer{
		source:        source,
		recorder:      recorder,
		table:         table,
		sinks:         sinks,
		interval:      interval,
		logger:        log,
		shutdownChan:  make(chan struct{}),
		flushDoneChan: make(chan struct{}),
	}
}

// Start launches the background drain loop.
func (d *Drainer) Start() {
	d.startOnce.Do(func() {
		d.flushTicker = time.NewTicker(d.interval)
		go d.flusher()
	})
}

func (d *Drainer) flusher() {
	defer close(d.flushDoneChan)

	for {
		select {
		case <-d.flushTicker.C:
			if _, err := d.Drain(context.Background()); err != nil {
				d.logger.Warn().Err(err).Msg("Heartbeat drain incomplete")
			}
		case <-d.shutdownChan:
			return
		}
	}
}

// Drain archives every event currently in the source. An event that cannot
// be decoded is discarded. An event that cannot be recorded stays at the
// head of the source for the next pass.
func (d *Drainer) Drain(ctx context.Context) (int, error) {
	errFactory := errors.New()

	d.mu.Lock()
	defer d.mu.Unlock()

	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, errFactory.Wrap(ErrOperationTimeout, err)
		}

		raw, ok := d.source.Peek()
		if !ok {
			return n, nil
		}

		event, err := serializer.Decode(raw, d.table)
		if err != nil {
			d.source.Pop()
			d.discarded++
			d.logger.Warn().Err(err).Int("bytes", len(raw)).Msg("Discarding undecodable heartbeat")
			continue
		}

		if err := d.recorder.Record(ctx, event); err != nil {
			return n, errFactory.Wrap(ErrDrainFailed, err)
		}
		d.source.Pop()
		d.drained++
		n++

		for _, s := range d.sinks {
			s.Observe(event)
		}
	}
}

// Stats returns the number of archived and discarded events.
func (d *Drainer) Stats() (drained, discarded uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.drained, d.discarded
}

// Close stops the loop and runs a final drain.
func (d *Drainer) Close(ctx context.Context) error {
	var err error
	d.closeOnce.Do(func() {
		close(d.shutdownChan)
		if d.flushTicker != nil {
			d.flushTicker.Stop()
			<-d.flushDoneChan
		}

		var n int
		n, err = d.Drain(ctx)
		d.logger.Debug().Int("events", n).Msg("Final heartbeat drain")
	})

	return err
}
