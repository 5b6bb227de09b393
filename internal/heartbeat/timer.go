package heartbeat

type timerPhase uint8

const (
	timerIdle timerPhase = iota
	timerRunning
)

// timerState is the running/idle machine behind a Timer slot. startMs is
// meaningful only in timerRunning.
type timerState struct {
	accumulated uint32
	phase       timerPhase
	startMs     uint64
}

func (t *timerState) running() bool {
	return t.phase == timerRunning
}

func (t *timerState) start(now uint64) bool {
	if t.running() {
		return false
	}
	t.phase = timerRunning
	t.startMs = now

	return true
}

func (t *timerState) stop(now uint64) bool {
	if !t.running() {
		return false
	}
	t.accumulated = addElapsed(t.accumulated, elapsedMs(t.startMs, now))
	t.phase = timerIdle
	t.startMs = 0

	return true
}

func (t *timerState) read(now uint64) uint32 {
	if !t.running() {
		return t.accumulated
	}

	return addElapsed(t.accumulated, elapsedMs(t.startMs, now))
}

// reset clears the accumulated time. A running timer keeps running from now.
func (t *timerState) reset(now uint64) {
	t.accumulated = 0
	if t.running() {
		t.startMs = now
	}
}

// elapsedMs subtracts in the full unsigned 64-bit domain.
func elapsedMs(start, now uint64) uint64 {
	if now < start {
		return 0
	}

	return now - start
}
