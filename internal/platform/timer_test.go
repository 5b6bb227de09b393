package platform_test

import (
	"sync/atomic"
	"testing"
	"time"

	"codeberg.org/mutker/heartbeatd/internal/errors"
	"codeberg.org/mutker/heartbeatd/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTickerInvokesCallback(t *testing.T) {
	tk := platform.NewTicker()

	var calls atomic.Int32
	require.NoError(t, tk.Start(5*time.Millisecond, func() { calls.Add(1) }))

	assert.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)

	tk.Stop()
	tk.Wait()
	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no callbacks after Stop")
	assert.Equal(t, uint64(after), tk.Ticks())

	tk.Stop()
}

func TestTickerRejectsBadStart(t *testing.T) {
	tk := platform.NewTicker()

	err := tk.Start(0, func() {})
	assert.True(t, errors.IsCode(err, platform.ErrInvalidPeriod))

	require.NoError(t, tk.Start(time.Hour, func() {}))
	err = tk.Start(time.Hour, func() {})
	assert.True(t, errors.IsCode(err, platform.ErrAlreadyStarted))

	tk.Stop()
	tk.Wait()
}

func TestStopBeforeStart(t *testing.T) {
	tk := platform.NewTicker()
	tk.Stop()
	tk.Wait()
}

func TestMonotonicClockNonDecreasing(t *testing.T) {
	var c platform.MonotonicClock

	prev := c.NowMs()
	for i := 0; i < 1000; i++ {
		now := c.NowMs()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}

	time.Sleep(15 * time.Millisecond)
	assert.GreaterOrEqual(t, c.NowMs()-prev, uint64(10))
}
