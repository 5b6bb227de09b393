//go:build linux

package platform

import (
	"time"

	"golang.org/x/sys/unix"
)

// MonotonicClock reads CLOCK_BOOTTIME, which keeps counting across suspend,
// so readings are milliseconds since the machine booted.
type MonotonicClock struct{}

func (MonotonicClock) NowMs() uint64 {
	var ts unix.Timespec
	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return uint64(time.Since(processStart).Milliseconds())
	}

	return uint64(ts.Nano() / int64(time.Millisecond))
}
