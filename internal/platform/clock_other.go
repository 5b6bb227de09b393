//go:build !linux

package platform

import "time"

// MonotonicClock counts milliseconds since process start on Go's monotonic
// clock.
type MonotonicClock struct{}

func (MonotonicClock) NowMs() uint64 {
	return uint64(time.Since(processStart).Milliseconds())
}
