package heartbeat

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddUnsigned(t *testing.T) {
	tests := []struct {
		name  string
		old   uint32
		delta int32
		want  uint32
	}{
		{"plain", 100, 4, 104},
		{"negative", 100, -4, 96},
		{"floor", 3, -4, 0},
		{"min delta from zero", 0, math.MinInt32, 0},
		{"ceiling", math.MaxUint32 - 1, 2, math.MaxUint32},
		{"max delta twice", math.MaxInt32, math.MaxInt32, math.MaxUint32 - 1},
		{"max delta from max", math.MaxUint32, math.MaxInt32, math.MaxUint32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, addUnsigned(tt.old, tt.delta))
		})
	}
}

func TestAddSigned(t *testing.T) {
	tests := []struct {
		name  string
		old   int32
		delta int32
		want  int32
	}{
		{"plain", -100, 4, -96},
		{"ceiling", math.MaxInt32, math.MaxInt32, math.MaxInt32},
		{"just below ceiling", math.MaxInt32 - 1, 1, math.MaxInt32},
		{"floor", -100, math.MinInt32, math.MinInt32},
		{"floor from floor", math.MinInt32, -1, math.MinInt32},
		{"cross zero", -1, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, addSigned(tt.old, tt.delta))
		})
	}
}

func TestAddElapsed(t *testing.T) {
	assert.Equal(t, uint32(17), addElapsed(0, 17))
	assert.Equal(t, uint32(math.MaxUint32), addElapsed(1, math.MaxUint32-1))
	assert.Equal(t, uint32(math.MaxUint32-1), addElapsed(0, math.MaxUint32-1))
	assert.Equal(t, uint32(math.MaxUint32), addElapsed(0, 1<<33))
}

func TestElapsedAcrossSignBoundary(t *testing.T) {
	start := uint64(0x80000000 - 9)
	assert.Equal(t, uint64(17), elapsedMs(start, 0x80000008))
	assert.Equal(t, uint64(0), elapsedMs(10, 5), "a clock that steps back yields no time")
}

func TestTimerStateMachine(t *testing.T) {
	var ts timerState

	assert.False(t, ts.stop(5))
	assert.True(t, ts.start(5))
	assert.False(t, ts.start(6))
	assert.Equal(t, uint32(3), ts.read(8))

	ts.reset(8)
	assert.True(t, ts.running())
	assert.Equal(t, uint32(0), ts.read(8))
	assert.True(t, ts.stop(10))
	assert.Equal(t, uint32(2), ts.read(100))

	ts.reset(100)
	assert.False(t, ts.running())
	assert.Equal(t, uint32(0), ts.read(200))
}
