package heartbeat

import "math"

func addUnsigned(old uint32, delta int32) uint32 {
	sum := int64(old) + int64(delta)
	switch {
	case sum < 0:
		return 0
	case sum > math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(sum)
	}
}

func addSigned(old, delta int32) int32 {
	sum := int64(old) + int64(delta)
	switch {
	case sum < math.MinInt32:
		return math.MinInt32
	case sum > math.MaxInt32:
		return math.MaxInt32
	default:
		return int32(sum)
	}
}

// addElapsed adds a 64-bit millisecond delta to a 32-bit accumulator,
// clamping at MaxUint32.
func addElapsed(acc uint32, elapsed uint64) uint32 {
	if elapsed >= math.MaxUint32 || uint64(acc)+elapsed >= math.MaxUint32 {
		return math.MaxUint32
	}

	return acc + uint32(elapsed)
}
