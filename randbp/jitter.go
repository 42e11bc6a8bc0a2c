package randbp

import (
	"math/rand/v2"
	"time"
)

// JitterRatio calculates the ratio to be multiplied by base, with +/- jitter.
//
// For example, JitterRatio(0.1) returns a float64 in [0.9, 1.1].
//
// jitter > 1 is normalized to 1. jitter <= 0 always returns 1.
func JitterRatio(jitter float64) float64 {
	if jitter <= 0 {
		return 1
	}
	if jitter > 1 {
		jitter = 1
	}
	return 1 - (rand.Float64()*2-1)*jitter
}

// JitterDuration returns center +/- center*jitter.
//
// See JitterRatio for the accepted jitter values.
func JitterDuration(center time.Duration, jitter float64) time.Duration {
	return time.Duration(float64(center) * JitterRatio(jitter))
}

// UpTo returns a random duration in [0, max), or 0 when max <= 0.
func UpTo(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return rand.N(max)
}
