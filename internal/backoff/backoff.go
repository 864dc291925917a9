// Package backoff provides pluggable delay calculation for retry loops.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the delay to sleep before retry attempt number attempt
// (zero-based). Implementations must clamp their result to max.
type Strategy interface {
	Delay(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration
}

// Exponential grows the delay by multiplier per attempt and stretches it by a
// uniformly random amount up to jitter*delay.
type Exponential struct{}

// Delay implements Strategy.
func (Exponential) Delay(attempt int, initial, max time.Duration, multiplier, jitter float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}

	d := float64(initial)
	for i := 0; i < attempt; i++ {
		d *= multiplier
	}
	delay := time.Duration(d)
	if delay < 0 || delay > max {
		delay = max
	}

	if jitter = clamp(jitter); jitter > 0 {
		extra := time.Duration(float64(delay) * jitter * rand.Float64())
		if delay+extra > max {
			delay = max
		} else {
			delay += extra
		}
	}
	return delay
}

// Decorrelated draws each delay uniformly between initial and three raised to
// the attempt times initial, the decorrelated jitter scheme described in the
// AWS architecture blog. It smooths tail latency under contention compared to
// plain exponential jitter.
type Decorrelated struct{}

// Delay implements Strategy. The jitter and multiplier parameters are ignored;
// randomness is inherent to the scheme.
func (Decorrelated) Delay(attempt int, initial, max time.Duration, _, _ float64) time.Duration {
	if attempt <= 0 {
		return initial
	}
	if attempt > 10 {
		attempt = 10
	}

	base := float64(initial)
	upper := base
	for i := 0; i < attempt; i++ {
		upper *= 3
	}
	if upper > float64(max) || upper < 0 {
		upper = float64(max)
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rand.Float64()*(upper-base))
	if delay < 0 || delay > max {
		delay = max
	}
	return delay
}

func clamp(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}
