// Package retry provides backoff algorithm implementations
package retry

import (
	"math"
	"math/rand/v2"
	"time"
)

// AdditiveJitter adds a uniformly random amount in [0, delay*ratio)
func AdditiveJitter(delay time.Duration, ratio float64) time.Duration {
	if ratio <= 0 || delay <= 0 {
		return delay
	}
	return delay + time.Duration(rand.Float64()*float64(delay)*ratio)
}

// exponentialDelay returns min(base * multiplier^(attempt-1), maxDelay)
func exponentialDelay(base time.Duration, multiplier float64, maxDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(base) * math.Pow(multiplier, float64(attempt-1))

	// limit maximum delay, also guards float overflow on large attempts
	if math.IsInf(delay, 0) || math.IsNaN(delay) || delay >= float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(delay)
}
