package task

import (
	"math"
	"time"
)

// ExponentialBackoff computes retry delays that double with every attempt:
// Base * 2^(attempt-1), capped at Max when Max is positive.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// Delay returns how long to wait before retry attempt n (1-indexed).
// Attempt 1 is the first retry after the initial failure.
func (b ExponentialBackoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(b.Base) * math.Pow(2, float64(attempt-1)))
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}
