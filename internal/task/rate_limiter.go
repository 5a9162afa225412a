package task

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter gates task dispatch behind a token bucket. Tokens accrue at a
// fixed per-second rate up to the burst capacity; a rate of zero disables
// limiting entirely. Thin non-blocking wrapper around rate.Limiter, safe for
// concurrent use.
type RateLimiter struct {
	lim   *rate.Limiter
	burst float64

	// now is replaceable in tests.
	now func() time.Time
}

// NewRateLimiter creates a limiter granting ratePerSecond tokens per second
// with the given burst capacity. The bucket starts full.
func NewRateLimiter(ratePerSecond, burst float64) *RateLimiter {
	b := int(burst)
	if b < 1 {
		b = 1
	}
	l := &RateLimiter{
		burst: float64(b),
		now:   time.Now,
	}
	if ratePerSecond > 0 {
		l.lim = rate.NewLimiter(rate.Limit(ratePerSecond), b)
	}
	return l
}

// TryAcquire takes n tokens if available and returns true, else returns
// false without blocking.
func (l *RateLimiter) TryAcquire(n int) bool {
	if l.lim == nil {
		return true
	}
	return l.lim.AllowN(l.now(), n)
}

// Delay estimates how long until n tokens will be available. Returns zero if
// they already are. The reservation backing the estimate is cancelled
// immediately, so no tokens are consumed.
func (l *RateLimiter) Delay(n int) time.Duration {
	if l.lim == nil {
		return 0
	}
	now := l.now()
	r := l.lim.ReserveN(now, n)
	d := r.DelayFrom(now)
	r.CancelAt(now)
	return d
}

// Tokens returns the bucket's current token count.
func (l *RateLimiter) Tokens() float64 {
	if l.lim == nil {
		return l.burst
	}
	return l.lim.TokensAt(l.now())
}
