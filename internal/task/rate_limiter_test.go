package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(rate, burst float64, clock *fakeClock) *RateLimiter {
	l := NewRateLimiter(rate, burst)
	l.now = clock.now
	return l
}

func TestRateLimiterBurstThenDeny(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(2, 2, clock)

	assert.True(t, l.TryAcquire(1))
	assert.True(t, l.TryAcquire(1))
	assert.False(t, l.TryAcquire(1))
}

func TestRateLimiterRefill(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(2, 2, clock)

	require.True(t, l.TryAcquire(1))
	require.True(t, l.TryAcquire(1))
	require.False(t, l.TryAcquire(1))

	// 2/s means half a second buys one token back.
	clock.advance(500 * time.Millisecond)
	assert.True(t, l.TryAcquire(1))
	assert.False(t, l.TryAcquire(1))
}

func TestRateLimiterRefillCapsAtBurst(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(10, 3, clock)

	clock.advance(time.Hour)
	assert.InDelta(t, 3, l.Tokens(), 1e-9)
}

func TestRateLimiterConservation(t *testing.T) {
	// Over a window of length T the number of grants must not exceed
	// burst + rate*T.
	clock := newFakeClock()
	l := newTestLimiter(5, 3, clock)

	granted := 0
	for i := 0; i < 200; i++ {
		if l.TryAcquire(1) {
			granted++
		}
		clock.advance(10 * time.Millisecond)
	}

	elapsed := 2.0 // 200 * 10ms
	assert.LessOrEqual(t, float64(granted), 3+5*elapsed)
	// The bucket was kept saturated, so the bound is nearly tight.
	assert.GreaterOrEqual(t, float64(granted), 5*elapsed)
}

func TestRateLimiterDelay(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(2, 1, clock)

	assert.Equal(t, time.Duration(0), l.Delay(1))

	require.True(t, l.TryAcquire(1))
	assert.InDelta(t, float64(500*time.Millisecond), float64(l.Delay(1)), float64(time.Millisecond))

	clock.advance(250 * time.Millisecond)
	assert.InDelta(t, float64(250*time.Millisecond), float64(l.Delay(1)), float64(time.Millisecond))
}

func TestRateLimiterDelayConsumesNothing(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(2, 1, clock)

	require.True(t, l.TryAcquire(1))
	for i := 0; i < 10; i++ {
		l.Delay(1)
	}

	// The estimates above reserved no tokens: once the shortfall elapses
	// the next acquire succeeds.
	clock.advance(500 * time.Millisecond)
	assert.True(t, l.TryAcquire(1))
}

func TestRateLimiterTokensIntrospection(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(10, 2, clock)

	require.True(t, l.TryAcquire(1))
	require.True(t, l.TryAcquire(1))
	assert.InDelta(t, 0, l.Tokens(), 1e-9)

	clock.advance(50 * time.Millisecond)
	assert.InDelta(t, 0.5, l.Tokens(), 1e-9)
}

func TestRateLimiterDisabled(t *testing.T) {
	l := NewRateLimiter(0, 1)

	for i := 0; i < 100; i++ {
		assert.True(t, l.TryAcquire(1))
	}
	assert.Equal(t, time.Duration(0), l.Delay(1))
	assert.InDelta(t, 1, l.Tokens(), 1e-9)
}
