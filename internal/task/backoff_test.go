package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestExponentialBackoffDoubles(t *testing.T) {
	b := ExponentialBackoff{Base: 100 * time.Millisecond}

	assert.Equal(t, 100*time.Millisecond, b.Delay(1))
	assert.Equal(t, 200*time.Millisecond, b.Delay(2))
	assert.Equal(t, 400*time.Millisecond, b.Delay(3))
	assert.Equal(t, 800*time.Millisecond, b.Delay(4))
}

func TestExponentialBackoffMonotonic(t *testing.T) {
	b := ExponentialBackoff{Base: 50 * time.Millisecond}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 12; attempt++ {
		d := b.Delay(attempt)
		assert.GreaterOrEqual(t, d, prev, "delay for attempt %d regressed", attempt)
		prev = d
	}
}

func TestExponentialBackoffCap(t *testing.T) {
	b := ExponentialBackoff{Base: time.Second, Max: 5 * time.Second}

	assert.Equal(t, time.Second, b.Delay(1))
	assert.Equal(t, 4*time.Second, b.Delay(3))
	assert.Equal(t, 5*time.Second, b.Delay(4))
	assert.Equal(t, 5*time.Second, b.Delay(10))
}

func TestExponentialBackoffClampsAttempt(t *testing.T) {
	b := ExponentialBackoff{Base: time.Second}

	assert.Equal(t, time.Second, b.Delay(0))
	assert.Equal(t, time.Second, b.Delay(-3))
}
