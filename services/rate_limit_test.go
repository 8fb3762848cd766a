package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(max int, window time.Duration) *Limiter {
	return NewLimiter(LimiterConfig{
		Name:              "test",
		MaxRequests:       max,
		Window:            window,
		TokensPerInterval: float64(max),
		Interval:          window,
	})
}

func TestLimiterAllowsUpToCapacity(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	now := time.Now()

	for i := 0; i < 5; i++ {
		res := l.admitAt("1.2.3.4", now)
		assert.True(t, res.Allowed, "request %d should be allowed", i+1)
	}

	res := l.admitAt("1.2.3.4", now)
	assert.False(t, res.Allowed)
	assert.Equal(t, 0, res.Remaining)
	assert.GreaterOrEqual(t, res.RetryAfter, time.Second)
}

func TestLimiterRemainingDecreases(t *testing.T) {
	l := newTestLimiter(3, time.Minute)
	now := time.Now()

	res := l.admitAt("k", now)
	assert.Equal(t, 2, res.Remaining)

	res = l.admitAt("k", now)
	assert.Equal(t, 1, res.Remaining)

	res = l.admitAt("k", now)
	assert.Equal(t, 0, res.Remaining)
}

func TestLimiterRecoversAfterWindow(t *testing.T) {
	l := newTestLimiter(2, time.Minute)
	now := time.Now()

	l.admitAt("k", now)
	l.admitAt("k", now)
	require.False(t, l.admitAt("k", now).Allowed)

	later := now.Add(time.Minute + time.Second)
	res := l.admitAt("k", later)
	assert.True(t, res.Allowed)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	now := time.Now()

	require.True(t, l.admitAt("a", now).Allowed)
	require.False(t, l.admitAt("a", now).Allowed)

	assert.True(t, l.admitAt("b", now).Allowed)
}

func TestLimiterRetryAfterReflectsWindow(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	now := time.Now()

	require.True(t, l.admitAt("k", now).Allowed)

	res := l.admitAt("k", now.Add(10*time.Second))
	require.False(t, res.Allowed)
	// Window clears 60s after the first admit, 50s from here
	assert.InDelta(t, 50, res.RetryAfter.Seconds(), 0.01)
}

func TestLimiterSweepRemovesIdleBuckets(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	now := time.Now()

	for i := 0; i < 10; i++ {
		l.admitAt(fmt.Sprintf("key-%d", i), now)
	}
	assert.Equal(t, 10, l.trackedKeys())

	removed := l.Sweep(now.Add(3 * time.Minute))
	assert.Equal(t, 10, removed)
	assert.Equal(t, 0, l.trackedKeys())

	// Second sweep finds nothing; sweeping is idempotent
	assert.Equal(t, 0, l.Sweep(now.Add(3*time.Minute)))
}

func TestLimiterSweepKeepsActiveBuckets(t *testing.T) {
	l := newTestLimiter(5, time.Minute)
	now := time.Now()

	l.admitAt("old", now)
	l.admitAt("fresh", now.Add(2*time.Minute))

	removed := l.Sweep(now.Add(2*time.Minute + time.Second))
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, l.trackedKeys())
}

func TestLimiterBehavesFreshAfterSweep(t *testing.T) {
	l := newTestLimiter(2, time.Minute)
	now := time.Now()

	l.admitAt("k", now)
	l.admitAt("k", now)
	require.False(t, l.admitAt("k", now).Allowed)

	later := now.Add(5 * time.Minute)
	l.Sweep(later)

	// Full allowance again, as if the key had never been seen
	assert.True(t, l.admitAt("k", later).Allowed)
	assert.True(t, l.admitAt("k", later).Allowed)
	assert.False(t, l.admitAt("k", later).Allowed)
}

func TestLimiterReset(t *testing.T) {
	l := newTestLimiter(1, time.Minute)
	now := time.Now()

	require.True(t, l.admitAt("k", now).Allowed)
	require.False(t, l.admitAt("k", now).Allowed)

	l.Reset("k")
	assert.True(t, l.admitAt("k", now).Allowed)
}
