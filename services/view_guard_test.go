package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGuard(mode SuspicionMode) (*ViewGuard, *ViewAnalytics) {
	analytics := NewViewAnalytics(DefaultAnalyticsConfig())
	guard := NewViewGuard(5, time.Hour, mode, analytics)
	return guard, analytics
}

func TestViewGuardAllowsBelowThreshold(t *testing.T) {
	guard, _ := newTestGuard(SuspicionPermissive)
	now := time.Now()

	for i := 0; i < 5; i++ {
		suspicious, shouldCount := guard.ValidateView("1.2.3.4", "Mozilla/5.0", "en-US", "post-1", now.Add(time.Duration(i)*time.Minute))
		assert.False(t, suspicious, "attempt %d", i+1)
		assert.True(t, shouldCount, "attempt %d", i+1)
	}
}

func TestViewGuardFlagsSixthAttempt(t *testing.T) {
	guard, _ := newTestGuard(SuspicionPermissive)
	now := time.Now()

	for i := 0; i < 5; i++ {
		guard.ValidateView("1.2.3.4", "Mozilla/5.0", "en-US", "post-1", now)
	}

	suspicious, shouldCount := guard.ValidateView("1.2.3.4", "Mozilla/5.0", "en-US", "post-1", now)
	assert.True(t, suspicious)
	// Permissive mode still counts the view
	assert.True(t, shouldCount)
}

func TestViewGuardStrictModeBlocks(t *testing.T) {
	guard, _ := newTestGuard(SuspicionStrict)
	now := time.Now()

	for i := 0; i < 5; i++ {
		guard.ValidateView("1.2.3.4", "Mozilla/5.0", "en-US", "post-1", now)
	}

	suspicious, shouldCount := guard.ValidateView("1.2.3.4", "Mozilla/5.0", "en-US", "post-1", now)
	assert.True(t, suspicious)
	assert.False(t, shouldCount)
}

func TestViewGuardWindowExpires(t *testing.T) {
	guard, _ := newTestGuard(SuspicionStrict)
	now := time.Now()

	for i := 0; i < 5; i++ {
		guard.ValidateView("1.2.3.4", "Mozilla/5.0", "en-US", "post-1", now)
	}

	// Past the window the old attempts no longer count against the client
	suspicious, shouldCount := guard.ValidateView("1.2.3.4", "Mozilla/5.0", "en-US", "post-1", now.Add(time.Hour+time.Minute))
	assert.False(t, suspicious)
	assert.True(t, shouldCount)
}

func TestViewGuardDistinguishesFingerprints(t *testing.T) {
	guard, _ := newTestGuard(SuspicionStrict)
	now := time.Now()

	for i := 0; i < 5; i++ {
		guard.ValidateView("1.2.3.4", "Mozilla/5.0", "en-US", "post-1", now)
	}

	// Different user agent means a different fingerprint
	suspicious, shouldCount := guard.ValidateView("1.2.3.4", "curl/8.0", "en-US", "post-1", now)
	assert.False(t, suspicious)
	assert.True(t, shouldCount)
}

func TestViewGuardFlaggedIPShortCircuits(t *testing.T) {
	guard, analytics := newTestGuard(SuspicionStrict)
	now := time.Now()

	// Trip the hourly volume heuristic
	for i := 0; i < 51; i++ {
		analytics.RecordAttempt("6.6.6.6", "post-1", false, "Mozilla/5.0", now)
	}
	require.True(t, analytics.IsSuspicious("6.6.6.6"))

	// First sighting by the guard, but the analytics flag wins immediately
	suspicious, shouldCount := guard.ValidateView("6.6.6.6", "Mozilla/5.0", "en-US", "post-2", now)
	assert.True(t, suspicious)
	assert.False(t, shouldCount)
}

func TestViewGuardFlaggedIPCountsInPermissiveMode(t *testing.T) {
	guard, analytics := newTestGuard(SuspicionPermissive)
	now := time.Now()

	for i := 0; i < 51; i++ {
		analytics.RecordAttempt("6.6.6.6", "post-1", false, "Mozilla/5.0", now)
	}
	require.True(t, analytics.IsSuspicious("6.6.6.6"))

	suspicious, shouldCount := guard.ValidateView("6.6.6.6", "Mozilla/5.0", "en-US", "post-2", now)
	assert.True(t, suspicious)
	assert.True(t, shouldCount)
}

func TestViewGuardSweep(t *testing.T) {
	guard, _ := newTestGuard(SuspicionPermissive)
	now := time.Now()

	for i := 0; i < 4; i++ {
		guard.ValidateView("1.2.3.4", "Mozilla/5.0", "en-US", fmt.Sprintf("post-%d", i), now)
	}

	removed := guard.Sweep(now.Add(2 * time.Hour))
	assert.Equal(t, 4, removed)

	// Second sweep is a no-op
	assert.Equal(t, 0, guard.Sweep(now.Add(2*time.Hour)))
}

func TestFingerprintIsStable(t *testing.T) {
	a := Fingerprint("1.2.3.4", "Mozilla/5.0", "en-US")
	b := Fingerprint("1.2.3.4", "Mozilla/5.0", "en-US")
	c := Fingerprint("1.2.3.4", "Mozilla/5.0", "fr-FR")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 16)
}
