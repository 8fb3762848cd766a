package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewTrackerCooldown(t *testing.T) {
	tracker := NewViewTracker(30 * time.Minute)
	now := time.Now()

	assert.True(t, tracker.ShouldCountView("1.2.3.4", "", "post-1", now))
	assert.False(t, tracker.ShouldCountView("1.2.3.4", "", "post-1", now.Add(time.Minute)))
	assert.False(t, tracker.ShouldCountView("1.2.3.4", "", "post-1", now.Add(29*time.Minute)))

	// Exactly at the cooldown boundary the view counts again
	assert.True(t, tracker.ShouldCountView("1.2.3.4", "", "post-1", now.Add(30*time.Minute)))
}

func TestViewTrackerPostsAreIndependent(t *testing.T) {
	tracker := NewViewTracker(30 * time.Minute)
	now := time.Now()

	require.True(t, tracker.ShouldCountView("1.2.3.4", "", "post-1", now))
	assert.True(t, tracker.ShouldCountView("1.2.3.4", "", "post-2", now))
}

func TestViewTrackerUserCooldownFollowsAcrossIPs(t *testing.T) {
	tracker := NewViewTracker(30 * time.Minute)
	now := time.Now()

	require.True(t, tracker.ShouldCountView("1.1.1.1", "user-1", "post-1", now))

	// Same user from a new address is still inside the cooldown
	assert.False(t, tracker.ShouldCountView("2.2.2.2", "user-1", "post-1", now.Add(time.Minute)))
}

func TestViewTrackerBlockedViewLeavesNoState(t *testing.T) {
	tracker := NewViewTracker(30 * time.Minute)
	now := time.Now()

	require.True(t, tracker.ShouldCountView("1.1.1.1", "user-1", "post-1", now))
	require.False(t, tracker.ShouldCountView("2.2.2.2", "user-1", "post-1", now.Add(time.Minute)))

	// The vetoed attempt must not have stamped the second IP
	assert.True(t, tracker.ShouldCountView("2.2.2.2", "", "post-1", now.Add(2*time.Minute)))
}

func TestViewTrackerAnonymousDoesNotBlockUser(t *testing.T) {
	tracker := NewViewTracker(30 * time.Minute)
	now := time.Now()

	require.True(t, tracker.ShouldCountView("1.1.1.1", "", "post-1", now))

	// Same user id, different address: only the user table matters here
	assert.True(t, tracker.ShouldCountView("3.3.3.3", "user-9", "post-1", now.Add(time.Minute)))
}

func TestViewTrackerConcurrentViewsCountOnce(t *testing.T) {
	tracker := NewViewTracker(30 * time.Minute)
	now := time.Now()

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	counted := 0

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if tracker.ShouldCountView("9.9.9.9", "user-1", "post-1", now) {
				mu.Lock()
				counted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, counted)
}

func TestViewTrackerSweep(t *testing.T) {
	tracker := NewViewTracker(30 * time.Minute)
	now := time.Now()

	tracker.ShouldCountView("1.1.1.1", "user-1", "post-1", now)
	tracker.ShouldCountView("2.2.2.2", "", "post-2", now)

	ipKeys, userKeys := tracker.Size()
	require.Equal(t, 2, ipKeys)
	require.Equal(t, 1, userKeys)

	removed := tracker.Sweep(now.Add(25 * time.Hour))
	assert.Equal(t, 3, removed)

	ipKeys, userKeys = tracker.Size()
	assert.Equal(t, 0, ipKeys)
	assert.Equal(t, 0, userKeys)
}
