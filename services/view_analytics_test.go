package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyticsSummarize(t *testing.T) {
	a := NewViewAnalytics(DefaultAnalyticsConfig())
	now := time.Now()

	a.RecordAttempt("1.1.1.1", "post-1", false, "Mozilla/5.0", now)
	a.RecordAttempt("1.1.1.1", "post-2", false, "Mozilla/5.0", now)
	a.RecordAttempt("2.2.2.2", "post-1", true, "curl/8.0", now)

	summary := a.Summarize(now)

	assert.Equal(t, 3, summary.TotalViews)
	assert.Equal(t, 1, summary.TotalBlocked)
	assert.Equal(t, 2, summary.UniqueIPs)
	assert.Equal(t, 2, summary.UniquePosts)
	assert.Equal(t, 33.33, summary.BlockRate)
}

func TestAnalyticsSummarizeEmpty(t *testing.T) {
	a := NewViewAnalytics(DefaultAnalyticsConfig())

	summary := a.Summarize(time.Now())

	assert.Equal(t, 0, summary.TotalViews)
	assert.Equal(t, float64(0), summary.BlockRate)
	assert.Empty(t, summary.SuspiciousIPs)
}

func TestAnalyticsHourlyVolumeHeuristic(t *testing.T) {
	a := NewViewAnalytics(DefaultAnalyticsConfig())
	now := time.Now().Truncate(time.Hour)

	for i := 0; i < 50; i++ {
		a.RecordAttempt("5.5.5.5", "post-1", false, "Mozilla/5.0", now.Add(time.Duration(i)*time.Second))
	}
	assert.False(t, a.IsSuspicious("5.5.5.5"), "50 views in an hour is still within bounds")

	a.RecordAttempt("5.5.5.5", "post-1", false, "Mozilla/5.0", now.Add(51*time.Second))
	assert.True(t, a.IsSuspicious("5.5.5.5"), "the 51st view in an hour trips the volume heuristic")
}

func TestAnalyticsPostBreadthHeuristic(t *testing.T) {
	a := NewViewAnalytics(DefaultAnalyticsConfig())
	now := time.Now().Truncate(time.Hour)

	for i := 0; i < 20; i++ {
		a.RecordAttempt("5.5.5.5", fmt.Sprintf("post-%d", i), false, "Mozilla/5.0", now)
	}
	assert.False(t, a.IsSuspicious("5.5.5.5"))

	a.RecordAttempt("5.5.5.5", "post-20", false, "Mozilla/5.0", now)
	assert.True(t, a.IsSuspicious("5.5.5.5"), "21 distinct posts in an hour trips the breadth heuristic")
}

func TestAnalyticsBlockRatioHeuristic(t *testing.T) {
	a := NewViewAnalytics(DefaultAnalyticsConfig())
	now := time.Now().Truncate(time.Hour)

	// 2 of 10 blocked keeps the ratio at 0.2
	for i := 0; i < 8; i++ {
		a.RecordAttempt("7.7.7.7", "post-1", false, "Mozilla/5.0", now)
	}
	a.RecordAttempt("7.7.7.7", "post-1", true, "Mozilla/5.0", now)
	a.RecordAttempt("7.7.7.7", "post-1", true, "Mozilla/5.0", now)
	assert.False(t, a.IsSuspicious("7.7.7.7"))

	// Mostly blocked traffic from another address trips the ratio
	a.RecordAttempt("8.8.8.8", "post-1", false, "curl/8.0", now)
	for i := 0; i < 9; i++ {
		a.RecordAttempt("8.8.8.8", "post-1", true, "curl/8.0", now)
	}
	assert.True(t, a.IsSuspicious("8.8.8.8"))
}

func TestAnalyticsHourBucketsResetVolume(t *testing.T) {
	a := NewViewAnalytics(DefaultAnalyticsConfig())
	hour := time.Now().Truncate(time.Hour)

	for i := 0; i < 40; i++ {
		a.RecordAttempt("5.5.5.5", "post-1", false, "Mozilla/5.0", hour)
	}
	for i := 0; i < 40; i++ {
		a.RecordAttempt("5.5.5.5", "post-1", false, "Mozilla/5.0", hour.Add(time.Hour))
	}

	// 80 views total but never more than 50 within one hour bucket
	assert.False(t, a.IsSuspicious("5.5.5.5"))
}

func TestAnalyticsSweepPrunesOldRecords(t *testing.T) {
	a := NewViewAnalytics(DefaultAnalyticsConfig())
	now := time.Now()

	a.RecordAttempt("1.1.1.1", "post-1", false, "Mozilla/5.0", now)

	removed := a.Sweep(now.Add(25 * time.Hour))
	assert.Equal(t, 1, removed)

	summary := a.Summarize(now.Add(25 * time.Hour))
	assert.Equal(t, 0, summary.TotalViews)
}

func TestAnalyticsBulkClearsSuspiciousSet(t *testing.T) {
	a := NewViewAnalytics(DefaultAnalyticsConfig())
	now := time.Now()

	for i := 0; i < 51; i++ {
		a.RecordAttempt("5.5.5.5", "post-1", false, "Mozilla/5.0", now)
	}
	require.True(t, a.IsSuspicious("5.5.5.5"))
	require.Equal(t, 1, a.SuspiciousCount())

	// Inside the retention period the flag stays
	a.Sweep(now.Add(time.Hour))
	assert.True(t, a.IsSuspicious("5.5.5.5"))

	// Past it the whole set is cleared at once
	a.Sweep(now.Add(25 * time.Hour))
	assert.False(t, a.IsSuspicious("5.5.5.5"))
	assert.Equal(t, 0, a.SuspiciousCount())
}
