package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fableink/fable_api/model"
)

type fakeCounter struct {
	calls int
	err   error
}

func (f *fakeCounter) IncrementViewCount(postID string) error {
	f.calls++
	return f.err
}

func newTestViewService(mode SuspicionMode, counter *fakeCounter) (*ViewService, *ViewAnalytics) {
	analytics := NewViewAnalytics(DefaultAnalyticsConfig())
	svc := &ViewService{
		tracker: NewViewTracker(30 * time.Minute),
		guard:   NewViewGuard(5, time.Hour, mode, analytics),
		counter: counter,
	}
	return svc, analytics
}

func testPost() *model.Post {
	return &model.Post{
		ID:       "post-1",
		AuthorID: "author-1",
		Title:    "A post",
	}
}

func TestViewServiceCountsGenuineView(t *testing.T) {
	counter := &fakeCounter{}
	svc, _ := newTestViewService(SuspicionPermissive, counter)
	post := testPost()

	meta := svc.Process(post, "1.2.3.4", "reader-1", "Mozilla/5.0", "en-US")

	assert.True(t, meta.ViewCounted)
	assert.False(t, meta.SuspiciousActivity)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, int64(1), post.ViewCount)
}

func TestViewServiceCooldownBlocksRepeat(t *testing.T) {
	counter := &fakeCounter{}
	svc, _ := newTestViewService(SuspicionPermissive, counter)
	post := testPost()

	first := svc.Process(post, "1.2.3.4", "reader-1", "Mozilla/5.0", "en-US")
	second := svc.Process(post, "1.2.3.4", "reader-1", "Mozilla/5.0", "en-US")

	assert.True(t, first.ViewCounted)
	assert.False(t, second.ViewCounted)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, int64(1), post.ViewCount)
}

func TestViewServiceAuthorSelfViewExcluded(t *testing.T) {
	counter := &fakeCounter{}
	svc, _ := newTestViewService(SuspicionPermissive, counter)
	post := testPost()

	meta := svc.Process(post, "1.2.3.4", "author-1", "Mozilla/5.0", "en-US")

	assert.False(t, meta.ViewCounted)
	assert.False(t, meta.SuspiciousActivity)
	assert.Equal(t, 0, counter.calls)

	// The self-view left no tracking state behind; a reader on the same
	// address still gets counted
	meta = svc.Process(post, "1.2.3.4", "reader-1", "Mozilla/5.0", "en-US")
	assert.True(t, meta.ViewCounted)
}

func TestViewServiceSuspiciousVerdictIsAuthoritative(t *testing.T) {
	counter := &fakeCounter{}
	svc, analytics := newTestViewService(SuspicionStrict, counter)
	post := testPost()

	now := time.Now()
	for i := 0; i < 51; i++ {
		analytics.RecordAttempt("6.6.6.6", "post-9", false, "Mozilla/5.0", now)
	}
	require.True(t, analytics.IsSuspicious("6.6.6.6"))

	meta := svc.Process(post, "6.6.6.6", "reader-1", "Mozilla/5.0", "en-US")

	assert.False(t, meta.ViewCounted)
	assert.True(t, meta.SuspiciousActivity)
	assert.Equal(t, 0, counter.calls)

	// The cooldown tracker was never consulted for suspicious traffic
	assert.True(t, svc.tracker.ShouldCountView("6.6.6.6", "reader-1", post.ID, time.Now()))
}

func TestViewServiceSuspiciousCountsInPermissiveMode(t *testing.T) {
	counter := &fakeCounter{}
	svc, analytics := newTestViewService(SuspicionPermissive, counter)
	post := testPost()

	now := time.Now()
	for i := 0; i < 51; i++ {
		analytics.RecordAttempt("6.6.6.6", "post-9", false, "Mozilla/5.0", now)
	}

	meta := svc.Process(post, "6.6.6.6", "reader-1", "Mozilla/5.0", "en-US")

	assert.True(t, meta.ViewCounted)
	assert.True(t, meta.SuspiciousActivity)
	assert.Equal(t, 1, counter.calls)
}

func TestViewServiceIncrementFailureIsSwallowed(t *testing.T) {
	counter := &fakeCounter{err: errors.New("connection lost")}
	svc, _ := newTestViewService(SuspicionPermissive, counter)
	post := testPost()

	meta := svc.Process(post, "1.2.3.4", "reader-1", "Mozilla/5.0", "en-US")

	// The view still reads as counted; only the persisted total is behind
	assert.True(t, meta.ViewCounted)
	assert.Equal(t, 1, counter.calls)
	assert.Equal(t, int64(0), post.ViewCount)
}

func TestViewServiceAnonymousViewsTrackedByIP(t *testing.T) {
	counter := &fakeCounter{}
	svc, _ := newTestViewService(SuspicionPermissive, counter)
	post := testPost()

	first := svc.Process(post, "1.2.3.4", "", "Mozilla/5.0", "en-US")
	repeat := svc.Process(post, "1.2.3.4", "", "Mozilla/5.0", "en-US")
	other := svc.Process(post, "5.6.7.8", "", "Mozilla/5.0", "en-US")

	assert.True(t, first.ViewCounted)
	assert.False(t, repeat.ViewCounted)
	assert.True(t, other.ViewCounted)
	assert.Equal(t, 2, counter.calls)
}
