package services

import (
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
)

const trackerShardCount = 16

type cooldownShard struct {
	mu sync.Mutex
	// key -> postID -> last counted view
	entries map[string]map[string]time.Time
}

type cooldownTable struct {
	shards [trackerShardCount]*cooldownShard
}

func newCooldownTable() *cooldownTable {
	t := &cooldownTable{}
	for i := range t.shards {
		t.shards[i] = &cooldownShard{entries: make(map[string]map[string]time.Time)}
	}
	return t
}

func (t *cooldownTable) shard(key string) *cooldownShard {
	return t.shards[shardIndex(key)]
}

func (s *cooldownShard) allows(key, postID string, now time.Time, cooldown time.Duration) bool {
	posts, ok := s.entries[key]
	if !ok {
		return true
	}
	last, ok := posts[postID]
	if !ok {
		return true
	}
	return now.Sub(last) >= cooldown
}

func (s *cooldownShard) mark(key, postID string, now time.Time) {
	posts, ok := s.entries[key]
	if !ok {
		posts = make(map[string]time.Time)
		s.entries[key] = posts
	}
	posts[postID] = now
}

// ViewTracker enforces a per-viewer cooldown between counted views of the
// same post. Anonymous viewers are tracked by IP only; authenticated viewers
// must clear both the IP and the user cooldown, and a counted view stamps
// both so neither identity can be reused to double count.
type ViewTracker struct {
	cooldown time.Duration
	maxAge   time.Duration

	ip   *cooldownTable
	user *cooldownTable
}

func NewViewTracker(cooldown time.Duration) *ViewTracker {
	return &ViewTracker{
		cooldown: cooldown,
		maxAge:   24 * time.Hour,
		ip:       newCooldownTable(),
		user:     newCooldownTable(),
	}
}

// ShouldCountView reports whether a view of postID by (ip, userID) counts,
// and if so records it. Check and update happen under the same locks, so
// concurrent duplicates resolve to exactly one counted view.
//
// Lock order is always IP table then user table. The two tables use
// disjoint mutex sets, so the fixed order cannot deadlock.
func (t *ViewTracker) ShouldCountView(ip, userID, postID string, now time.Time) bool {
	ipShard := t.ip.shard(ip)
	ipShard.mu.Lock()
	defer ipShard.mu.Unlock()

	var userShard *cooldownShard
	if userID != "" {
		userShard = t.user.shard(userID)
		userShard.mu.Lock()
		defer userShard.mu.Unlock()
	}

	if !ipShard.allows(ip, postID, now, t.cooldown) {
		return false
	}
	if userShard != nil && !userShard.allows(userID, postID, now, t.cooldown) {
		return false
	}

	ipShard.mark(ip, postID, now)
	if userShard != nil {
		userShard.mark(userID, postID, now)
	}
	return true
}

// Sweep drops entries older than maxAge from both tables and returns how
// many were removed.
func (t *ViewTracker) Sweep(now time.Time) int {
	cutoff := now.Add(-t.maxAge)
	removed := 0
	for _, table := range []*cooldownTable{t.ip, t.user} {
		for _, s := range table.shards {
			s.mu.Lock()
			for key, posts := range s.entries {
				for postID, last := range posts {
					if last.Before(cutoff) {
						delete(posts, postID)
						removed++
					}
				}
				if len(posts) == 0 {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
	return removed
}

// Size returns the tracked key counts for the IP and user tables.
func (t *ViewTracker) Size() (ipKeys, userKeys int) {
	for _, s := range t.ip.shards {
		s.mu.Lock()
		ipKeys += len(s.entries)
		s.mu.Unlock()
	}
	for _, s := range t.user.shards {
		s.mu.Lock()
		userKeys += len(s.entries)
		s.mu.Unlock()
	}
	return ipKeys, userKeys
}

// ==================== SERVICE ====================

type ViewTrackerService struct {
	context.DefaultService

	tracker *ViewTracker
	done    chan struct{}
}

const VIEW_TRACKER_SVC = "view_tracker_svc"

func (svc ViewTrackerService) Id() string {
	return VIEW_TRACKER_SVC
}

func (svc *ViewTrackerService) Configure(ctx *context.Context) error {
	cooldown := envDuration("VIEW_COOLDOWN", 30*time.Minute)
	svc.tracker = NewViewTracker(cooldown)
	svc.done = make(chan struct{})

	log.WithField("cooldown", cooldown).Info("View tracker configured")
	return svc.DefaultService.Configure(ctx)
}

func (svc *ViewTrackerService) Start() error {
	go svc.startCleanupJob()
	return nil
}

func (svc *ViewTrackerService) Shutdown() {
	close(svc.done)
}

func (svc *ViewTrackerService) startCleanupJob() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := svc.tracker.Sweep(time.Now()); removed > 0 {
				log.WithField("removed", removed).Debug("Swept expired view cooldown entries")
			}
		case <-svc.done:
			return
		}
	}
}

func (svc *ViewTrackerService) ShouldCountView(ip, userID, postID string) bool {
	return svc.tracker.ShouldCountView(ip, userID, postID, time.Now())
}
