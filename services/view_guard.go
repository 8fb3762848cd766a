package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"
)

// SuspicionMode controls what happens to views from flagged sources.
type SuspicionMode int

const (
	// SuspicionPermissive keeps counting views from flagged sources but
	// marks them suspicious in the response and logs the anomaly.
	SuspicionPermissive SuspicionMode = iota
	// SuspicionStrict blocks counting for flagged sources outright.
	SuspicionStrict
)

func (m SuspicionMode) String() string {
	if m == SuspicionStrict {
		return "strict"
	}
	return "permissive"
}

// Fingerprint derives a stable client identity from request attributes.
// Coarser than a cookie but survives cookie clearing, which is the point.
func Fingerprint(ip, userAgent, acceptLanguage string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", ip, userAgent, acceptLanguage)))
	return hex.EncodeToString(sum[:])[:16]
}

type fingerprintShard struct {
	mu sync.Mutex
	// fingerprint -> postID -> attempt timestamps within the window
	entries map[string]map[string][]time.Time
}

// ViewGuard detects repeated views of the same post from the same client
// fingerprint within a rolling window, and defers to the analytics
// suspicious set for sources already flagged by volume heuristics.
type ViewGuard struct {
	threshold int
	window    time.Duration
	mode      SuspicionMode
	analytics *ViewAnalytics

	shards [trackerShardCount]*fingerprintShard
}

func NewViewGuard(threshold int, window time.Duration, mode SuspicionMode, analytics *ViewAnalytics) *ViewGuard {
	g := &ViewGuard{
		threshold: threshold,
		window:    window,
		mode:      mode,
		analytics: analytics,
	}
	for i := range g.shards {
		g.shards[i] = &fingerprintShard{entries: make(map[string]map[string][]time.Time)}
	}
	return g
}

// ValidateView classifies one view attempt. It returns whether the attempt
// is suspicious and whether it may be counted. Every attempt is also fed to
// analytics, so the guard both consumes and feeds the suspicious set.
func (g *ViewGuard) ValidateView(ip, userAgent, acceptLanguage, postID string, now time.Time) (suspicious, shouldCount bool) {
	// Sources already flagged by analytics short-circuit the fingerprint
	// check entirely.
	if g.analytics.IsSuspicious(ip) {
		shouldCount = g.mode != SuspicionStrict
		g.analytics.RecordAttempt(ip, postID, !shouldCount, userAgent, now)
		if shouldCount {
			log.WithFields(log.Fields{"ip": ip, "post_id": postID}).Warn("Counting view from flagged IP in permissive mode")
		}
		return true, shouldCount
	}

	fp := Fingerprint(ip, userAgent, acceptLanguage)
	s := g.shards[shardIndex(fp)]

	s.mu.Lock()
	posts, ok := s.entries[fp]
	if !ok {
		posts = make(map[string][]time.Time)
		s.entries[fp] = posts
	}

	cutoff := now.Add(-g.window)
	attempts := posts[postID]
	pruned := attempts[:0]
	for _, t := range attempts {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}

	if len(pruned) >= g.threshold {
		posts[postID] = pruned
		suspicious = true
	} else {
		posts[postID] = append(pruned, now)
	}
	s.mu.Unlock()

	if suspicious {
		shouldCount = g.mode != SuspicionStrict
		g.analytics.RecordAttempt(ip, postID, !shouldCount, userAgent, now)
		log.WithFields(log.Fields{
			"fingerprint": fp,
			"post_id":     postID,
			"mode":        g.mode.String(),
		}).Warn("Repeated views from same fingerprint")
		return true, shouldCount
	}

	g.analytics.RecordAttempt(ip, postID, false, userAgent, now)
	return false, true
}

// Sweep prunes fingerprint attempt logs older than the window.
func (g *ViewGuard) Sweep(now time.Time) int {
	cutoff := now.Add(-g.window)
	removed := 0
	for _, s := range g.shards {
		s.mu.Lock()
		for fp, posts := range s.entries {
			for postID, attempts := range posts {
				pruned := attempts[:0]
				for _, t := range attempts {
					if t.After(cutoff) {
						pruned = append(pruned, t)
					}
				}
				removed += len(attempts) - len(pruned)
				if len(pruned) == 0 {
					delete(posts, postID)
				} else {
					posts[postID] = pruned
				}
			}
			if len(posts) == 0 {
				delete(s.entries, fp)
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// ==================== SERVICE ====================

type ViewGuardService struct {
	context.DefaultService

	guard *ViewGuard
	done  chan struct{}

	threshold int
	window    time.Duration
	mode      SuspicionMode
}

const VIEW_GUARD_SVC = "view_guard_svc"

func (svc ViewGuardService) Id() string {
	return VIEW_GUARD_SVC
}

func (svc *ViewGuardService) Configure(ctx *context.Context) error {
	svc.threshold = envInt("SUSPICIOUS_VIEW_THRESHOLD", 5)
	svc.window = envDuration("SUSPICIOUS_VIEW_WINDOW", time.Hour)
	svc.mode = SuspicionPermissive
	if os.Getenv("STRICT_SUSPICION_MODE") == "true" {
		svc.mode = SuspicionStrict
	}
	svc.done = make(chan struct{})

	log.WithFields(log.Fields{
		"threshold": svc.threshold,
		"window":    svc.window,
		"mode":      svc.mode.String(),
	}).Info("View guard configured")
	return svc.DefaultService.Configure(ctx)
}

func (svc *ViewGuardService) Start() error {
	analyticsSvc := svc.Service(VIEW_ANALYTICS_SVC).(*ViewAnalyticsService)
	svc.guard = NewViewGuard(svc.threshold, svc.window, svc.mode, analyticsSvc.Analytics())

	go svc.startCleanupJob()
	return nil
}

func (svc *ViewGuardService) Shutdown() {
	close(svc.done)
}

func (svc *ViewGuardService) startCleanupJob() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := svc.guard.Sweep(time.Now()); removed > 0 {
				log.WithField("removed", removed).Debug("Swept stale fingerprint entries")
			}
		case <-svc.done:
			return
		}
	}
}

func (svc *ViewGuardService) ValidateView(ip, userAgent, acceptLanguage, postID string) (suspicious, shouldCount bool) {
	return svc.guard.ValidateView(ip, userAgent, acceptLanguage, postID, time.Now())
}
