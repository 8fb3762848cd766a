package services

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	log "github.com/sirupsen/logrus"

	"github.com/fableink/fable_api/dto"
)

// AnalyticsConfig holds the abuse heuristics thresholds. An IP trips a
// heuristic when, within a single hour bucket, it exceeds the view volume,
// touches too many distinct posts, or has most of its attempts blocked.
type AnalyticsConfig struct {
	HourlyViewThreshold  int
	PostBreadthThreshold int
	BlockRatioThreshold  float64
	RetentionPeriod      time.Duration
}

func DefaultAnalyticsConfig() AnalyticsConfig {
	return AnalyticsConfig{
		HourlyViewThreshold:  50,
		PostBreadthThreshold: 20,
		BlockRatioThreshold:  0.8,
		RetentionPeriod:      24 * time.Hour,
	}
}

// viewAttemptRecord aggregates one IP's attempts within one hour bucket.
type viewAttemptRecord struct {
	ip         string
	hour       time.Time
	totalViews int
	blocked    int
	posts      map[string]struct{}
	userAgents map[string]struct{}
	lastSeen   time.Time
}

// ViewAnalytics records every view attempt, counted or blocked, in hourly
// per-IP buckets and maintains the suspicious IP set derived from them.
type ViewAnalytics struct {
	cfg AnalyticsConfig

	mu         sync.Mutex
	records    map[string]*viewAttemptRecord
	suspicious map[string]time.Time
	lastReset  time.Time
}

func NewViewAnalytics(cfg AnalyticsConfig) *ViewAnalytics {
	return &ViewAnalytics{
		cfg:        cfg,
		records:    make(map[string]*viewAttemptRecord),
		suspicious: make(map[string]time.Time),
		lastReset:  time.Now(),
	}
}

func recordKey(ip string, hour time.Time) string {
	return fmt.Sprintf("%s|%d", ip, hour.Unix())
}

// RecordAttempt folds one attempt into the IP's current hour bucket and
// re-evaluates the heuristics for that bucket.
func (a *ViewAnalytics) RecordAttempt(ip, postID string, blocked bool, userAgent string, now time.Time) {
	hour := now.Truncate(time.Hour)
	key := recordKey(ip, hour)

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.records[key]
	if !ok {
		rec = &viewAttemptRecord{
			ip:         ip,
			hour:       hour,
			posts:      make(map[string]struct{}),
			userAgents: make(map[string]struct{}),
		}
		a.records[key] = rec
	}

	rec.totalViews++
	if blocked {
		rec.blocked++
	}
	rec.posts[postID] = struct{}{}
	if userAgent != "" {
		rec.userAgents[userAgent] = struct{}{}
	}
	rec.lastSeen = now

	if a.trips(rec) {
		if _, flagged := a.suspicious[ip]; !flagged {
			a.suspicious[ip] = now
			log.WithFields(log.Fields{
				"ip":             ip,
				"views_hour":     rec.totalViews,
				"blocked_hour":   rec.blocked,
				"distinct_posts": len(rec.posts),
			}).Warn("IP flagged as suspicious")
		}
	}
}

func (a *ViewAnalytics) trips(rec *viewAttemptRecord) bool {
	if rec.totalViews > a.cfg.HourlyViewThreshold {
		return true
	}
	if len(rec.posts) > a.cfg.PostBreadthThreshold {
		return true
	}
	if rec.totalViews > 0 && float64(rec.blocked)/float64(rec.totalViews) > a.cfg.BlockRatioThreshold {
		return true
	}
	return false
}

// IsSuspicious reports whether ip is currently in the suspicious set.
func (a *ViewAnalytics) IsSuspicious(ip string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.suspicious[ip]
	return ok
}

// Summarize aggregates attempts recorded within the retention period.
func (a *ViewAnalytics) Summarize(now time.Time) dto.ViewAnalyticsSummary {
	cutoff := now.Add(-a.cfg.RetentionPeriod)

	a.mu.Lock()
	defer a.mu.Unlock()

	summary := dto.ViewAnalyticsSummary{GeneratedAt: now}
	ips := make(map[string]struct{})
	posts := make(map[string]struct{})

	for _, rec := range a.records {
		if !rec.hour.After(cutoff) && !rec.lastSeen.After(cutoff) {
			continue
		}
		summary.TotalViews += rec.totalViews
		summary.TotalBlocked += rec.blocked
		ips[rec.ip] = struct{}{}
		for postID := range rec.posts {
			posts[postID] = struct{}{}
		}
	}

	summary.UniqueIPs = len(ips)
	summary.UniquePosts = len(posts)
	if summary.TotalViews > 0 {
		rate := float64(summary.TotalBlocked) / float64(summary.TotalViews) * 100
		summary.BlockRate = math.Round(rate*100) / 100
	}

	summary.SuspiciousIPs = make([]string, 0, len(a.suspicious))
	for ip := range a.suspicious {
		summary.SuspiciousIPs = append(summary.SuspiciousIPs, ip)
	}

	return summary
}

// Sweep prunes stale hour buckets and, once per retention period, clears
// the whole suspicious set. The bulk clear gives flagged IPs a clean slate
// instead of expiring them individually; a still-abusive IP re-flags itself
// within the hour.
func (a *ViewAnalytics) Sweep(now time.Time) int {
	cutoff := now.Add(-a.cfg.RetentionPeriod)

	a.mu.Lock()
	defer a.mu.Unlock()

	removed := 0
	for key, rec := range a.records {
		if rec.lastSeen.Before(cutoff) {
			delete(a.records, key)
			removed++
		}
	}

	if now.Sub(a.lastReset) >= a.cfg.RetentionPeriod {
		if len(a.suspicious) > 0 {
			log.WithField("cleared", len(a.suspicious)).Info("Cleared suspicious IP set")
		}
		a.suspicious = make(map[string]time.Time)
		a.lastReset = now
	}

	return removed
}

// SuspiciousCount returns the current size of the suspicious set.
func (a *ViewAnalytics) SuspiciousCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.suspicious)
}

// ==================== SERVICE ====================

type ViewAnalyticsService struct {
	context.DefaultService

	analytics *ViewAnalytics
	done      chan struct{}
}

const VIEW_ANALYTICS_SVC = "view_analytics_svc"

func (svc ViewAnalyticsService) Id() string {
	return VIEW_ANALYTICS_SVC
}

func (svc *ViewAnalyticsService) Configure(ctx *context.Context) error {
	cfg := DefaultAnalyticsConfig()
	cfg.HourlyViewThreshold = envInt("ANALYTICS_HOURLY_VIEW_THRESHOLD", cfg.HourlyViewThreshold)
	cfg.PostBreadthThreshold = envInt("ANALYTICS_POST_BREADTH_THRESHOLD", cfg.PostBreadthThreshold)
	cfg.BlockRatioThreshold = envFloat("ANALYTICS_BLOCK_RATIO_THRESHOLD", cfg.BlockRatioThreshold)

	svc.analytics = NewViewAnalytics(cfg)
	svc.done = make(chan struct{})

	return svc.DefaultService.Configure(ctx)
}

func (svc *ViewAnalyticsService) Start() error {
	go svc.startCleanupJob()
	return nil
}

func (svc *ViewAnalyticsService) Shutdown() {
	close(svc.done)
}

func (svc *ViewAnalyticsService) startCleanupJob() {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := svc.analytics.Sweep(time.Now()); removed > 0 {
				log.WithField("removed", removed).Debug("Swept stale view analytics buckets")
			}
		case <-svc.done:
			return
		}
	}
}

// Analytics exposes the underlying aggregator for collaborating services.
func (svc *ViewAnalyticsService) Analytics() *ViewAnalytics {
	return svc.analytics
}

func (svc *ViewAnalyticsService) Summarize() dto.ViewAnalyticsSummary {
	return svc.analytics.Summarize(time.Now())
}

func (svc *ViewAnalyticsService) IsSuspicious(ip string) bool {
	return svc.analytics.IsSuspicious(ip)
}
