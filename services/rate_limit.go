package services

import (
	"fmt"
	"hash/fnv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/alphabatem/common/context"
	"github.com/gofiber/fiber/v2"
	log "github.com/sirupsen/logrus"

	"github.com/fableink/fable_api/dto"
	"github.com/fableink/fable_api/shared"
)

const limiterShardCount = 16

// LimiterConfig describes a single admission-control instance. The token
// bucket bounds the sustained rate, the sliding window bounds the worst-case
// burst after idle periods; a request must pass both.
type LimiterConfig struct {
	Name              string
	MaxRequests       int
	Window            time.Duration
	TokensPerInterval float64
	Interval          time.Duration
}

type rateLimitBucket struct {
	tokens     float64
	lastRefill time.Time
	recent     []time.Time
}

type limiterShard struct {
	mu      sync.Mutex
	buckets map[string]*rateLimitBucket
}

// Limiter is a hybrid token-bucket + sliding-window rate limiter with
// per-key state sharded across mutexes. It never returns errors; denial is
// expressed through the AdmitResult.
type Limiter struct {
	cfg    LimiterConfig
	shards [limiterShardCount]*limiterShard
}

func NewLimiter(cfg LimiterConfig) *Limiter {
	if cfg.MaxRequests <= 0 {
		cfg.MaxRequests = 60
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = cfg.Window
	}
	if cfg.TokensPerInterval <= 0 {
		cfg.TokensPerInterval = float64(cfg.MaxRequests)
	}

	l := &Limiter{cfg: cfg}
	for i := range l.shards {
		l.shards[i] = &limiterShard{buckets: make(map[string]*rateLimitBucket)}
	}
	return l
}

func shardIndex(key string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % limiterShardCount
}

func (l *Limiter) shard(key string) *limiterShard {
	return l.shards[shardIndex(key)]
}

func (l *Limiter) refillPerSecond() float64 {
	return l.cfg.TokensPerInterval / l.cfg.Interval.Seconds()
}

// Admit checks and consumes capacity for key at the current time.
func (l *Limiter) Admit(key string) dto.AdmitResult {
	return l.admitAt(key, time.Now())
}

func (l *Limiter) admitAt(key string, now time.Time) dto.AdmitResult {
	s := l.shard(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &rateLimitBucket{
			tokens:     float64(l.cfg.MaxRequests),
			lastRefill: now,
		}
		s.buckets[key] = b
	}

	// Lazy refill, capped at capacity.
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.refillPerSecond()
		if b.tokens > float64(l.cfg.MaxRequests) {
			b.tokens = float64(l.cfg.MaxRequests)
		}
	}
	b.lastRefill = now

	// Prune the sliding window log.
	cutoff := now.Add(-l.cfg.Window)
	idx := 0
	for idx < len(b.recent) && !b.recent[idx].After(cutoff) {
		idx++
	}
	if idx > 0 {
		b.recent = append(b.recent[:0], b.recent[idx:]...)
	}

	allowed := b.tokens >= 1 && len(b.recent) < l.cfg.MaxRequests
	if allowed {
		b.tokens--
		b.recent = append(b.recent, now)
	}

	remaining := l.cfg.MaxRequests - len(b.recent)
	if int(b.tokens) < remaining {
		remaining = int(b.tokens)
	}
	if remaining < 0 {
		remaining = 0
	}

	resetAt := now
	if len(b.recent) > 0 {
		resetAt = b.recent[0].Add(l.cfg.Window)
	}

	result := dto.AdmitResult{
		Allowed:   allowed,
		Remaining: remaining,
		ResetAt:   resetAt,
	}

	if !allowed {
		result.RetryAfter = l.retryAfter(b, now)
	}

	return result
}

// retryAfter estimates how long until key can be admitted again: the longer
// of "window clears" and "one token refills". Floor of one second so the
// hint is never zero on denial.
func (l *Limiter) retryAfter(b *rateLimitBucket, now time.Time) time.Duration {
	var wait time.Duration

	if len(b.recent) >= l.cfg.MaxRequests {
		wait = b.recent[0].Add(l.cfg.Window).Sub(now)
	}

	if b.tokens < 1 {
		needed := (1 - b.tokens) / l.refillPerSecond()
		tokenWait := time.Duration(needed * float64(time.Second))
		if tokenWait > wait {
			wait = tokenWait
		}
	}

	if wait < time.Second {
		wait = time.Second
	}
	return wait
}

// Sweep drops buckets that have been idle for longer than twice the window.
// Memory bound only; correctness does not depend on it.
func (l *Limiter) Sweep(now time.Time) int {
	cutoff := now.Add(-2 * l.cfg.Window)
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for key, b := range s.buckets {
			if b.lastRefill.Before(cutoff) {
				delete(s.buckets, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Reset forgets all state for key.
func (l *Limiter) Reset(key string) {
	s := l.shard(key)
	s.mu.Lock()
	delete(s.buckets, key)
	s.mu.Unlock()
}

func (l *Limiter) trackedKeys() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.buckets)
		s.mu.Unlock()
	}
	return n
}

// ==================== SERVICE ====================

type RateLimitService struct {
	context.DefaultService

	mu       sync.RWMutex
	limiters map[string]*Limiter

	done chan struct{}
}

const RATE_LIMIT_SVC = "rate_limit_svc"

const (
	LimiterAuth    = "auth"
	LimiterContent = "content"
	LimiterView    = "view"
)

func (svc *RateLimitService) Id() string {
	return RATE_LIMIT_SVC
}

func (svc *RateLimitService) Configure(ctx *context.Context) error {
	svc.limiters = map[string]*Limiter{
		// Auth endpoints: strict, short window.
		LimiterAuth: NewLimiter(LimiterConfig{
			Name:              LimiterAuth,
			MaxRequests:       envInt("RATE_LIMIT_AUTH_MAX", 10),
			Window:            envDuration("RATE_LIMIT_AUTH_WINDOW", 15*time.Minute),
			TokensPerInterval: 1,
			Interval:          90 * time.Second,
		}),
		// Content creation: hourly window.
		LimiterContent: NewLimiter(LimiterConfig{
			Name:              LimiterContent,
			MaxRequests:       envInt("RATE_LIMIT_CONTENT_MAX", 30),
			Window:            envDuration("RATE_LIMIT_CONTENT_WINDOW", time.Hour),
			TokensPerInterval: 1,
			Interval:          2 * time.Minute,
		}),
		// View endpoint: lenient, views are expected to be frequent.
		LimiterView: NewLimiter(LimiterConfig{
			Name:              LimiterView,
			MaxRequests:       envInt("RATE_LIMIT_VIEW_MAX", 300),
			Window:            envDuration("RATE_LIMIT_VIEW_WINDOW", time.Hour),
			TokensPerInterval: 10,
			Interval:          time.Minute,
		}),
	}
	svc.done = make(chan struct{})

	return svc.DefaultService.Configure(ctx)
}

func (svc *RateLimitService) Start() error {
	go svc.startSweepJob()
	return nil
}

func (svc *RateLimitService) Shutdown() {
	close(svc.done)
}

func (svc *RateLimitService) startSweepJob() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			svc.mu.RLock()
			for name, l := range svc.limiters {
				if removed := l.Sweep(now); removed > 0 {
					log.WithFields(log.Fields{"limiter": name, "removed": removed}).Debug("Swept idle rate limit buckets")
				}
			}
			svc.mu.RUnlock()
		case <-svc.done:
			return
		}
	}
}

func (svc *RateLimitService) limiter(name string) *Limiter {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	return svc.limiters[name]
}

// Admit runs admission control for identifier against the named limiter.
// Unknown limiter names allow the request (nothing to enforce).
func (svc *RateLimitService) Admit(name, identifier string) dto.AdmitResult {
	l := svc.limiter(name)
	if l == nil {
		return dto.AdmitResult{Allowed: true, Remaining: -1, ResetAt: time.Now()}
	}
	return l.Admit(identifier)
}

// ==================== MIDDLEWARE ====================

// Middleware gates a route group through the named limiter, keyed by client
// IP (auth routes also mix in the submitted email so one address cannot
// exhaust the limit for a whole NAT).
func (svc *RateLimitService) Middleware(name string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := svc.identifierFor(c, name)

		result := svc.Admit(name, identifier)
		svc.addRateLimitHeaders(c, result)

		if !result.Allowed {
			rateLimitRejectionsTotal.WithLabelValues(name).Inc()
			retryAfter := int(result.RetryAfter.Seconds())
			c.Set("Retry-After", strconv.Itoa(retryAfter))

			return shared.NewTooManyRequestsError(rateLimitMessage(name), map[string]interface{}{
				"retry_after": retryAfter,
				"reset_at":    result.ResetAt.Unix(),
			})
		}

		return c.Next()
	}
}

func (svc *RateLimitService) identifierFor(c *fiber.Ctx, name string) string {
	ip := c.IP()
	if name == LimiterAuth {
		if email := emailFromRequest(c); email != "" {
			return fmt.Sprintf("%s:%s:%s", name, ip, email)
		}
	}
	return fmt.Sprintf("%s:%s", name, ip)
}

func emailFromRequest(c *fiber.Ctx) string {
	var reqBody map[string]interface{}
	if len(c.Body()) == 0 {
		return ""
	}
	if err := c.BodyParser(&reqBody); err != nil {
		return ""
	}
	for _, field := range []string{"email", "email_or_username"} {
		if v, exists := reqBody[field]; exists {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}

func (svc *RateLimitService) addRateLimitHeaders(c *fiber.Ctx, result dto.AdmitResult) {
	if result.Remaining >= 0 {
		c.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	}
	c.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func rateLimitMessage(name string) string {
	messages := map[string]string{
		LimiterAuth:    "Too many authentication attempts. Please try again later.",
		LimiterContent: "Too many posts created. Please try again later.",
		LimiterView:    "Too many requests. Please slow down.",
	}

	if message, exists := messages[name]; exists {
		return message
	}
	return "Too many requests. Please try again later."
}

// ==================== ADMIN ====================

func (svc *RateLimitService) Stats() []dto.RateLimiterStats {
	svc.mu.RLock()
	defer svc.mu.RUnlock()

	stats := make([]dto.RateLimiterStats, 0, len(svc.limiters))
	for name, l := range svc.limiters {
		stats = append(stats, dto.RateLimiterStats{
			Name:        name,
			MaxRequests: l.cfg.MaxRequests,
			WindowSecs:  int(l.cfg.Window.Seconds()),
			TrackedKeys: l.trackedKeys(),
		})
	}
	return stats
}

// ResetKey forgets a raw identifier across all limiters. Identifiers are
// namespaced per limiter, so the admin passes the bare key (e.g. an IP) and
// every derived key is cleared.
func (svc *RateLimitService) ResetKey(key string) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	for name, l := range svc.limiters {
		l.Reset(key)
		l.Reset(fmt.Sprintf("%s:%s", name, key))
	}
}

// ==================== ENV HELPERS ====================

func envInt(name string, fallback int) int {
	if v := os.Getenv(name); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.WithField("var", name).Warn("Invalid integer env value, using default")
	}
	return fallback
}

func envDuration(name string, fallback time.Duration) time.Duration {
	if v := os.Getenv(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.WithField("var", name).Warn("Invalid duration env value, using default")
	}
	return fallback
}

func envFloat(name string, fallback float64) float64 {
	if v := os.Getenv(name); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f
		}
		log.WithField("var", name).Warn("Invalid float env value, using default")
	}
	return fallback
}
