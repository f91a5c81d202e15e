package middleware

import (
	"sync"
	"time"

	"github.com/assistly/billing/internal/config"
	ierr "github.com/assistly/billing/internal/errors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterEntryTTL        = 15 * time.Minute
	limiterCleanupInterval = 5 * time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP and forgets idle ones
type ipRateLimiter struct {
	mu          sync.Mutex
	limit       rate.Limit
	burst       int
	entries     map[string]*limiterEntry
	lastCleanup time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limit:       rate.Limit(rps),
		burst:       burst,
		entries:     make(map[string]*limiterEntry),
		lastCleanup: time.Now(),
	}
}

func (r *ipRateLimiter) allow(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if now.Sub(r.lastCleanup) >= limiterCleanupInterval {
		for k, entry := range r.entries {
			if now.Sub(entry.lastSeen) > limiterEntryTTL {
				delete(r.entries, k)
			}
		}
		r.lastCleanup = now
	}

	entry, ok := r.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.entries[key] = entry
	}
	entry.lastSeen = now

	return entry.limiter.AllowN(now, 1)
}

// RateLimitMiddleware throttles requests per client IP. It is a no-op when rate limiting is disabled.
func RateLimitMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	rl := cfg.RateLimit
	if !rl.Enabled || rl.RequestsPerSecond <= 0 || rl.Burst <= 0 {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	limiter := newIPRateLimiter(rl.RequestsPerSecond, rl.Burst)
	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP(), time.Now()) {
			_ = c.Error(ierr.NewError("rate limit exceeded").
				WithHint("Too many requests, please retry later").
				WithReportableDetails(map[string]any{"client_ip": c.ClientIP()}).
				Mark(ierr.ErrTooManyRequests))
			c.Abort()
			return
		}
		c.Next()
	}
}
