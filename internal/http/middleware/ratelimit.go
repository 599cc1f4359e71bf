// Package middleware contains the Gin middleware shared by the HTTP layer.
//
// This file implements EdgeLimiter, an in-memory per-client-IP token bucket
// (golang.org/x/time/rate) with periodic cleanup of idle buckets. It guards
// the admin API only. Per-user voice quotas are enforced by the pipeline's
// rate limiter, not here.
//
// Notes:
//   - Buckets are process-local; each replica limits independently.
//   - Rejections are 429 with the standard error envelope.
package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// EdgeLimiter is a process-local per-client-IP token bucket for the admin
// API. Webhook routes are not behind it: every Telegram update arrives from
// the same few Bot API addresses, so fairness there is per user, enforced by
// the pipeline's rate limiter.
type EdgeLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// gcEvery is the number of lookups between sweeps of idle buckets.
const gcEvery = 5000

// NewEdgeLimiter builds a limiter; burst <= 0 is coerced to 1.
func NewEdgeLimiter(rps float64, burst int) *EdgeLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &EdgeLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		now:      time.Now,
	}
}

func (l *EdgeLimiter) limiter(key string) *rate.Limiter {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	// sweep before touching key so an idle bucket for key is also evicted
	l.lookups++
	if l.lookups >= gcEvery {
		for k, v := range l.visitors {
			if now.Sub(v.lastSeen) >= l.ttl {
				delete(l.visitors, k)
			}
		}
		l.lookups = 0
	}
	if v, ok := l.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(l.rps, l.burst)
	l.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// Handler rejects over-limit clients with 429 and a Retry-After hint.
func (l *EdgeLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		lim := l.limiter(c.ClientIP())
		if lim.Allow() {
			c.Next()
			return
		}
		retry := 1
		if l.rps > 0 {
			if s := int(1 / float64(l.rps)); s > retry {
				retry = s
			}
		}
		c.Header("Retry-After", strconv.Itoa(retry))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}
