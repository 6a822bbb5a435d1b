package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/suPer8Hu/content-pipeline/internal/common"
)

// Limiter counts a hit for key and reports whether it is within limit.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type bucket struct {
	count int
	until time.Time
}

// MemoryLimiter is a per-process fixed window limiter.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	b, ok := m.buckets[key]
	if !ok || now.After(b.until) {
		b = &bucket{until: now.Add(window)}
		m.buckets[key] = b
	}
	// sweep expired buckets once the map gets large
	if len(m.buckets) > 10000 {
		for k, v := range m.buckets {
			if now.After(v.until) {
				delete(m.buckets, k)
			}
		}
	}
	if b.count >= limit {
		return false, nil
	}
	b.count++
	return true, nil
}

// RateLimit rejects clients over limit per window with 429. Limiter errors
// fail open.
func RateLimit(lim Limiter, limit int, window time.Duration, l zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, err := lim.Allow(c.Request.Context(), c.ClientIP(), limit, window)
		if err != nil {
			l.Warn().Err(err).Msg("rate limiter unavailable")
			c.Next()
			return
		}
		if !ok {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			common.Fail(c, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		c.Next()
	}
}
