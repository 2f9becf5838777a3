package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alien2112/safelines-sub000/pkg/logger"
	"github.com/alien2112/safelines-sub000/pkg/metrics"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// Limiter decides whether the caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
	// Name labels the limiter in metrics.
	Name() string
	// RetryAfter is the hint sent with rejections.
	RetryAfter() time.Duration
}

// MemoryLimiter keeps one token bucket per key in process memory.
type MemoryLimiter struct {
	rps   rate.Limit
	burst int
	store sync.Map // key -> *rate.Limiter
}

func NewMemoryLimiter(rps float64, burst int) *MemoryLimiter {
	if burst < 1 {
		burst = 1
	}
	return &MemoryLimiter{rps: rate.Limit(rps), burst: burst}
}

func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	v, ok := m.store.Load(key)
	if !ok {
		v, _ = m.store.LoadOrStore(key, rate.NewLimiter(m.rps, m.burst))
	}
	return v.(*rate.Limiter).Allow(), nil
}

func (m *MemoryLimiter) Name() string { return "memory" }

func (m *MemoryLimiter) RetryAfter() time.Duration {
	if m.rps <= 0 {
		return time.Second
	}
	d := time.Duration(float64(time.Second) / float64(m.rps))
	if d < time.Second {
		return time.Second
	}
	return d
}

// RateLimit limits requests per client IP within scope. A limiter backend
// error lets the request through; the site must stay writable when Redis is down.
func RateLimit(l Limiter, scope string) gin.HandlerFunc {
	retry := strconv.Itoa(int(l.RetryAfter().Round(time.Second) / time.Second))
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if ip == "" {
			ip = "unknown"
		}
		ok, err := l.Allow(c.Request.Context(), scope+":ip:"+ip)
		if err != nil {
			logger.WithComponent("ratelimit").Warnf("%s limiter unavailable, allowing request: %v", l.Name(), err)
			c.Next()
			return
		}
		if !ok {
			c.Header("Retry-After", retry)
			metrics.RateLimitRejected.WithLabelValues(l.Name()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}
		metrics.RateLimitAllowed.WithLabelValues(l.Name()).Inc()
		c.Next()
	}
}
