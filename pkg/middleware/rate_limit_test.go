package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alien2112/safelines-sub000/pkg/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func limitedRouter(l Limiter) *gin.Engine {
	r := gin.New()
	r.Use(RateLimit(l, "write"))
	r.POST("/w", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) })
	return r
}

func post(r http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/w", nil)
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	r := limitedRouter(NewMemoryLimiter(10, 2))
	before := testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory"))

	require.Equal(t, http.StatusOK, post(r, "").Code)
	require.Equal(t, http.StatusOK, post(r, "").Code)

	require.Equal(t, before+2, testutil.ToFloat64(metrics.RateLimitAllowed.WithLabelValues("memory")))
}

func TestRateLimit_BlocksWhenExceeded(t *testing.T) {
	r := limitedRouter(NewMemoryLimiter(2, 1))
	rejected := testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory"))

	require.Equal(t, http.StatusOK, post(r, "").Code)

	w := post(r, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "1", w.Header().Get("Retry-After"))
	require.Equal(t, rejected+1, testutil.ToFloat64(metrics.RateLimitRejected.WithLabelValues("memory")))

	// one token refills after 500ms
	time.Sleep(600 * time.Millisecond)
	require.Equal(t, http.StatusOK, post(r, "").Code)
}

func TestRateLimit_KeysByClientIP(t *testing.T) {
	r := limitedRouter(NewMemoryLimiter(0.5, 1))

	require.Equal(t, http.StatusOK, post(r, "10.0.0.1:1234").Code)
	require.Equal(t, http.StatusTooManyRequests, post(r, "10.0.0.1:5678").Code)
	require.Equal(t, http.StatusOK, post(r, "10.0.0.2:1234").Code)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (bool, error) {
	return false, errors.New("connection refused")
}
func (failingLimiter) Name() string              { return "failing" }
func (failingLimiter) RetryAfter() time.Duration { return time.Second }

func TestRateLimit_BackendErrorFailsOpen(t *testing.T) {
	r := limitedRouter(failingLimiter{})
	require.Equal(t, http.StatusOK, post(r, "").Code)
}

func TestMemoryLimiter_RetryAfter(t *testing.T) {
	require.Equal(t, time.Second, NewMemoryLimiter(10, 1).RetryAfter())
	require.Equal(t, 4*time.Second, NewMemoryLimiter(0.25, 1).RetryAfter())
	require.Equal(t, time.Second, NewMemoryLimiter(0, 1).RetryAfter())
}
