package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alien2112/safelines-sub000/handlers"
	"github.com/alien2112/safelines-sub000/internal/config"
	"github.com/alien2112/safelines-sub000/internal/content/service"
	"github.com/alien2112/safelines-sub000/internal/storage"
	"github.com/alien2112/safelines-sub000/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: time.Second, CORSOrigins: "*"},
		Cache: config.CacheConfig{
			BrowserMaxAge:        time.Minute,
			SharedMaxAge:         5 * time.Minute,
			StaleWhileRevalidate: 10 * time.Minute,
			ImageMaxAge:          365 * 24 * time.Hour,
		},
		Storage: config.StorageConfig{Backend: storage.BackendMemory, MaxUploadBytes: 1 << 20},
	}
}

func testRouter(limiter middleware.Limiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return newRouter(testConfig(), deps{
		content: service.NewMemoryService(),
		store:   storage.NewMemoryStore(),
		limiter: limiter,
		checks:  map[string]handlers.Check{"mongo": func(context.Context) error { return nil }},
	})
}

func do(r http.Handler, method, path string, body []byte, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_ContentCacheCycle(t *testing.T) {
	r := testRouter(nil)

	body, _ := json.Marshal(map[string]interface{}{"title": "Hello", "published": true})
	w := do(r, http.MethodPost, "/api/content/blogs", body, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do(r, http.MethodGet, "/api/content/blogs", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	etag := w.Header().Get("ETag")
	require.NotEmpty(t, etag)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "public, max-age=60, s-maxage=300, stale-while-revalidate=600", w.Header().Get("Cache-Control"))

	w = do(r, http.MethodGet, "/api/content/blogs", nil, http.Header{"If-None-Match": {etag}})
	require.Equal(t, http.StatusNotModified, w.Code)
}

func TestRouter_OperationalEndpoints(t *testing.T) {
	r := testRouter(nil)

	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/health", nil, nil).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/ready", nil, nil).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/metrics", nil, nil).Code)
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/swagger/doc.json", nil, nil).Code)
	require.Equal(t, http.StatusNoContent, do(r, http.MethodOptions, "/api/content/blogs", nil, nil).Code)
}

func TestRouter_RateLimitsWritesOnly(t *testing.T) {
	r := testRouter(middleware.NewMemoryLimiter(0.01, 1))

	body, _ := json.Marshal(map[string]interface{}{"title": "x"})
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/content/services", body, nil).Code)
	require.Equal(t, http.StatusTooManyRequests, do(r, http.MethodPost, "/api/content/services", body, nil).Code)

	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/api/content/services", nil, nil).Code)
	}
}

func TestIsImageStream(t *testing.T) {
	r := gin.New()
	var streams []bool
	r.Use(func(c *gin.Context) { streams = append(streams, isImageStream(c)) })
	noop := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/api/images/:id", noop)
	r.HEAD("/api/images/:id", noop)
	r.PATCH("/api/images/:id", noop)
	r.GET("/api/images", noop)

	do(r, http.MethodGet, "/api/images/abc", nil, nil)
	do(r, http.MethodHead, "/api/images/abc", nil, nil)
	do(r, http.MethodPatch, "/api/images/abc", nil, nil)
	do(r, http.MethodGet, "/api/images", nil, nil)
	require.Equal(t, []bool{true, true, false, false}, streams)
}
