package handlers

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/alien2112/safelines-sub000/pkg/logger"
	"github.com/gin-gonic/gin"
)

// Check probes one dependency for readiness.
type Check func(ctx context.Context) error

// RegisterHealth mounts /health (liveness) and /ready. /ready returns 200 only
// when every check passes within timeout.
func RegisterHealth(r gin.IRouter, checks map[string]Check, timeout time.Duration) {
	startTime := time.Now()
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})

	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		ready := true
		deps := make(map[string]bool, len(names))
		for _, name := range names {
			err := checks[name](ctx)
			deps[name] = err == nil
			if err != nil {
				ready = false
				logger.WithComponent("ready").Warnf("%s not ready: %v", name, err)
			}
		}

		uptime := time.Since(startTime).Round(time.Second).String()
		if !ready {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "deps": deps, "uptime": uptime})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "deps": deps, "uptime": uptime})
	})
}
