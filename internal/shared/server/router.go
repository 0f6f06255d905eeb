package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"carelog-backend/internal/services/health"
	"carelog-backend/internal/shared/metrics"
	"carelog-backend/internal/shared/server/middleware"
	"carelog-backend/internal/shared/server/respond"
)

const triggerTimeout = 5 * time.Second

// RouterDeps wires the ops endpoints of a long-running janitor process.
type RouterDeps struct {
	// Health runs the readiness checks behind /readyz. Nil means always ready.
	Health *health.Service
	// Jobs lists the job names Trigger accepts.
	Jobs []string
	// Trigger starts or enqueues a job run out of schedule. Nil disables POST /jobs/:job.
	Trigger func(ctx context.Context, job string) error
}

// NewRouter constructs the Gin engine with middleware and ops routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
	)

	r.GET("/healthz", func(c *gin.Context) {
		respond.OK(c, gin.H{"ok": true})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if deps.Health == nil {
			respond.OK(c, gin.H{"ready": true})
			return
		}
		status, ok := deps.Health.Status(c.Request.Context())
		if !ok {
			respond.Error(c, http.StatusServiceUnavailable, "not_ready", "readiness checks failed", status)
			return
		}
		respond.OK(c, gin.H{"ready": true, "checks": status})
	})
	r.GET("/metrics", metrics.Handler())

	if deps.Trigger != nil {
		known := make(map[string]struct{}, len(deps.Jobs))
		for _, job := range deps.Jobs {
			known[job] = struct{}{}
		}
		r.POST("/jobs/:job", func(c *gin.Context) {
			job := c.Param("job")
			if _, ok := known[job]; !ok {
				respond.Error(c, http.StatusNotFound, "unknown_job", "unknown job", gin.H{"job": job})
				return
			}
			c.Set(middleware.JobKey, job)
			ctx, cancel := context.WithTimeout(c.Request.Context(), triggerTimeout)
			defer cancel()
			if err := deps.Trigger(ctx, job); err != nil {
				respond.Error(c, http.StatusServiceUnavailable, "trigger_failed", err.Error(), nil)
				return
			}
			respond.JSON(c, http.StatusAccepted, gin.H{"job": job, "accepted": true})
		})
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
