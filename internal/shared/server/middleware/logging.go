package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"carelog-backend/internal/shared/telemetry"
)

// JobKey is the gin context key handlers set when a request concerns a janitor job.
const JobKey = "job"

// Logging emits a structured log per request.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)

		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": float64(latency.Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		}
		if job := c.GetString(JobKey); job != "" {
			fields["job"] = job
		}
		telemetry.Info("request.complete", fields)
	}
}
