package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GutnikElina/cinema-api/internal/service"
)

// Metrics records per-route request counts and latencies. The metrics
// endpoint itself is skipped so scrapes don't inflate the histograms.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil || c.Request.URL.Path == "/metrics" {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		// FullPath gives the route template ("/api/v1/movies/:id"), which
		// keeps label cardinality bounded; unmatched routes fall back to
		// the raw path.
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
