// internal/middleware/metrics_middleware.go
package middleware

import (
	"strconv"
	"time"

	"ledroitcheck-service/internal/pkg/metrics"

	"github.com/gin-gonic/gin"
)

// MetricsMiddleware records in-flight requests, totals and latency. Paths are
// the matched route templates so ids do not explode label cardinality.
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		m.HTTPInFlight.Inc()
		start := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPInFlight.Dec()
	}
}
