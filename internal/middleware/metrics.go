package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/stem-dashboard-api/internal/service"
)

// Metrics records latency and status for every routed request. Unmatched
// paths share one label so scanners cannot blow up cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
