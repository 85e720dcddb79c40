package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/levelup-edu/levelup-api/internal/service"
)

// Metrics records request duration, status and concurrency per route template. Requests to
// skipPaths (probes, the scrape endpoint) are served without being recorded.
func Metrics(metricsSvc *service.MetricsService, skipPaths ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = struct{}{}
	}

	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		if _, ok := skip[c.Request.URL.Path]; ok {
			c.Next()
			return
		}

		done := metricsSvc.TrackInFlight()
		defer done()

		start := time.Now()
		c.Next()

		// Unmatched paths would otherwise create one series per probed URL.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
