package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/rsvp/pkg/metrics"
	"github.com/charlesng35/rsvp/pkg/response"
)

const unmatchedRoute = "unmatched"

// Metrics observes latency per route template and counts error responses by
// their application code.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		metrics.APILatency.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())

		if code := c.GetString(response.ErrorCodeKey); code != "" {
			metrics.APIErrors.WithLabelValues(route, code).Inc()
		}
	}
}
