// Package middleware holds the gin middleware shared by the /app and /console
// surfaces: request IDs, metrics, security headers, rate limiting, session
// authentication, tenant resolution, role guards and console auditing.
package middleware

import (
	"strconv"
	"time"

	"github.com/community-hub/community-hub/internal/telemetry"
	"github.com/gin-gonic/gin"
)

// noRoute labels requests that matched no route, keeping label cardinality bounded
const noRoute = "<no-route>"

// MetricsMiddleware records http_requests_total and
// http_request_duration_seconds labelled by the route template
// (e.g. /app/posts/:postId) rather than the raw URL.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = noRoute
		}
		method := c.Request.Method
		telemetry.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}
