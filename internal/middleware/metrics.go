package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/brybell/backend/internal/metrics"
)

// Metrics records request count, failures, and latency per route.
func Metrics(m *metrics.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		attrs := metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("http.request.method", c.Request.Method),
			attribute.Int("http.response.status_code", status),
		)

		ctx := c.Request.Context()
		m.RequestsTotal.Add(ctx, 1, attrs)
		if status >= 400 {
			m.RequestErrors.Add(ctx, 1, attrs)
		}
		m.RequestDuration.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	}
}
