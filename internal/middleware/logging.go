package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dashware/edgegate/internal/observability"
)

// AccessLog returns a middleware that logs one line per completed
// request.
func AccessLog(logger observability.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = observability.NopLogger()
	}
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []observability.Field{
			observability.String("method", c.Request.Method),
			observability.String("path", path),
			observability.Int("status", c.Writer.Status()),
			observability.String("client_ip", ClientIPFromContext(c)),
			observability.Duration("duration", time.Since(start)),
			observability.Int("size", c.Writer.Size()),
		}
		if query != "" {
			fields = append(fields, observability.String("query", query))
		}

		logger.WithContext(c.Request.Context()).Info("request completed", fields...)
	}
}
