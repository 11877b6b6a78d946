package shared

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// LoggingMiddleware logs every request with its trace context and feeds
// the HTTP request metrics.
func LoggingMiddleware(logger *otelzap.Logger, metrics *StorageMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		if raw != "" {
			path = path + "?" + raw
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.RecordRequest(c.Request.Method, route, strconv.Itoa(status), latency)

		logger.Ctx(c.Request.Context()).Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
		)
	}
}
