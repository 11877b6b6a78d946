package shared

import (
	"github.com/gin-gonic/gin"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

func SetupGinMiddleware(router *gin.Engine, serviceName string, metrics *StorageMetrics, logger *otelzap.Logger) {
	// OpenTelemetry tracing middleware
	router.Use(otelgin.Middleware(serviceName))

	// Structured request logging, also feeds the request metrics
	router.Use(LoggingMiddleware(logger, metrics))
}
