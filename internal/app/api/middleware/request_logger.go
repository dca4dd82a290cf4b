package middleware

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/pkg/logctx"
)

// RequestLoggerMiddleware attaches a request-scoped logger enriched with
// trace_id to gin.Context and the request context.
func RequestLoggerMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetString(logctx.GinTraceIDKey)

		reqLogger := base.With("trace_id", traceID)
		c.Set(logctx.GinLoggerKey, reqLogger)
		c.Request = c.Request.WithContext(logctx.WithLogger(c.Request.Context(), reqLogger))

		if traceID != "" {
			c.Writer.Header().Set(HeaderRequestID, traceID)
		}
		c.Next()
	}
}
