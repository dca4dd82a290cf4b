package logctx

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ctxKey string

const (
	LoggerKey  ctxKey = "logger"
	TraceIDKey ctxKey = "traceID"
	PayerIDKey ctxKey = "payer_id"
)

// Gin context keys mirror the context.Context keys.
const (
	GinLoggerKey  = "logger"
	GinTraceIDKey = "traceID"
	GinPayerIDKey = "payer_id"
)

// FromGin returns a request-scoped logger from gin.Context if present,
// otherwise returns the provided base logger.
func FromGin(c *gin.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if c == nil {
		return base
	}
	if l, ok := c.Get(GinLoggerKey); ok {
		if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
			return lg
		}
	}
	return FromCtx(c.Request.Context(), base)
}

// FromCtx returns a logger from context if set, otherwise attempts to enrich
// base with trace_id/payer_id from context values.
func FromCtx(ctx context.Context, base *zap.SugaredLogger) *zap.SugaredLogger {
	if ctx == nil {
		return base
	}
	if lg, ok := ctx.Value(LoggerKey).(*zap.SugaredLogger); ok && lg != nil {
		return lg
	}
	var fields []interface{}
	if tid := TraceID(ctx); tid != "" {
		fields = append(fields, "trace_id", tid)
	}
	if pid := PayerID(ctx); pid != "" {
		fields = append(fields, "payer_id", pid)
	}
	if len(fields) > 0 {
		return base.With(fields...)
	}
	return base
}

func WithLogger(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, TraceIDKey, traceID)
}

func WithPayerID(ctx context.Context, payerID string) context.Context {
	return context.WithValue(ctx, PayerIDKey, payerID)
}

func TraceID(ctx context.Context) string {
	s, _ := ctx.Value(TraceIDKey).(string)
	return s
}

func PayerID(ctx context.Context) string {
	s, _ := ctx.Value(PayerIDKey).(string)
	return s
}
