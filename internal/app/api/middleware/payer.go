package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/response"
)

const HeaderPayerID = "X-Payer-ID"

// PayerIdentityMiddleware reads the authenticated payer id set by the
// fronting auth proxy. Requests without one are rejected.
func PayerIdentityMiddleware(base *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		payerID := strings.TrimSpace(c.GetHeader(HeaderPayerID))
		if payerID == "" {
			c.AbortWithStatusJSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeUnauthorized, "missing "+HeaderPayerID))
			return
		}
		lg := logctx.FromGin(c, base).With("payer_id", payerID)
		c.Set(logctx.GinPayerIDKey, payerID)
		c.Set(logctx.GinLoggerKey, lg)
		ctx := logctx.WithPayerID(c.Request.Context(), payerID)
		c.Request = c.Request.WithContext(logctx.WithLogger(ctx, lg))
		c.Next()
	}
}
