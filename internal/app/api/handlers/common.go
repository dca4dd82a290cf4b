package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/app/service/payment"
	"github.com/fatflowers/paygate/pkg/apperr"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/response"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

func payerID(c *gin.Context) string {
	return c.GetString(logctx.GinPayerIDKey)
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
}

// writeError renders err in the response envelope. Only *apperr.Error
// messages reach the caller; anything else is logged and reported as an
// unexpected error.
func writeError(c *gin.Context, log *zap.SugaredLogger, err error) {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		c.JSON(http.StatusOK, response.ErrorT[any](ae.Kind.Code(), ae.Message))
	case errors.Is(err, payment.ErrInvalidIntent):
		badRequest(c, err.Error())
	default:
		logctx.FromGin(c, log).Errorw("request_failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, nil))
	}
}

// writeResult renders an orchestrator result. Business failures keep the
// result as data so callers see the transaction that was recorded.
func writeResult(c *gin.Context, res *payment.Result) {
	if res.Success {
		c.JSON(http.StatusOK, response.OKT(res))
		return
	}
	c.JSON(http.StatusOK, response.ErrorT(res.Kind.Code(), res))
}

// pageParams reads from/size query parameters.
func pageParams(c *gin.Context) (from, size int, ok bool) {
	size = defaultPageSize
	if v := c.Query("from"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(c, "invalid from")
			return 0, 0, false
		}
		from = n
	}
	if v := c.Query("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			badRequest(c, "invalid size")
			return 0, 0, false
		}
		size = min(n, maxPageSize)
	}
	return from, size, true
}
