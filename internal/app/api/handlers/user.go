package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/response"
)

// TransactionHistory lists a payer's own transactions, newest first.
type TransactionHistory interface {
	ListForPayer(ctx context.Context, payerID string, offset, limit int) ([]*models.Transaction, int64, error)
}

// @Summary      List Payments
// @Description  Returns the calling payer's transactions, newest first.
// @Tags         Payment
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        from query int false "Offset"
// @Param        size query int false "Page size"
// @Success      200  {object}  handlers.RespListTransactions
// @Router       /api/v1/payments [get]
func ApiListPayments(history TransactionHistory, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		from, size, ok := pageParams(c)
		if !ok {
			return
		}
		items, total, err := history.ListForPayer(c.Request.Context(), payerID(c), from, size)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&ListTransactionsResponse{
			Items: lo.Map(items, func(t *models.Transaction, _ int) *TransactionItem { return toTransactionItem(t) }),
			Total: total,
		}))
	}
}
