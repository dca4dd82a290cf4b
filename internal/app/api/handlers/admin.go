package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/app/service/billing"
	"github.com/fatflowers/paygate/internal/app/service/ledger"
	"github.com/fatflowers/paygate/internal/app/service/statistics"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/response"
	"github.com/fatflowers/paygate/pkg/types"
)

type TransactionScanner interface {
	Scan(ctx context.Context, req *ledger.ScanRequest) (*ledger.ScanResponse, error)
}

type Reporting interface {
	DailySummary(ctx context.Context, from, to time.Time, filters ...*types.CommonFilter) ([]statistics.DailySummaryItem, error)
	GetDailyStatistic(ctx context.Context, req *statistics.StatisticRequest) (*statistics.StatisticResponse, error)
}

type BillingTicker interface {
	Tick(ctx context.Context) (*billing.BatchResult, error)
}

type TokenJanitor interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type TokenCleanupResponse struct {
	Removed int64 `json:"removed"`
}

type ListTransactionRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

// TransactionItem is the list view of a transaction; metadata stays out.
type TransactionItem struct {
	ID                   string                  `json:"id"`
	PayerID              string                  `json:"payer_id"`
	OrderRef             string                  `json:"order_ref"`
	GatewayTransactionID *string                 `json:"gateway_transaction_id"`
	ParentID             *string                 `json:"parent_id"`
	Kind                 types.TransactionKind   `json:"kind"`
	Status               types.TransactionStatus `json:"status"`
	Amount               decimal.Decimal         `json:"amount"`
	RefundedAmount       decimal.Decimal         `json:"refunded_amount"`
	Currency             string                  `json:"currency"`
	Installments         int                     `json:"installments"`
	ErrorMessage         *string                 `json:"error_message"`
	NextBillingAt        *time.Time              `json:"next_billing_at,omitempty"`
	ConsecutiveFailures  int                     `json:"consecutive_failures,omitempty"`
	ProcessedAt          *time.Time              `json:"processed_at"`
	CreatedAt            time.Time               `json:"created_at"`
	UpdatedAt            time.Time               `json:"updated_at"`
}

func toTransactionItem(m *models.Transaction) *TransactionItem {
	return &TransactionItem{
		ID:                   m.ID,
		PayerID:              m.PayerID,
		OrderRef:             m.OrderRef,
		GatewayTransactionID: m.GatewayTransactionID,
		ParentID:             m.ParentID,
		Kind:                 m.Kind,
		Status:               m.Status,
		Amount:               m.Amount,
		RefundedAmount:       m.RefundedAmount,
		Currency:             m.Currency,
		Installments:         m.Installments,
		ErrorMessage:         m.ErrorMessage,
		NextBillingAt:        m.NextBillingAt,
		ConsecutiveFailures:  m.ConsecutiveFailures,
		ProcessedAt:          m.ProcessedAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

type ListTransactionsResponse struct {
	Items []*TransactionItem `json:"items"`
	Total int64              `json:"total"`
}

// @Summary      List Transactions (Admin)
// @Description  Retrieves a paginated and filterable list of all transactions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListTransactionRequest true "List transaction request with filters, pagination, and sorting"
// @Success      200  {object}  handlers.RespListTransactions
// @Router       /api/v1/admin/transactions/list [post]
func ApiListTransactions(scanner TransactionScanner, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListTransactionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		scanReq := &ledger.ScanRequest{Filters: req.Filters, From: req.From, Size: req.Size, SortBy: req.SortBy, SortOrder: req.SortOrder}
		res, err := scanner.Scan(c.Request.Context(), scanReq)
		if err != nil {
			writeError(c, log, ledger.AsAppError(err))
			return
		}
		items := lo.Map(res.Items, func(it *models.Transaction, _ int) *TransactionItem { return toTransactionItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListTransactionsResponse{Items: items, Total: res.Total}))
	}
}

// @Summary      Daily Summary (Admin)
// @Description  Per day and currency counts and amounts. Both dates are inclusive; the default is the last 7 days.
// @Tags         Admin
// @Produce      json
// @Param        from query string false "First day, YYYY-MM-DD"
// @Param        to query string false "Last day, YYYY-MM-DD"
// @Success      200  {object}  handlers.RespDailySummary
// @Router       /api/v1/admin/statistics/daily [get]
func ApiDailySummary(svc Reporting, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		today := time.Now().UTC().Truncate(24 * time.Hour)
		from, to := today.AddDate(0, 0, -6), today
		var err error
		if v := c.Query("from"); v != "" {
			if from, err = time.Parse(time.DateOnly, v); err != nil {
				badRequest(c, "invalid from")
				return
			}
		}
		if v := c.Query("to"); v != "" {
			if to, err = time.Parse(time.DateOnly, v); err != nil {
				badRequest(c, "invalid to")
				return
			}
		}
		items, err := svc.DailySummary(c.Request.Context(), from, to.AddDate(0, 0, 1))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(items))
	}
}

// @Summary      Get Statistics (Admin)
// @Description  Retrieves the requested daily statistic series.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.StatisticRequest true "Statistic request parameters"
// @Success      200  {object}  handlers.RespStatistic
// @Router       /api/v1/admin/statistics [post]
func ApiGetStatistic(svc Reporting, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.StatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.GetDailyStatistic(c.Request.Context(), &req)
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Run Billing (Admin)
// @Description  Runs one recurring billing pass now and returns the batch summary.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespBatch
// @Router       /api/v1/admin/billing/tick [post]
func ApiBillingTick(ticker BillingTicker, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := ticker.Tick(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Clean Up Expired Tokens (Admin)
// @Description  Removes expired card tokens and hands the default to each payer's newest live token.
// @Tags         Admin
// @Produce      json
// @Success      200  {object}  handlers.RespTokenCleanup
// @Router       /api/v1/admin/tokens/cleanup [post]
func ApiCleanupTokens(janitor TokenJanitor, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := janitor.CleanupExpired(c.Request.Context())
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(&TokenCleanupResponse{Removed: n}))
	}
}

func RegisterAdminRoutes(r gin.IRouter, scanner TransactionScanner, stats Reporting, ticker BillingTicker, janitor TokenJanitor, log *zap.SugaredLogger) {
	r.POST("/transactions/list", ApiListTransactions(scanner, log))
	r.GET("/statistics/daily", ApiDailySummary(stats, log))
	r.POST("/statistics", ApiGetStatistic(stats, log))
	r.POST("/billing/tick", ApiBillingTick(ticker, log))
	r.POST("/tokens/cleanup", ApiCleanupTokens(janitor, log))
}
