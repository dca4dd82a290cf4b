package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/app/service/payment"
	"github.com/fatflowers/paygate/internal/platform/gateway"
	"github.com/fatflowers/paygate/pkg/response"
)

// Payments is the orchestrator surface the payment endpoints call.
type Payments interface {
	ProcessPayment(ctx context.Context, in *payment.Intent) (*payment.Result, error)
	Capture(ctx context.Context, id, payerID string) (*payment.Result, error)
	Void(ctx context.Context, id, payerID string) (*payment.Result, error)
	Refund(ctx context.Context, req *payment.RefundRequest) (*payment.Result, error)
	RefundDetails(ctx context.Context, id, payerID string) (*payment.RefundDetails, error)
}

type PaymentItem struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

type PaymentCustomer struct {
	ExternalID string `json:"external_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	CitizenID  string `json:"citizen_id"`
}

// ProcessPaymentRequest selects one payment method: card, then
// single_use_token, then token_id, then the payer's default token.
type ProcessPaymentRequest struct {
	Amount         decimal.Decimal  `json:"amount"`
	Currency       string           `json:"currency"`
	TokenID        string           `json:"token_id"`
	SingleUseToken string           `json:"single_use_token"`
	Card           *payment.Card    `json:"card"`
	Installments   int              `json:"installments"`
	AuthorizeOnly  bool             `json:"authorize_only"`
	SaveToken      bool             `json:"save_token"`
	MakeDefault    bool             `json:"make_default"`
	Description    string           `json:"description"`
	Items          []PaymentItem    `json:"items"`
	Customer       *PaymentCustomer `json:"customer"`
	Metadata       map[string]any   `json:"metadata"`
}

func (r *ProcessPaymentRequest) intent(payerID string) *payment.Intent {
	in := &payment.Intent{
		PayerID:        payerID,
		Amount:         r.Amount,
		Currency:       r.Currency,
		TokenID:        r.TokenID,
		SingleUseToken: r.SingleUseToken,
		Card:           r.Card,
		Installments:   r.Installments,
		AuthorizeOnly:  r.AuthorizeOnly,
		SaveToken:      r.SaveToken,
		MakeDefault:    r.MakeDefault,
		Description:    r.Description,
		Metadata:       r.Metadata,
		Items: lo.Map(r.Items, func(it PaymentItem, _ int) gateway.Item {
			return gateway.Item{Name: it.Name, Description: it.Description, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
		}),
	}
	if c := r.Customer; c != nil {
		in.Customer = gateway.Customer{
			ExternalIdentifier: c.ExternalID,
			Name:               c.Name,
			EmailAddress:       c.Email,
			Phone:              c.Phone,
			CitizenID:          c.CitizenID,
		}
	}
	return in
}

type RefundPaymentRequest struct {
	// Amount zero refunds the remaining balance.
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// @Summary      Process Payment
// @Description  Charges or authorizes a payment for the calling payer.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        request body ProcessPaymentRequest true "Payment request"
// @Success      200  {object}  handlers.RespPaymentResult
// @Router       /api/v1/payments [post]
func ApiProcessPayment(svc Payments, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ProcessPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.ProcessPayment(c.Request.Context(), req.intent(payerID(c)))
		if err != nil {
			writeError(c, log, err)
			return
		}
		writeResult(c, res)
	}
}

// @Summary      Capture Payment
// @Description  Captures an authorized payment.
// @Tags         Payment
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        id path string true "Transaction id"
// @Success      200  {object}  handlers.RespPaymentResult
// @Router       /api/v1/payments/{id}/capture [post]
func ApiCapturePayment(svc Payments, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Capture(c.Request.Context(), c.Param("id"), payerID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		writeResult(c, res)
	}
}

// @Summary      Void Payment
// @Description  Releases an authorized hold.
// @Tags         Payment
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        id path string true "Transaction id"
// @Success      200  {object}  handlers.RespPaymentResult
// @Router       /api/v1/payments/{id}/void [post]
func ApiVoidPayment(svc Payments, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.Void(c.Request.Context(), c.Param("id"), payerID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		writeResult(c, res)
	}
}

// @Summary      Refund Payment
// @Description  Refunds a completed payment in full or in part.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        id path string true "Transaction id"
// @Param        request body RefundPaymentRequest false "Refund amount and reason"
// @Success      200  {object}  handlers.RespPaymentResult
// @Router       /api/v1/payments/{id}/refund [post]
func ApiRefundPayment(svc Payments, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RefundPaymentRequest
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				badRequest(c, err.Error())
				return
			}
		}
		res, err := svc.Refund(c.Request.Context(), &payment.RefundRequest{
			TransactionID: c.Param("id"),
			PayerID:       payerID(c),
			Amount:        req.Amount,
			Reason:        req.Reason,
		})
		if err != nil {
			writeError(c, log, err)
			return
		}
		writeResult(c, res)
	}
}

// @Summary      Refund Details
// @Description  Reports the refunded, pending and remaining amounts of a payment and its refunds.
// @Tags         Payment
// @Produce      json
// @Param        X-Payer-ID header string true "Payer id"
// @Param        id path string true "Transaction id"
// @Success      200  {object}  handlers.RespRefundDetails
// @Router       /api/v1/payments/{id}/refunds [get]
func ApiRefundDetails(svc Payments, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, err := svc.RefundDetails(c.Request.Context(), c.Param("id"), payerID(c))
		if err != nil {
			writeError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(d))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, svc Payments, history TransactionHistory, log *zap.SugaredLogger) {
	r.POST("", ApiProcessPayment(svc, log))
	r.GET("", ApiListPayments(history, log))
	r.POST("/:id/capture", ApiCapturePayment(svc, log))
	r.POST("/:id/void", ApiVoidPayment(svc, log))
	r.POST("/:id/refund", ApiRefundPayment(svc, log))
	r.GET("/:id/refunds", ApiRefundDetails(svc, log))
}
