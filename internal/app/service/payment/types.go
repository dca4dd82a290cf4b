package payment

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/internal/platform/gateway"
	"github.com/fatflowers/paygate/pkg/apperr"
	"github.com/fatflowers/paygate/pkg/types"
)

// ErrInvalidIntent is returned, not reported in a Result, for calls that
// break the contract (nil intent, no payer, no currency).
var ErrInvalidIntent = errors.New("invalid payment intent")

// unreachableMessage is stored on transactions whose gateway call never got
// an answer.
const unreachableMessage = "payment gateway unreachable"

// Card is raw card data, accepted only in direct card entry mode.
type Card struct {
	Number      string `json:"number"`
	CVV         string `json:"cvv"`
	CitizenID   string `json:"citizen_id"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	Brand       string `json:"brand"`
}

// Intent describes one payment request. Exactly one payment method is used:
// Card, then SingleUseToken, then TokenID, falling back to the payer's
// default token.
type Intent struct {
	PayerID  string
	Amount   decimal.Decimal
	Currency string
	Kind     types.TransactionKind

	TokenID        string
	SingleUseToken string
	Card           *Card

	Installments  int
	AuthorizeOnly bool
	SaveToken     bool
	MakeDefault   bool

	Description string
	Items       []gateway.Item
	Customer    gateway.Customer
	Metadata    map[string]any

	// ParentID and Recurring are set by the billing scheduler.
	ParentID  string
	Recurring bool
}

// Result is the structured outcome of an orchestrator call. Business
// failures come back here with Success=false and a Kind; they are never
// returned as errors.
type Result struct {
	Success     bool                 `json:"success"`
	Kind        apperr.Kind          `json:"error_kind,omitempty"`
	Message     string               `json:"message,omitempty"`
	Transaction *models.Transaction  `json:"transaction,omitempty"`
	Token       *models.PaymentToken `json:"token,omitempty"`
}

func succeeded(t *models.Transaction) *Result {
	return &Result{Success: true, Transaction: t}
}

func failed(kind apperr.Kind, msg string, t *models.Transaction) *Result {
	return &Result{Kind: kind, Message: msg, Transaction: t}
}

// Err converts a failed result into an *apperr.Error.
func (r *Result) Err() error {
	if r == nil || r.Success {
		return nil
	}
	return apperr.New(r.Kind, r.Message)
}

// RefundDetails is a payment's refund balance with the refund rows
// recorded against it.
type RefundDetails struct {
	TransactionID       string                  `json:"transaction_id"`
	Status              types.TransactionStatus `json:"status"`
	Amount              decimal.Decimal         `json:"amount"`
	RefundedAmount      decimal.Decimal         `json:"refunded_amount"`
	PendingRefundAmount decimal.Decimal         `json:"pending_refund_amount"`
	RemainingRefundable decimal.Decimal         `json:"remaining_refundable"`
	CanRefund           bool                    `json:"can_refund"`
	Refunds             []*models.Transaction   `json:"refunds"`
}

type RefundRequest struct {
	TransactionID string
	PayerID       string
	// Amount zero refunds the whole remaining balance.
	Amount decimal.Decimal
	Reason string
}
