package payment

import (
	"context"

	"github.com/fatflowers/paygate/internal/platform/gateway"
	"github.com/fatflowers/paygate/pkg/config"
)

// Hook lets deployments adjust a charge before it is sent. Hooks run in
// registration order after the pending transaction exists; an error fails
// the payment as a validation error.
type Hook interface {
	BeforeCharge(ctx context.Context, in *Intent, req *gateway.ChargeRequest) error
	// MaxInstallments may lower the computed installment ceiling.
	MaxInstallments(ctx context.Context, in *Intent, ceiling int) int
}

// DocumentHook fills receipt document options and default line items.
type DocumentHook struct {
	cfg *config.Config
}

func NewDocumentHook(cfg *config.Config) *DocumentHook {
	return &DocumentHook{cfg: cfg}
}

func (h *DocumentHook) BeforeCharge(_ context.Context, in *Intent, req *gateway.ChargeRequest) error {
	doc := h.cfg.Payment.Document
	req.Document = gateway.DocumentOptions{Draft: doc.Draft, Email: doc.Email, Language: doc.Language}
	if req.Customer.ExternalIdentifier == "" {
		req.Customer.ExternalIdentifier = in.PayerID
	}
	if len(req.Items) == 0 {
		name := in.Description
		if name == "" {
			name = "Payment"
		}
		req.Items = []gateway.Item{{Name: name, Quantity: 1, UnitPrice: in.Amount}}
	}
	return nil
}

func (h *DocumentHook) MaxInstallments(_ context.Context, _ *Intent, ceiling int) int {
	return ceiling
}
