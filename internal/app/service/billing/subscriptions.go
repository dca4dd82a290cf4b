package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fatflowers/paygate/internal/app/service/ledger"
	"github.com/fatflowers/paygate/internal/app/service/payment"
	"github.com/fatflowers/paygate/internal/app/service/token"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/apperr"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/tool"
	"github.com/fatflowers/paygate/pkg/types"
)

type CreateSubscriptionRequest struct {
	PayerID     string                 `json:"-"`
	Amount      decimal.Decimal        `json:"amount"`
	Currency    string                 `json:"currency"`
	Frequency   types.BillingFrequency `json:"frequency"`
	BillingDay  int                    `json:"billing_day"`
	TokenID     string                 `json:"token_id"`
	Description string                 `json:"description"`
	StartAt     *time.Time             `json:"start_at"`
	EndsAt      *time.Time             `json:"ends_at"`
	// ChargeNow takes the first payment while creating the agreement.
	ChargeNow bool `json:"charge_now"`
}

type CreateSubscriptionResult struct {
	Subscription *models.Transaction `json:"subscription"`
	FirstCharge  *payment.Result     `json:"first_charge,omitempty"`
}

// CreateSubscription stores an active agreement bound to one of the payer's
// tokens. With ChargeNow the first period is charged immediately; if that
// charge fails the agreement is cancelled and the failed charge returned.
func (s *Scheduler) CreateSubscription(ctx context.Context, req *CreateSubscriptionRequest) (*CreateSubscriptionResult, error) {
	if req == nil || req.PayerID == "" {
		return nil, apperr.Validation("payer is required")
	}
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be greater than zero")
	}
	if !req.Frequency.Valid() {
		return nil, apperr.Validation("unsupported frequency %q", req.Frequency)
	}
	if req.BillingDay < 0 || req.BillingDay > 31 {
		return nil, apperr.Validation("billing_day must be between 1 and 31")
	}
	currency := strings.ToUpper(lo.CoalesceOrEmpty(req.Currency, s.cfg.Payment.DefaultCurrency))
	if currency == "" {
		return nil, apperr.Validation("currency is required")
	}
	if !s.cfg.Payment.SupportsCurrency(currency) {
		return nil, apperr.Validation("currency %s is not supported", currency)
	}

	now := s.now()
	tok, err := s.resolveToken(ctx, req.PayerID, req.TokenID)
	if err != nil {
		return nil, err
	}
	start := now
	if req.StartAt != nil && req.StartAt.After(now) {
		start = req.StartAt.UTC()
	}
	if req.EndsAt != nil && !req.EndsAt.After(start) {
		return nil, apperr.Validation("ends_at must be after the start date")
	}

	sub := &models.Transaction{
		ID:             tool.GenerateUUIDV7(),
		PayerID:        req.PayerID,
		OrderRef:       tool.GenerateOrderRef("sub"),
		Kind:           types.TransactionKindSubscription,
		Status:         types.TransactionStatusActive,
		Amount:         req.Amount.Round(2),
		Currency:       currency,
		Description:    req.Description,
		MerchantNumber: lo.CoalesceOrEmpty(s.cfg.Payment.SubscriptionMerchantNumber, s.cfg.Payment.MerchantNumber),
		TokenID:        lo.ToPtr(tok.ID),
		Frequency:      req.Frequency,
		BillingDay:     req.BillingDay,
		NextBillingAt:  lo.ToPtr(start),
	}
	if req.EndsAt != nil {
		sub.EndsAt = lo.ToPtr(req.EndsAt.UTC())
	}
	if req.ChargeNow {
		// created under lease so no tick charges the first period again
		sub.BillingLeaseUntil = lo.ToPtr(now.Add(s.leaseTTL()))
	}
	if err := s.ledger.Create(ctx, sub); err != nil {
		return nil, err
	}
	lg := logctx.FromCtx(ctx, s.log).With("subscription_id", sub.ID, "payer_id", sub.PayerID)
	lg.Infow("subscription_created", "frequency", sub.Frequency, "amount", sub.Amount.StringFixed(2), "next_billing_at", start)

	out := &CreateSubscriptionResult{Subscription: sub}
	if !req.ChargeNow {
		return out, nil
	}

	first, err := s.payments.ProcessPayment(ctx, &payment.Intent{
		PayerID:     sub.PayerID,
		Amount:      sub.Amount,
		Currency:    sub.Currency,
		Kind:        types.TransactionKindSubscription,
		TokenID:     tok.ID,
		Description: sub.Description,
		Metadata:    map[string]any{"subscription_id": sub.ID},
		ParentID:    sub.ID,
		Recurring:   true,
	})
	if err != nil {
		if rerr := s.ledger.ReleaseBilling(context.WithoutCancel(ctx), sub.ID); rerr != nil {
			lg.Errorw("billing_release_failed", "err", rerr)
		}
		return nil, err
	}
	out.FirstCharge = first
	if !first.Success {
		after, _, err := s.ledger.Apply(ctx, sub.ID, ledger.Change{
			To:           types.TransactionStatusCancelled,
			Reason:       types.TransactionChangeReasonBilling,
			ErrorMessage: first.Message,
			Extra:        map[string]any{"first_charge_failed": true},
		})
		if err != nil {
			return nil, err
		}
		lg.Warnw("subscription_first_charge_failed", "kind", first.Kind, "message", first.Message)
		out.Subscription = after
		return out, nil
	}
	after, err := s.ledger.RecordBillingOutcome(ctx, sub.ID, ledger.BillingOutcome{
		Success:       true,
		ChargedAt:     now,
		NextBillingAt: NextBillingDate(start, sub.Frequency, sub.BillingDay),
	})
	if err != nil {
		return nil, err
	}
	out.Subscription = after
	return out, nil
}

func (s *Scheduler) resolveToken(ctx context.Context, payerID, tokenID string) (*models.PaymentToken, error) {
	tok, err := s.tokens.Resolve(ctx, payerID, tokenID)
	switch {
	case errors.Is(err, token.ErrTokenNotFound):
		return nil, apperr.Wrap(apperr.KindTokenNotFound, "payment token not found", err)
	case errors.Is(err, token.ErrTokenExpired):
		return nil, apperr.Wrap(apperr.KindTokenExpired, "payment token has expired", err)
	case err != nil:
		return nil, err
	}
	return tok, nil
}

// Cancel stops a payer's subscription. Cancelling twice is not an error.
func (s *Scheduler) Cancel(ctx context.Context, id, payerID string) (*models.Transaction, error) {
	sub, err := s.ledger.GetForPayer(ctx, id, payerID)
	if err != nil {
		return nil, ledger.AsAppError(err)
	}
	if !sub.IsSubscription() || sub.ParentID != nil {
		return nil, apperr.New(apperr.KindNotFound, "subscription not found")
	}
	after, applied, err := s.ledger.Apply(ctx, sub.ID, ledger.Change{
		To:     types.TransactionStatusCancelled,
		Reason: types.TransactionChangeReasonCancelled,
	})
	if err != nil {
		return nil, ledger.AsAppError(err)
	}
	if applied {
		logctx.FromCtx(ctx, s.log).Infow("subscription_cancelled_by_payer", "subscription_id", sub.ID, "payer_id", payerID)
	}
	return after, nil
}

func (s *Scheduler) List(ctx context.Context, payerID string) ([]*models.Transaction, error) {
	if payerID == "" {
		return nil, fmt.Errorf("payer is required")
	}
	return s.ledger.ListSubscriptions(ctx, payerID)
}

// UpdateSubscriptionRequest changes an active agreement. Nil fields are left
// alone.
type UpdateSubscriptionRequest struct {
	ID          string                  `json:"-"`
	PayerID     string                  `json:"-"`
	Amount      *decimal.Decimal        `json:"amount"`
	Frequency   *types.BillingFrequency `json:"frequency"`
	BillingDay  *int                    `json:"billing_day"`
	Description *string                 `json:"description"`
	EndsAt      *time.Time              `json:"ends_at"`
	TokenID     *string                 `json:"token_id"`
}

// UpdateSubscription changes the amount, schedule, end date or payment
// token of a payer's active subscription. A new frequency or billing day
// reschedules the next charge one new period after the last charge, or
// right away when that date has already passed.
func (s *Scheduler) UpdateSubscription(ctx context.Context, req *UpdateSubscriptionRequest) (*models.Transaction, error) {
	if req == nil || req.PayerID == "" || req.ID == "" {
		return nil, apperr.Validation("payer and subscription are required")
	}
	now := s.now()
	switch {
	case req.Amount != nil && !req.Amount.IsPositive():
		return nil, apperr.Validation("amount must be greater than zero")
	case req.Frequency != nil && !req.Frequency.Valid():
		return nil, apperr.Validation("unsupported frequency %q", *req.Frequency)
	case req.BillingDay != nil && (*req.BillingDay < 0 || *req.BillingDay > 31):
		return nil, apperr.Validation("billing_day must be between 1 and 31")
	case req.EndsAt != nil && !req.EndsAt.After(now):
		return nil, apperr.Validation("ends_at must be in the future")
	}
	patch := ledger.SubscriptionPatch{
		Amount:      req.Amount,
		Frequency:   req.Frequency,
		BillingDay:  req.BillingDay,
		Description: req.Description,
		EndsAt:      req.EndsAt,
		Reschedule: func(cur *models.Transaction) time.Time {
			if cur.LastChargedAt == nil {
				return lo.FromPtrOr(cur.NextBillingAt, now)
			}
			next := NextBillingDate(*cur.LastChargedAt, cur.Frequency, cur.BillingDay)
			if next.Before(now) {
				return now
			}
			return next
		},
	}
	if req.TokenID != nil {
		tok, err := s.resolveToken(ctx, req.PayerID, *req.TokenID)
		if err != nil {
			return nil, err
		}
		patch.TokenID = lo.ToPtr(tok.ID)
	}
	after, err := s.ledger.UpdateSubscription(ctx, req.ID, req.PayerID, patch)
	if err != nil {
		return nil, ledger.AsAppError(err)
	}
	logctx.FromCtx(ctx, s.log).Infow("subscription_updated", "subscription_id", after.ID, "payer_id", req.PayerID,
		"amount", after.Amount.StringFixed(2), "frequency", after.Frequency, "next_billing_at", after.NextBillingAt)
	return after, nil
}

// UpdatePaymentMethod moves a subscription onto another of the payer's
// tokens.
func (s *Scheduler) UpdatePaymentMethod(ctx context.Context, id, payerID, tokenID string) (*models.Transaction, error) {
	if tokenID == "" {
		return nil, apperr.Validation("token_id is required")
	}
	return s.UpdateSubscription(ctx, &UpdateSubscriptionRequest{ID: id, PayerID: payerID, TokenID: &tokenID})
}
