package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/types"
)

// DefaultMaxBillingFailures cancels a subscription on its third consecutive
// failed charge.
const DefaultMaxBillingFailures = 3

// BillingOutcome is the result of one scheduled charge attempt.
type BillingOutcome struct {
	Success       bool
	ChargedAt     time.Time
	NextBillingAt time.Time
	ErrorMessage  string
	MaxFailures   int
}

// DueSubscriptions returns active agreements whose next billing date has
// arrived, oldest first.
func (l *Ledger) DueSubscriptions(ctx context.Context, now time.Time, limit int) ([]*models.Transaction, error) {
	q := l.db.WithContext(ctx).
		Where("kind = ? AND status = ? AND parent_id IS NULL", types.TransactionKindSubscription, types.TransactionStatusActive).
		Where("next_billing_at IS NOT NULL AND next_billing_at <= ?", now.UTC()).
		Where("billing_lease_until IS NULL OR billing_lease_until <= ?", now.UTC()).
		Order("next_billing_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var rows []*models.Transaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to select due subscriptions: %w", err)
	}
	return rows, nil
}

// ListSubscriptions returns the payer's agreements, newest first.
func (l *Ledger) ListSubscriptions(ctx context.Context, payerID string) ([]*models.Transaction, error) {
	var rows []*models.Transaction
	err := l.db.WithContext(ctx).
		Where("payer_id = ? AND kind = ? AND parent_id IS NULL", payerID, types.TransactionKindSubscription).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return rows, nil
}

// RecordBillingOutcome updates the failure counter and schedule of an
// active subscription and drops its billing lease. A success resets the counter and advances the
// schedule; a failure increments it and cancels at the threshold while
// leaving the billing date untouched. Non-active subscriptions are left
// alone.
func (l *Ledger) RecordBillingOutcome(ctx context.Context, id string, out BillingOutcome) (*models.Transaction, error) {
	maxFailures := out.MaxFailures
	if maxFailures <= 0 {
		maxFailures = DefaultMaxBillingFailures
	}
	before, after, applied, err := l.mutate(ctx, id, func(cur *models.Transaction, now time.Time) (map[string]any, error) {
		if cur.Status != types.TransactionStatusActive {
			return nil, nil
		}
		if out.Success {
			chargedAt := out.ChargedAt.UTC()
			next := out.NextBillingAt.UTC()
			updates := map[string]any{
				"consecutive_failures": 0,
				"last_charged_at":      chargedAt,
				"next_billing_at":      next,
				"billing_lease_until":  nil,
			}
			cur.BillingLeaseUntil = nil
			cur.ConsecutiveFailures = 0
			cur.LastChargedAt = &chargedAt
			cur.NextBillingAt = &next
			if cur.EndsAt != nil && !next.Before(*cur.EndsAt) {
				updates["status"] = types.TransactionStatusCancelled
				updates["cancelled_at"] = now
				updates["next_billing_at"] = nil
				cur.Status = types.TransactionStatusCancelled
				cur.CancelledAt = &now
				cur.NextBillingAt = nil
			}
			return updates, nil
		}

		failures := cur.ConsecutiveFailures + 1
		updates := map[string]any{"consecutive_failures": failures, "billing_lease_until": nil}
		cur.ConsecutiveFailures = failures
		cur.BillingLeaseUntil = nil
		if out.ErrorMessage != "" {
			updates["error_message"] = out.ErrorMessage
			cur.ErrorMessage = lo.ToPtr(out.ErrorMessage)
		}
		if failures >= maxFailures {
			updates["status"] = types.TransactionStatusCancelled
			updates["cancelled_at"] = now
			updates["next_billing_at"] = nil
			cur.Status = types.TransactionStatusCancelled
			cur.CancelledAt = &now
			cur.NextBillingAt = nil
		}
		return updates, nil
	})
	if err != nil {
		return after, err
	}
	if applied {
		extra := map[string]any{"success": out.Success, "consecutive_failures": after.ConsecutiveFailures}
		if out.ErrorMessage != "" {
			extra["error"] = out.ErrorMessage
		}
		l.recordChange(ctx, before, after, types.TransactionChangeReasonBilling, extra)
		if after.Status == types.TransactionStatusCancelled {
			logctx.FromCtx(ctx, l.log).Infow("subscription_cancelled", "subscription_id", id, "consecutive_failures", after.ConsecutiveFailures)
		}
	}
	return after, nil
}

// ClaimBilling leases a due subscription to one charger until leaseUntil.
// It reports false when the subscription is no longer active, not due yet,
// or held by a lease that has not expired. The claim is a locked
// compare-and-set, so of several schedulers sharing the database only one
// charges a period.
func (l *Ledger) ClaimBilling(ctx context.Context, id string, now, leaseUntil time.Time) (*models.Transaction, bool, error) {
	now = now.UTC()
	_, after, applied, err := l.mutate(ctx, id, func(cur *models.Transaction, _ time.Time) (map[string]any, error) {
		if !billable(cur, now) {
			return nil, nil
		}
		until := leaseUntil.UTC()
		cur.BillingLeaseUntil = &until
		return map[string]any{"billing_lease_until": until}, nil
	})
	if err != nil {
		return after, false, err
	}
	return after, applied, nil
}

// ReleaseBilling drops a lease without recording an outcome, leaving the
// subscription due for the next tick.
func (l *Ledger) ReleaseBilling(ctx context.Context, id string) error {
	_, _, _, err := l.mutate(ctx, id, func(cur *models.Transaction, _ time.Time) (map[string]any, error) {
		if cur.BillingLeaseUntil == nil {
			return nil, nil
		}
		cur.BillingLeaseUntil = nil
		return map[string]any{"billing_lease_until": nil}, nil
	})
	return err
}

func billable(t *models.Transaction, now time.Time) bool {
	switch {
	case t.Status != types.TransactionStatusActive, t.NextBillingAt == nil, t.NextBillingAt.After(now):
		return false
	case t.BillingLeaseUntil != nil && t.BillingLeaseUntil.After(now):
		return false
	}
	return true
}

// SubscriptionPatch lists the agreement fields a payer may change. Nil
// fields are left alone.
type SubscriptionPatch struct {
	Amount      *decimal.Decimal
	Frequency   *types.BillingFrequency
	BillingDay  *int
	Description *string
	EndsAt      *time.Time
	TokenID     *string
	// Reschedule computes the next billing date when the frequency or the
	// billing day changes.
	Reschedule func(cur *models.Transaction) time.Time
}

// UpdateSubscription changes an active agreement owned by payerID.
func (l *Ledger) UpdateSubscription(ctx context.Context, id, payerID string, p SubscriptionPatch) (*models.Transaction, error) {
	before, after, applied, err := l.mutate(ctx, id, func(cur *models.Transaction, _ time.Time) (map[string]any, error) {
		if cur.PayerID != payerID || !cur.IsSubscription() || cur.ParentID != nil {
			return nil, ErrNotFound
		}
		if cur.Status != types.TransactionStatusActive {
			return nil, fmt.Errorf("%w: cannot update a %s subscription", ErrInvalidTransition, cur.Status)
		}
		updates := map[string]any{}
		if p.Amount != nil {
			amount := p.Amount.Round(2)
			updates["amount"] = amount
			cur.Amount = amount
		}
		if p.Description != nil {
			updates["description"] = *p.Description
			cur.Description = *p.Description
		}
		if p.TokenID != nil {
			updates["token_id"] = *p.TokenID
			cur.TokenID = lo.ToPtr(*p.TokenID)
		}
		if p.EndsAt != nil {
			ends := p.EndsAt.UTC()
			updates["ends_at"] = ends
			cur.EndsAt = &ends
		}
		rescheduled := false
		if p.Frequency != nil && *p.Frequency != cur.Frequency {
			updates["frequency"] = *p.Frequency
			cur.Frequency = *p.Frequency
			rescheduled = true
		}
		if p.BillingDay != nil && *p.BillingDay != cur.BillingDay {
			updates["billing_day"] = *p.BillingDay
			cur.BillingDay = *p.BillingDay
			rescheduled = true
		}
		if rescheduled && p.Reschedule != nil {
			next := p.Reschedule(cur).UTC()
			updates["next_billing_at"] = next
			cur.NextBillingAt = &next
		}
		if len(updates) == 0 {
			return nil, nil
		}
		return updates, nil
	})
	if err != nil {
		return after, err
	}
	if applied {
		l.recordChange(ctx, before, after, types.TransactionChangeReasonSubscriptionUpdate, nil)
	}
	return after, nil
}
