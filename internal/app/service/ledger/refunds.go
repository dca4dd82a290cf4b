package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/types"
)

// ReserveRefund holds amount against the payment's refundable balance until
// the refund is applied with a matching Change.Reserved or released. The
// balance check runs under the row lock, so concurrent refunds can never
// reserve more than the payment is worth.
func (l *Ledger) ReserveRefund(ctx context.Context, id string, amount decimal.Decimal) (*models.Transaction, error) {
	_, after, _, err := l.mutate(ctx, id, func(cur *models.Transaction, _ time.Time) (map[string]any, error) {
		if err := l.CheckRefundable(cur, amount); err != nil {
			return nil, err
		}
		pending := cur.PendingRefundAmount.Add(amount)
		cur.PendingRefundAmount = pending
		return map[string]any{"pending_refund_amount": pending}, nil
	})
	if err != nil {
		return after, err
	}
	logctx.FromCtx(ctx, l.log).Debugw("ledger_refund_reserved", "transaction_id", id, "amount", amount.StringFixed(2), "pending", after.PendingRefundAmount.StringFixed(2))
	return after, nil
}

// ReleaseRefund gives a reservation back to the refundable balance after
// the gateway declined or never answered.
func (l *Ledger) ReleaseRefund(ctx context.Context, id string, amount decimal.Decimal) (*models.Transaction, error) {
	_, after, _, err := l.mutate(ctx, id, func(cur *models.Transaction, _ time.Time) (map[string]any, error) {
		if !cur.PendingRefundAmount.IsPositive() || !amount.IsPositive() {
			return nil, nil
		}
		pending := decimal.Max(cur.PendingRefundAmount.Sub(amount), decimal.Zero)
		cur.PendingRefundAmount = pending
		return map[string]any{"pending_refund_amount": pending}, nil
	})
	return after, err
}

// ListRefunds returns the refund rows recorded against a payment, oldest
// first.
func (l *Ledger) ListRefunds(ctx context.Context, parentID string) ([]*models.Transaction, error) {
	var rows []*models.Transaction
	err := l.db.WithContext(ctx).
		Where("parent_id = ? AND kind = ?", parentID, types.TransactionKindRefund).
		Order("created_at ASC").Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	return rows, nil
}
