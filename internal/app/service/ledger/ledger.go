package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paygate/internal/app/service/events"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/tool"
	"github.com/fatflowers/paygate/pkg/types"
)

const (
	maxCASAttempts = 3
	metaRefundRefs = "refund_refs"
)

// Change describes one requested status transition and the gateway data
// that comes with it.
type Change struct {
	To     types.TransactionStatus
	Reason types.TransactionChangeReason

	GatewayTransactionID string
	DocumentID           string
	AuthorizationCode    string
	AuthorizedAmount     *decimal.Decimal
	ErrorMessage         string

	// RefundAmount applies to partially_refunded/refunded targets. Zero with
	// a refunded target means the whole remaining balance.
	RefundAmount decimal.Decimal
	// RefundRef deduplicates refund deliveries; EventID is used when empty.
	RefundRef string
	EventID   string
	// Reserved is the part of RefundAmount held by ReserveRefund. It is
	// released when the refund applies.
	Reserved decimal.Decimal

	Extra map[string]any
}

func (c Change) isRefund() bool {
	return c.To == types.TransactionStatusPartiallyRefunded || c.To == types.TransactionStatusRefunded
}

// Ledger is the only writer of transaction rows. Every write locks the row,
// re-checks the state machine and commits with a version compare-and-set.
type Ledger struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	bus *events.Bus
	now func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger, bus *events.Bus) *Ledger {
	return &Ledger{db: db, log: log, bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

// Create inserts a new transaction, pending unless a status is set.
func (l *Ledger) Create(ctx context.Context, t *models.Transaction) error {
	if t == nil {
		return fmt.Errorf("nil transaction")
	}
	if t.ID == "" {
		t.ID = tool.GenerateUUIDV7()
	}
	if t.Status == "" {
		t.Status = types.TransactionStatusPending
	}
	if t.Installments <= 0 {
		t.Installments = 1
	}
	if t.Metadata == nil {
		t.Metadata = datatypes.JSONMap{}
	}
	if err := l.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	l.recordChange(ctx, nil, t, types.TransactionChangeReasonCreate, nil)
	return nil
}

// Apply moves the transaction to ch.To if the state machine allows it.
// Repeating an already-applied change and losing a race against a terminal
// state both return applied=false with no error.
func (l *Ledger) Apply(ctx context.Context, id string, ch Change) (*models.Transaction, bool, error) {
	if ch.To == "" {
		return nil, false, fmt.Errorf("change without target status")
	}
	before, after, applied, err := l.mutate(ctx, id, func(cur *models.Transaction, now time.Time) (map[string]any, error) {
		return plan(cur, ch, now)
	})
	lg := logctx.FromCtx(ctx, l.log)
	switch {
	case errors.Is(err, ErrAlreadyTerminal):
		lg.Infow("ledger_transition_stale", "transaction_id", id, "status", after.Status, "to", ch.To, "reason", ch.Reason)
		return after, false, nil
	case err != nil:
		return after, false, err
	}
	if !applied {
		lg.Debugw("ledger_transition_noop", "transaction_id", id, "status", after.Status, "to", ch.To, "reason", ch.Reason)
		return after, false, nil
	}

	extra := map[string]any{}
	for k, v := range ch.Extra {
		extra[k] = v
	}
	if ch.EventID != "" {
		extra["event_id"] = ch.EventID
	}
	if ch.RefundRef != "" {
		extra["refund_ref"] = ch.RefundRef
	}
	l.recordChange(ctx, before, after, ch.Reason, extra)
	return after, true, nil
}

// CheckRefundable validates a refund amount against t's balance. Callers
// about to move money use ReserveRefund, which runs the same check under
// the row lock.
func (l *Ledger) CheckRefundable(t *models.Transaction, amount decimal.Decimal) error {
	if t == nil {
		return ErrNotFound
	}
	if !amount.IsPositive() {
		return ErrInvalidRefundAmount
	}
	if !t.Status.IsRefundable() {
		return fmt.Errorf("%w: cannot refund a %s transaction", ErrInvalidTransition, t.Status)
	}
	if amount.GreaterThan(t.RemainingRefundable()) {
		return fmt.Errorf("%w: requested %s, remaining %s", ErrRefundExceedsBalance, amount.StringFixed(2), t.RemainingRefundable().StringFixed(2))
	}
	return nil
}

// AttachToken records the saved token a transaction was paid with.
func (l *Ledger) AttachToken(ctx context.Context, id, tokenID string) error {
	res := l.db.WithContext(ctx).Model(&models.Transaction{}).Where("id = ?", id).Update("token_id", tokenID)
	if res.Error != nil {
		return fmt.Errorf("failed to attach token: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

type mutation func(cur *models.Transaction, now time.Time) (map[string]any, error)

func (l *Ledger) mutate(ctx context.Context, id string, fn mutation) (before, after *models.Transaction, applied bool, err error) {
	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		before, after, applied, err = l.mutateOnce(ctx, id, fn)
		if !errors.Is(err, ErrConcurrentUpdate) {
			return before, after, applied, err
		}
		logctx.FromCtx(ctx, l.log).Warnw("ledger_cas_retry", "transaction_id", id, "attempt", attempt)
	}
	return before, after, false, err
}

func (l *Ledger) mutateOnce(ctx context.Context, id string, fn mutation) (before, after *models.Transaction, applied bool, err error) {
	now := l.now()
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cur models.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&cur).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load transaction: %w", err)
		}
		before = cur.Snapshot()
		after = before

		updates, err := fn(&cur, now)
		if err != nil || updates == nil {
			return err
		}
		updates["version"] = before.Version + 1
		updates["updated_at"] = now

		res := tx.Model(&models.Transaction{}).
			Where("id = ? AND status = ? AND version = ?", id, before.Status, before.Version).
			Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("failed to update transaction: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrConcurrentUpdate
		}
		cur.Version = before.Version + 1
		cur.UpdatedAt = now
		after = &cur
		applied = true
		return nil
	})
	if err != nil {
		applied = false
	}
	return before, after, applied, err
}

// plan computes the column updates for ch and applies them to cur. A nil
// map means the change is already in effect.
func plan(cur *models.Transaction, ch Change, now time.Time) (map[string]any, error) {
	if ch.isRefund() {
		return planRefund(cur, ch, now)
	}
	if cur.Status == ch.To {
		return nil, nil
	}
	if err := CheckTransition(cur.Status, ch.To); err != nil {
		return nil, fmt.Errorf("%w: %s -> %s", err, cur.Status, ch.To)
	}

	updates := map[string]any{"status": ch.To}
	cur.Status = ch.To
	switch ch.To {
	case types.TransactionStatusAuthorized:
		updates["authorized_at"] = now
		cur.AuthorizedAt = &now
		if ch.AuthorizedAmount != nil {
			updates["authorized_amount"] = *ch.AuthorizedAmount
			cur.AuthorizedAmount = *ch.AuthorizedAmount
		}
		updates["processed_at"] = now
		cur.ProcessedAt = &now
	case types.TransactionStatusCompleted:
		updates["captured_at"] = now
		updates["processed_at"] = now
		cur.CapturedAt = &now
		cur.ProcessedAt = &now
	case types.TransactionStatusFailed:
		updates["failed_at"] = now
		cur.FailedAt = &now
		if ch.ErrorMessage != "" {
			updates["error_message"] = ch.ErrorMessage
			cur.ErrorMessage = lo.ToPtr(ch.ErrorMessage)
		}
	case types.TransactionStatusCancelled:
		updates["cancelled_at"] = now
		cur.CancelledAt = &now
		if cur.NextBillingAt != nil {
			updates["next_billing_at"] = nil
			cur.NextBillingAt = nil
		}
	}
	if ch.GatewayTransactionID != "" && cur.GatewayTransactionID == nil {
		updates["gateway_transaction_id"] = ch.GatewayTransactionID
		cur.GatewayTransactionID = lo.ToPtr(ch.GatewayTransactionID)
	}
	if ch.DocumentID != "" {
		updates["document_id"] = ch.DocumentID
		cur.DocumentID = lo.ToPtr(ch.DocumentID)
	}
	if ch.AuthorizationCode != "" {
		updates["authorization_code"] = ch.AuthorizationCode
		cur.AuthorizationCode = lo.ToPtr(ch.AuthorizationCode)
	}
	return updates, nil
}

func planRefund(cur *models.Transaction, ch Change, now time.Time) (map[string]any, error) {
	if !cur.Status.IsRefundable() {
		if cur.Status == types.TransactionStatusRefunded && ch.To == types.TransactionStatusRefunded {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s -> %s", CheckTransition(cur.Status, ch.To), cur.Status, ch.To)
	}

	refs := refundRefs(cur.Metadata)
	ref := lo.CoalesceOrEmpty(ch.RefundRef, ch.EventID)
	if ref != "" && lo.Contains(refs, ref) {
		return nil, nil
	}

	released := decimal.Max(decimal.Min(ch.Reserved, cur.PendingRefundAmount), decimal.Zero)
	amount := ch.RefundAmount
	remaining := cur.RemainingRefundable().Add(released)
	if amount.IsZero() && ch.To == types.TransactionStatusRefunded {
		amount = remaining
	}
	if !amount.IsPositive() {
		return nil, ErrInvalidRefundAmount
	}
	if amount.GreaterThan(remaining) {
		return nil, fmt.Errorf("%w: requested %s, remaining %s", ErrRefundExceedsBalance, amount.StringFixed(2), remaining.StringFixed(2))
	}

	refunded := cur.RefundedAmount.Add(amount)
	to := types.TransactionStatusPartiallyRefunded
	if refunded.Equal(cur.Amount) {
		to = types.TransactionStatusRefunded
	}

	md := datatypes.JSONMap{}
	for k, v := range cur.Metadata {
		md[k] = v
	}
	if ref != "" {
		md[metaRefundRefs] = append(refs, ref)
	}

	pending := cur.PendingRefundAmount.Sub(released)
	updates := map[string]any{
		"status":                to,
		"refunded_amount":       refunded,
		"pending_refund_amount": pending,
		"metadata":              md,
	}
	cur.Status = to
	cur.RefundedAmount = refunded
	cur.PendingRefundAmount = pending
	cur.Metadata = md
	if to == types.TransactionStatusRefunded {
		updates["refunded_at"] = now
		cur.RefundedAt = &now
	}
	return updates, nil
}

func refundRefs(md datatypes.JSONMap) []string {
	switch v := md[metaRefundRefs].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, r := range v {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// recordChange writes the audit row and publishes the domain event for an
// applied change.
func (l *Ledger) recordChange(ctx context.Context, before, after *models.Transaction, reason types.TransactionChangeReason, extra map[string]any) {
	entry := &models.TransactionLog{
		ID:            tool.GenerateUUIDV7(),
		TransactionID: after.ID,
		PayerID:       after.PayerID,
		Reason:        reason,
		ToStatus:      after.Status,
		After:         datatypes.NewJSONType(after.Snapshot()),
		Extra:         datatypes.JSONMap(extra),
	}
	if entry.Extra == nil {
		entry.Extra = datatypes.JSONMap{}
	}
	if before != nil {
		entry.FromStatus = before.Status
		entry.Before = datatypes.NewJSONType(before)
	}
	l.saveLog(ctx, entry)

	if evt, ok := eventFor(before, after); ok {
		l.bus.Publish(ctx, evt)
	}
}

func (l *Ledger) saveLog(ctx context.Context, entry *models.TransactionLog) {
	go func() {
		if err := l.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
			logctx.FromCtx(ctx, l.log).Errorw("failed to save transaction log", "transaction_id", entry.TransactionID, "err", err)
		}
	}()
}

func eventFor(before, after *models.Transaction) (events.Event, bool) {
	if before == nil || after.Kind == types.TransactionKindRefund {
		return events.Event{}, false
	}
	evt := events.Event{
		TransactionID: after.ID,
		PayerID:       after.PayerID,
		Kind:          after.Kind,
		Status:        after.Status,
		Amount:        after.Amount,
		Currency:      after.Currency,
	}
	if after.RefundedAmount.GreaterThan(before.RefundedAmount) {
		evt.Type = types.EventRefundProcessed
		evt.Amount = after.RefundedAmount.Sub(before.RefundedAmount)
		return evt, true
	}
	if after.Status == before.Status {
		return events.Event{}, false
	}
	switch after.Status {
	case types.TransactionStatusCompleted:
		evt.Type = types.EventPaymentCompleted
		if after.Kind == types.TransactionKindSubscription {
			evt.Type = types.EventSubscriptionCharged
		}
	case types.TransactionStatusAuthorized:
		evt.Type = types.EventPaymentAuthorized
	case types.TransactionStatusFailed:
		evt.Type = types.EventPaymentFailed
	case types.TransactionStatusCancelled:
		evt.Type = types.EventPaymentCancelled
		if after.IsSubscription() && after.ParentID == nil {
			evt.Type = types.EventSubscriptionCancelled
		}
	default:
		return events.Event{}, false
	}
	return evt, true
}
