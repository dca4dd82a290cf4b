package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/internal/app/service/events"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/internal/platform/db/dbtest"
	"github.com/fatflowers/paygate/pkg/tool"
	"github.com/fatflowers/paygate/pkg/types"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(t types.EventType) []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return lo.Filter(r.events, func(e events.Event, _ int) bool { return e.Type == t })
}

func newTestLedger(t *testing.T) (*Ledger, *recorder) {
	t.Helper()
	gdb := dbtest.New(t)
	bus := events.NewBus(zap.NewNop().Sugar())
	rec := &recorder{}
	for _, et := range types.AllEventTypes {
		bus.Subscribe(et, rec.handle)
	}
	return New(gdb, zap.NewNop().Sugar(), bus), rec
}

func newPayment(t *testing.T, l *Ledger, amount int64) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		PayerID:  "payer-1",
		OrderRef: tool.GenerateOrderRef("ord"),
		Kind:     types.TransactionKindPayment,
		Amount:   decimal.NewFromInt(amount),
		Currency: "ILS",
	}
	require.NoError(t, l.Create(context.Background(), txn))
	return txn
}

func complete(t *testing.T, l *Ledger, id string) *models.Transaction {
	t.Helper()
	got, applied, err := l.Apply(context.Background(), id, Change{To: types.TransactionStatusCompleted, Reason: types.TransactionChangeReasonGateway, GatewayTransactionID: "gw-" + id})
	require.NoError(t, err)
	require.True(t, applied)
	return got
}

func TestCreate_Defaults(t *testing.T) {
	l, _ := newTestLedger(t)
	txn := newPayment(t, l, 100)

	got, err := l.Get(context.Background(), txn.ID)
	require.NoError(t, err)
	require.Equal(t, types.TransactionStatusPending, got.Status)
	require.Equal(t, 1, got.Installments)
	require.True(t, got.RefundedAmount.IsZero())
}

func TestApply_CompleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	l, rec := newTestLedger(t)
	txn := newPayment(t, l, 100)

	ch := Change{
		To:                   types.TransactionStatusCompleted,
		Reason:               types.TransactionChangeReasonWebhook,
		GatewayTransactionID: "gw-1",
		DocumentID:           "doc-1",
		AuthorizationCode:    "auth-1",
	}
	got, applied, err := l.Apply(ctx, txn.ID, ch)
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, types.TransactionStatusCompleted, got.Status)
	require.Equal(t, "gw-1", *got.GatewayTransactionID)
	require.Equal(t, "doc-1", *got.DocumentID)
	require.Equal(t, "auth-1", *got.AuthorizationCode)
	require.NotNil(t, got.ProcessedAt)

	again, applied, err := l.Apply(ctx, txn.ID, ch)
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, types.TransactionStatusCompleted, again.Status)
	require.Equal(t, got.Version, again.Version)

	require.Len(t, rec.ofType(types.EventPaymentCompleted), 1)
}

func TestApply_FailedIsNeverResurrected(t *testing.T) {
	ctx := context.Background()
	l, rec := newTestLedger(t)
	txn := newPayment(t, l, 100)

	_, applied, err := l.Apply(ctx, txn.ID, Change{To: types.TransactionStatusFailed, ErrorMessage: "card declined"})
	require.NoError(t, err)
	require.True(t, applied)

	got, applied, err := l.Apply(ctx, txn.ID, Change{To: types.TransactionStatusCompleted})
	require.NoError(t, err)
	require.False(t, applied)
	require.Equal(t, types.TransactionStatusFailed, got.Status)
	require.Equal(t, "card declined", *got.ErrorMessage)
	require.Empty(t, rec.ofType(types.EventPaymentCompleted))
	require.Len(t, rec.ofType(types.EventPaymentFailed), 1)
}

func TestApply_InvalidTransition(t *testing.T) {
	l, _ := newTestLedger(t)
	txn := newPayment(t, l, 100)
	complete(t, l, txn.ID)

	_, applied, err := l.Apply(context.Background(), txn.ID, Change{To: types.TransactionStatusFailed})
	require.ErrorIs(t, err, ErrInvalidTransition)
	require.False(t, applied)
}

func TestApply_NotFound(t *testing.T) {
	l, _ := newTestLedger(t)
	_, _, err := l.Apply(context.Background(), tool.GenerateUUIDV7(), Change{To: types.TransactionStatusCompleted})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApply_PartialThenFullRefund(t *testing.T) {
	ctx := context.Background()
	l, rec := newTestLedger(t)
	txn := newPayment(t, l, 100)
	complete(t, l, txn.ID)

	got, applied, err := l.Apply(ctx, txn.ID, Change{To: types.TransactionStatusPartiallyRefunded, RefundAmount: decimal.NewFromInt(40), RefundRef: "r1"})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, types.TransactionStatusPartiallyRefunded, got.Status)
	require.True(t, got.RefundedAmount.Equal(decimal.NewFromInt(40)))

	_, _, err = l.Apply(ctx, txn.ID, Change{To: types.TransactionStatusPartiallyRefunded, RefundAmount: decimal.NewFromInt(61), RefundRef: "r2"})
	require.ErrorIs(t, err, ErrRefundExceedsBalance)

	got, applied, err = l.Apply(ctx, txn.ID, Change{To: types.TransactionStatusPartiallyRefunded, RefundAmount: decimal.NewFromInt(60), RefundRef: "r3"})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, types.TransactionStatusRefunded, got.Status)
	require.True(t, got.RefundedAmount.Equal(got.Amount))
	require.NotNil(t, got.RefundedAt)

	got, applied, err = l.Apply(ctx, txn.ID, Change{To: types.TransactionStatusPartiallyRefunded, RefundAmount: decimal.NewFromInt(1), RefundRef: "r4"})
	require.NoError(t, err)
	require.False(t, applied)
	require.True(t, got.RefundedAmount.LessThanOrEqual(got.Amount))

	refunds := rec.ofType(types.EventRefundProcessed)
	require.Len(t, refunds, 2)
	require.True(t, refunds[0].Amount.Equal(decimal.NewFromInt(40)))
	require.True(t, refunds[1].Amount.Equal(decimal.NewFromInt(60)))
}

func TestApply_RefundDedupedByRef(t *testing.T) {
	ctx := context.Background()
	l, rec := newTestLedger(t)
	txn := newPayment(t, l, 100)
	complete(t, l, txn.ID)

	ch := Change{To: types.TransactionStatusPartiallyRefunded, RefundAmount: decimal.NewFromInt(10), EventID: "evt-1"}
	_, applied, err := l.Apply(ctx, txn.ID, ch)
	require.NoError(t, err)
	require.True(t, applied)

	got, applied, err := l.Apply(ctx, txn.ID, ch)
	require.NoError(t, err)
	require.False(t, applied)
	require.True(t, got.RefundedAmount.Equal(decimal.NewFromInt(10)))
	require.Len(t, rec.ofType(types.EventRefundProcessed), 1)
}

func TestApply_FullRefundWithoutAmountTakesRemaining(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	txn := newPayment(t, l, 100)
	complete(t, l, txn.ID)

	_, _, err := l.Apply(ctx, txn.ID, Change{To: types.TransactionStatusPartiallyRefunded, RefundAmount: decimal.NewFromInt(25), RefundRef: "a"})
	require.NoError(t, err)

	got, applied, err := l.Apply(ctx, txn.ID, Change{To: types.TransactionStatusRefunded, EventID: "evt-full"})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, types.TransactionStatusRefunded, got.Status)
	require.True(t, got.RefundedAmount.Equal(decimal.NewFromInt(100)))

	_, applied, err = l.Apply(ctx, txn.ID, Change{To: types.TransactionStatusRefunded, EventID: "evt-full-2"})
	require.NoError(t, err)
	require.False(t, applied)
}

func TestApply_ConcurrentTransitionsApplyOnce(t *testing.T) {
	l, rec := newTestLedger(t)
	txn := newPayment(t, l, 100)

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	appliedCount := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, applied, err := l.Apply(context.Background(), txn.ID, Change{To: types.TransactionStatusCompleted, Reason: types.TransactionChangeReasonWebhook})
			assert.NoError(t, err)
			if applied {
				mu.Lock()
				appliedCount++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, appliedCount)
	require.Len(t, rec.ofType(types.EventPaymentCompleted), 1)
}

func TestApply_WritesAuditLog(t *testing.T) {
	l, _ := newTestLedger(t)
	txn := newPayment(t, l, 100)
	complete(t, l, txn.ID)

	require.Eventually(t, func() bool {
		var logs []models.TransactionLog
		if err := l.db.Where("transaction_id = ?", txn.ID).Find(&logs).Error; err != nil {
			return false
		}
		return lo.ContainsBy(logs, func(row models.TransactionLog) bool {
			return row.FromStatus == types.TransactionStatusPending && row.ToStatus == types.TransactionStatusCompleted &&
				row.After.Data() != nil && row.After.Data().Status == types.TransactionStatusCompleted
		})
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCheckRefundable(t *testing.T) {
	l, _ := newTestLedger(t)
	txn := &models.Transaction{Status: types.TransactionStatusCompleted, Amount: decimal.NewFromInt(100), RefundedAmount: decimal.NewFromInt(30)}

	require.NoError(t, l.CheckRefundable(txn, decimal.NewFromInt(70)))
	require.ErrorIs(t, l.CheckRefundable(txn, decimal.NewFromInt(71)), ErrRefundExceedsBalance)
	require.ErrorIs(t, l.CheckRefundable(txn, decimal.Zero), ErrInvalidRefundAmount)

	txn.Status = types.TransactionStatusAuthorized
	require.ErrorIs(t, l.CheckRefundable(txn, decimal.NewFromInt(1)), ErrInvalidTransition)
}

func TestMatch_GatewayIDThenOrderRef(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	paid := newPayment(t, l, 100)
	complete(t, l, paid.ID)

	refund := &models.Transaction{
		PayerID:              "payer-1",
		OrderRef:             tool.GenerateOrderRef("rfd"),
		GatewayTransactionID: lo.ToPtr("gw-" + paid.ID),
		ParentID:             lo.ToPtr(paid.ID),
		Kind:                 types.TransactionKindRefund,
		Amount:               decimal.NewFromInt(10),
		Currency:             "ILS",
	}
	require.NoError(t, l.Create(ctx, refund))

	got, err := l.Match(ctx, "gw-"+paid.ID, "")
	require.NoError(t, err)
	require.Equal(t, paid.ID, got.ID)

	pending := newPayment(t, l, 50)
	got, err = l.Match(ctx, "unknown", pending.OrderRef)
	require.NoError(t, err)
	require.Equal(t, pending.ID, got.ID)

	_, err = l.Match(ctx, "unknown", "unknown")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetForPayer_HidesOtherPayers(t *testing.T) {
	l, _ := newTestLedger(t)
	txn := newPayment(t, l, 100)

	_, err := l.GetForPayer(context.Background(), txn.ID, "payer-2")
	require.ErrorIs(t, err, ErrNotFound)
	got, err := l.GetForPayer(context.Background(), txn.ID, "payer-1")
	require.NoError(t, err)
	require.Equal(t, txn.ID, got.ID)
}

func TestScan(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	a := newPayment(t, l, 100)
	newPayment(t, l, 200)
	complete(t, l, a.ID)

	resp, err := l.Scan(ctx, &ScanRequest{Filters: []*types.CommonFilter{{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"completed"}}}})
	require.NoError(t, err)
	require.EqualValues(t, 1, resp.Total)
	require.Equal(t, a.ID, resp.Items[0].ID)

	resp, err = l.Scan(ctx, &ScanRequest{SortBy: "amount", SortOrder: "asc"})
	require.NoError(t, err)
	require.EqualValues(t, 2, resp.Total)
	require.True(t, resp.Items[0].Amount.Equal(decimal.NewFromInt(100)))

	_, err = l.Scan(ctx, &ScanRequest{Filters: []*types.CommonFilter{{Field: "merchant_number", Operator: types.CommonFilterOperatorEq, Values: []any{"x"}}}})
	require.ErrorIs(t, err, ErrInvalidFilter)
	_, err = l.Scan(ctx, &ScanRequest{SortBy: "amount; DROP TABLE transaction"})
	require.ErrorIs(t, err, ErrInvalidFilter)
}

func TestListForPayer(t *testing.T) {
	l, _ := newTestLedger(t)
	newPayment(t, l, 1)
	newPayment(t, l, 2)
	newPayment(t, l, 3)

	rows, total, err := l.ListForPayer(context.Background(), "payer-1", 0, 2)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, rows, 2)

	rows, total, err = l.ListForPayer(context.Background(), "payer-2", 0, 10)
	require.NoError(t, err)
	require.Zero(t, total)
	require.Empty(t, rows)
}

func TestAttachToken(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	txn := newPayment(t, l, 10)

	tokenID := tool.GenerateUUIDV7()
	require.NoError(t, l.AttachToken(ctx, txn.ID, tokenID))
	got, err := l.Get(ctx, txn.ID)
	require.NoError(t, err)
	require.Equal(t, tokenID, *got.TokenID)

	require.ErrorIs(t, l.AttachToken(ctx, tool.GenerateUUIDV7(), tokenID), ErrNotFound)
}
