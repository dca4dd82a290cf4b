package ledger

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/tool"
	"github.com/fatflowers/paygate/pkg/types"
)

func TestReserveRefund_HoldsBalance(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	paid := newPayment(t, l, 100)
	complete(t, l, paid.ID)

	got, err := l.ReserveRefund(ctx, paid.ID, decimal.NewFromInt(60))
	require.NoError(t, err)
	require.True(t, got.PendingRefundAmount.Equal(decimal.NewFromInt(60)))
	require.True(t, got.RemainingRefundable().Equal(decimal.NewFromInt(40)))

	_, err = l.ReserveRefund(ctx, paid.ID, decimal.NewFromInt(60))
	require.ErrorIs(t, err, ErrRefundExceedsBalance)

	got, err = l.ReleaseRefund(ctx, paid.ID, decimal.NewFromInt(60))
	require.NoError(t, err)
	require.True(t, got.PendingRefundAmount.IsZero())

	// releasing twice never goes negative
	got, err = l.ReleaseRefund(ctx, paid.ID, decimal.NewFromInt(60))
	require.NoError(t, err)
	require.True(t, got.PendingRefundAmount.IsZero())
	require.True(t, got.RemainingRefundable().Equal(decimal.NewFromInt(100)))
}

func TestReserveRefund_RejectsUnrefundable(t *testing.T) {
	l, _ := newTestLedger(t)
	pending := newPayment(t, l, 100)

	_, err := l.ReserveRefund(context.Background(), pending.ID, decimal.NewFromInt(10))
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReserveRefund_ConcurrentReservationsNeverOversell(t *testing.T) {
	l, _ := newTestLedger(t)
	paid := newPayment(t, l, 100)
	complete(t, l, paid.ID)

	const workers = 6
	var wg sync.WaitGroup
	var held atomic.Int32
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.ReserveRefund(context.Background(), paid.ID, decimal.NewFromInt(60)); err == nil {
				held.Add(1)
			} else {
				assert.ErrorIs(t, err, ErrRefundExceedsBalance)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, held.Load())
	got, err := l.Get(context.Background(), paid.ID)
	require.NoError(t, err)
	require.True(t, got.PendingRefundAmount.Equal(decimal.NewFromInt(60)))
}

func TestApply_RefundConsumesReservation(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	paid := newPayment(t, l, 100)
	complete(t, l, paid.ID)

	_, err := l.ReserveRefund(ctx, paid.ID, decimal.NewFromInt(100))
	require.NoError(t, err)

	// a refund that holds the whole balance can still apply it
	got, applied, err := l.Apply(ctx, paid.ID, Change{
		To:           types.TransactionStatusRefunded,
		Reason:       types.TransactionChangeReasonRefund,
		RefundAmount: decimal.NewFromInt(100),
		Reserved:     decimal.NewFromInt(100),
		RefundRef:    "rfd-1",
	})
	require.NoError(t, err)
	require.True(t, applied)
	require.Equal(t, types.TransactionStatusRefunded, got.Status)
	require.True(t, got.PendingRefundAmount.IsZero())

	// an unreserved refund cannot spend another refund's reservation
	other := newPayment(t, l, 100)
	complete(t, l, other.ID)
	_, err = l.ReserveRefund(ctx, other.ID, decimal.NewFromInt(70))
	require.NoError(t, err)
	_, _, err = l.Apply(ctx, other.ID, Change{
		To:           types.TransactionStatusRefunded,
		Reason:       types.TransactionChangeReasonWebhook,
		RefundAmount: decimal.NewFromInt(50),
		RefundRef:    "gw-rf-9",
	})
	require.ErrorIs(t, err, ErrRefundExceedsBalance)
}

func TestListRefunds(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	paid := newPayment(t, l, 100)
	complete(t, l, paid.ID)
	for _, amt := range []int64{10, 20} {
		require.NoError(t, l.Create(ctx, &models.Transaction{
			PayerID:  "payer-1",
			OrderRef: tool.GenerateOrderRef("rfd"),
			ParentID: lo.ToPtr(paid.ID),
			Kind:     types.TransactionKindRefund,
			Amount:   decimal.NewFromInt(amt),
			Currency: "ILS",
		}))
	}

	rows, err := l.ListRefunds(ctx, paid.ID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.True(t, rows[0].Amount.Add(rows[1].Amount).Equal(decimal.NewFromInt(30)))
}

func TestFindByGatewayID_FallsBackToRefundRow(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	paid := newPayment(t, l, 100)
	complete(t, l, paid.ID)

	refund := &models.Transaction{
		PayerID:              "payer-1",
		OrderRef:             tool.GenerateOrderRef("rfd"),
		GatewayTransactionID: lo.ToPtr("gw-refund-own"),
		ParentID:             lo.ToPtr(paid.ID),
		Kind:                 types.TransactionKindRefund,
		Amount:               decimal.NewFromInt(10),
		Currency:             "ILS",
	}
	require.NoError(t, l.Create(ctx, refund))

	got, err := l.FindByGatewayID(ctx, "gw-refund-own")
	require.NoError(t, err)
	require.Equal(t, refund.ID, got.ID)

	got, err = l.FindByGatewayID(ctx, "gw-"+paid.ID)
	require.NoError(t, err)
	require.Equal(t, paid.ID, got.ID)
}

func TestMatchRefund_OrderRefFirst(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	paid := newPayment(t, l, 100)
	complete(t, l, paid.ID)

	refund := &models.Transaction{
		PayerID:  "payer-1",
		OrderRef: tool.GenerateOrderRef("rfd"),
		ParentID: lo.ToPtr(paid.ID),
		Kind:     types.TransactionKindRefund,
		Amount:   decimal.NewFromInt(10),
		Currency: "ILS",
	}
	require.NoError(t, l.Create(ctx, refund))

	// the refunded payment's gateway id loses to the refund's own reference
	got, err := l.MatchRefund(ctx, "gw-"+paid.ID, refund.OrderRef)
	require.NoError(t, err)
	require.Equal(t, refund.ID, got.ID)

	got, err = l.MatchRefund(ctx, "gw-"+paid.ID, "")
	require.NoError(t, err)
	require.Equal(t, paid.ID, got.ID)

	_, err = l.MatchRefund(ctx, "unknown", "unknown")
	require.ErrorIs(t, err, ErrNotFound)
}
