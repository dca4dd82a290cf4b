package billing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/paygate/internal/app/service/events"
	"github.com/fatflowers/paygate/internal/app/service/ledger"
	"github.com/fatflowers/paygate/internal/app/service/payment"
	"github.com/fatflowers/paygate/internal/app/service/token"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/internal/platform/db/dbtest"
	"github.com/fatflowers/paygate/pkg/apperr"
	"github.com/fatflowers/paygate/pkg/config"
	"github.com/fatflowers/paygate/pkg/metrics"
	"github.com/fatflowers/paygate/pkg/tool"
	"github.com/fatflowers/paygate/pkg/types"
)

var tickNow = time.Date(2026, 3, 10, 6, 0, 0, 0, time.UTC)

type fakeCharger struct {
	mu      sync.Mutex
	intents []*payment.Intent
	delay   time.Duration
	// respond decides the outcome per intent; nil means success
	respond func(in *payment.Intent) (*payment.Result, error)
}

func (f *fakeCharger) ProcessPayment(_ context.Context, in *payment.Intent) (*payment.Result, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	f.intents = append(f.intents, in)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(in)
	}
	return &payment.Result{Success: true, Transaction: &models.Transaction{ID: tool.GenerateUUIDV7(), Status: types.TransactionStatusCompleted}}, nil
}

func (f *fakeCharger) calls() []*payment.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*payment.Intent(nil), f.intents...)
}

func declined(msg string) (*payment.Result, error) {
	return &payment.Result{Kind: apperr.KindGatewayDeclined, Message: msg}, nil
}

type harness struct {
	db        *gorm.DB
	ledger    *ledger.Ledger
	tokens    *token.Service
	charger   *fakeCharger
	scheduler *Scheduler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gdb := dbtest.New(t)
	log := zap.NewNop().Sugar()
	bus := events.NewBus(log)
	m, err := metrics.NewCollectors(prometheus.NewRegistry())
	require.NoError(t, err)

	cfg := &config.Config{
		Payment: config.PaymentConfig{DefaultCurrency: "ILS", MerchantNumber: "m-main", SubscriptionMerchantNumber: "m-sub"},
		Billing: config.BillingConfig{Workers: 3, BatchSize: 100},
	}
	h := &harness{db: gdb, ledger: ledger.New(gdb, log, bus), tokens: token.New(gdb, log, bus), charger: &fakeCharger{}}
	h.scheduler = NewScheduler(cfg, log, h.ledger, h.tokens, h.charger, m)
	h.scheduler.now = func() time.Time { return tickNow }
	return h
}

func (h *harness) token(t *testing.T, payerID string, year int) *models.PaymentToken {
	t.Helper()
	tok, err := h.tokens.Create(context.Background(), &token.CreateRequest{
		PayerID:      payerID,
		Card:         token.Card{Brand: "visa", LastFour: "4242", ExpiryMonth: 12, ExpiryYear: year},
		GatewayToken: tool.GenerateUUIDV7(),
	})
	require.NoError(t, err)
	return tok
}

func (h *harness) subscription(t *testing.T, payerID string, next time.Time, failures int) *models.Transaction {
	t.Helper()
	tok := h.token(t, payerID, 2030)
	sub := &models.Transaction{
		PayerID:       payerID,
		OrderRef:      tool.GenerateOrderRef("sub"),
		Kind:          types.TransactionKindSubscription,
		Status:        types.TransactionStatusActive,
		Amount:        decimal.NewFromInt(50),
		Currency:      "ILS",
		TokenID:       lo.ToPtr(tok.ID),
		Frequency:     types.BillingFrequencyMonthly,
		BillingDay:    next.Day(),
		NextBillingAt: lo.ToPtr(next),
	}
	require.NoError(t, h.ledger.Create(context.Background(), sub))
	if failures > 0 {
		require.NoError(t, h.db.Model(&models.Transaction{}).Where("id = ?", sub.ID).Update("consecutive_failures", failures).Error)
	}
	return sub
}

func (h *harness) get(t *testing.T, id string) *models.Transaction {
	t.Helper()
	got, err := h.ledger.Get(context.Background(), id)
	require.NoError(t, err)
	return got
}

func TestTick_ChargesDueSubscriptions(t *testing.T) {
	h := newHarness(t)
	due := h.subscription(t, "payer-1", tickNow.Add(-time.Hour), 1)
	later := h.subscription(t, "payer-2", tickNow.Add(24*time.Hour), 0)

	res, err := h.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Due)
	assert.Equal(t, 1, res.Charged)
	require.Len(t, res.Items, 1)
	assert.Equal(t, OutcomeCharged, res.Items[0].Outcome)

	calls := h.charger.calls()
	require.Len(t, calls, 1)
	in := calls[0]
	assert.Equal(t, due.ID, in.ParentID)
	assert.True(t, in.Recurring)
	assert.Equal(t, types.TransactionKindSubscription, in.Kind)
	assert.Equal(t, *due.TokenID, in.TokenID)
	assert.True(t, in.Amount.Equal(decimal.NewFromInt(50)))

	got := h.get(t, due.ID)
	assert.Equal(t, types.TransactionStatusActive, got.Status)
	assert.Zero(t, got.ConsecutiveFailures)
	require.NotNil(t, got.NextBillingAt)
	assert.True(t, got.NextBillingAt.Equal(NextBillingDate(due.NextBillingAt.UTC(), types.BillingFrequencyMonthly, due.BillingDay)))
	require.NotNil(t, got.LastChargedAt)

	untouched := h.get(t, later.ID)
	assert.True(t, untouched.NextBillingAt.Equal(*later.NextBillingAt))
}

func TestTick_FailurePolicy(t *testing.T) {
	h := newHarness(t)
	h.charger.respond = func(*payment.Intent) (*payment.Result, error) { return declined("insufficient funds") }
	next := tickNow.Add(-time.Minute)
	once := h.subscription(t, "payer-1", next, 1)
	twice := h.subscription(t, "payer-2", next, 2)

	res, err := h.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Due)
	assert.Equal(t, 2, res.Failed)
	assert.Equal(t, 1, res.Cancelled)

	got := h.get(t, once.ID)
	assert.Equal(t, types.TransactionStatusActive, got.Status)
	assert.Equal(t, 2, got.ConsecutiveFailures)
	require.NotNil(t, got.NextBillingAt)
	assert.True(t, got.NextBillingAt.Equal(next), "billing date must stay put so the next tick retries")
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "insufficient funds", *got.ErrorMessage)

	got = h.get(t, twice.ID)
	assert.Equal(t, types.TransactionStatusCancelled, got.Status)
	assert.Equal(t, 3, got.ConsecutiveFailures)
	assert.Nil(t, got.NextBillingAt)

	// the cancelled one is no longer due; the other is retried
	res, err = h.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Due)
	assert.Equal(t, once.ID, res.Items[0].SubscriptionID)
	assert.Equal(t, OutcomeCancelled, res.Items[0].Outcome)
}

func TestTick_IsolatesItemFailures(t *testing.T) {
	h := newHarness(t)
	next := tickNow.Add(-time.Minute)
	boom := h.subscription(t, "payer-boom", next, 0)
	broken := h.subscription(t, "payer-err", next, 0)
	ok := h.subscription(t, "payer-ok", next, 0)
	h.charger.respond = func(in *payment.Intent) (*payment.Result, error) {
		switch in.ParentID {
		case boom.ID:
			panic("gateway client exploded")
		case broken.ID:
			return nil, errors.New("database unavailable")
		}
		return &payment.Result{Success: true}, nil
	}

	res, err := h.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, res.Due)
	assert.Equal(t, 1, res.Charged)
	assert.Equal(t, 2, res.Errors)

	assert.Equal(t, 0, h.get(t, broken.ID).ConsecutiveFailures)
	assert.True(t, h.get(t, ok.ID).NextBillingAt.After(tickNow))
}

func TestTick_EndedSubscriptionIsCancelledWithoutCharge(t *testing.T) {
	h := newHarness(t)
	sub := h.subscription(t, "payer-1", tickNow.Add(-time.Hour), 0)
	require.NoError(t, h.db.Model(&models.Transaction{}).Where("id = ?", sub.ID).Update("ends_at", tickNow.Add(-time.Minute)).Error)

	res, err := h.scheduler.Tick(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, OutcomeEnded, res.Items[0].Outcome)
	assert.Empty(t, h.charger.calls())
	assert.Equal(t, types.TransactionStatusCancelled, h.get(t, sub.ID).Status)
}

func TestTick_SkipsInflightSubscription(t *testing.T) {
	h := newHarness(t)
	sub := h.subscription(t, "payer-1", tickNow.Add(-time.Hour), 0)
	h.scheduler.inflight.Store(sub.ID, struct{}{})

	res, err := h.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, h.charger.calls())
}

func TestTick_ConcurrentTicksChargeOnce(t *testing.T) {
	h := newHarness(t)
	h.charger.delay = 30 * time.Millisecond
	subs := make([]*models.Transaction, 4)
	for i := range subs {
		subs[i] = h.subscription(t, tool.GenerateUUIDV7(), tickNow.Add(-time.Hour), 0)
	}

	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.scheduler.Tick(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	charged := lo.CountValuesBy(h.charger.calls(), func(in *payment.Intent) string { return in.ParentID })
	assert.Len(t, charged, len(subs))
	for _, s := range subs {
		assert.Equal(t, 1, charged[s.ID], "subscription %s", s.ID)
	}
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()

	t.Run("uses default token and schedules from now", func(t *testing.T) {
		h := newHarness(t)
		tok := h.token(t, "payer-1", 2030)
		out, err := h.scheduler.CreateSubscription(ctx, &CreateSubscriptionRequest{
			PayerID:   "payer-1",
			Amount:    decimal.NewFromInt(30),
			Frequency: types.BillingFrequencyWeekly,
		})
		require.NoError(t, err)
		sub := out.Subscription
		assert.Equal(t, types.TransactionStatusActive, sub.Status)
		assert.Equal(t, tok.ID, *sub.TokenID)
		assert.Equal(t, "ILS", sub.Currency)
		assert.Equal(t, "m-sub", sub.MerchantNumber)
		assert.True(t, sub.NextBillingAt.Equal(tickNow))
		assert.Nil(t, out.FirstCharge)
		assert.Empty(t, h.charger.calls())
	})

	t.Run("charge now advances the schedule", func(t *testing.T) {
		h := newHarness(t)
		tok := h.token(t, "payer-1", 2030)
		out, err := h.scheduler.CreateSubscription(ctx, &CreateSubscriptionRequest{
			PayerID:   "payer-1",
			Amount:    decimal.NewFromInt(30),
			Frequency: types.BillingFrequencyMonthly,
			TokenID:   tok.ID,
			ChargeNow: true,
		})
		require.NoError(t, err)
		require.NotNil(t, out.FirstCharge)
		assert.True(t, out.FirstCharge.Success)
		assert.Equal(t, types.TransactionStatusActive, out.Subscription.Status)
		assert.True(t, out.Subscription.NextBillingAt.Equal(tickNow.AddDate(0, 1, 0)))
		require.Len(t, h.charger.calls(), 1)
		assert.Equal(t, out.Subscription.ID, h.charger.calls()[0].ParentID)
	})

	t.Run("failed first charge cancels", func(t *testing.T) {
		h := newHarness(t)
		h.token(t, "payer-1", 2030)
		h.charger.respond = func(*payment.Intent) (*payment.Result, error) { return declined("card blocked") }
		out, err := h.scheduler.CreateSubscription(ctx, &CreateSubscriptionRequest{
			PayerID:   "payer-1",
			Amount:    decimal.NewFromInt(30),
			Frequency: types.BillingFrequencyMonthly,
			ChargeNow: true,
		})
		require.NoError(t, err)
		assert.False(t, out.FirstCharge.Success)
		assert.Equal(t, types.TransactionStatusCancelled, out.Subscription.Status)
	})

	t.Run("token problems", func(t *testing.T) {
		h := newHarness(t)
		_, err := h.scheduler.CreateSubscription(ctx, &CreateSubscriptionRequest{
			PayerID: "payer-1", Amount: decimal.NewFromInt(30), Frequency: types.BillingFrequencyMonthly,
		})
		assert.Equal(t, apperr.KindTokenNotFound, apperr.KindOf(err))

		expired := h.token(t, "payer-1", 2025)
		_, err = h.scheduler.CreateSubscription(ctx, &CreateSubscriptionRequest{
			PayerID: "payer-1", Amount: decimal.NewFromInt(30), Frequency: types.BillingFrequencyMonthly, TokenID: expired.ID,
		})
		assert.Equal(t, apperr.KindTokenExpired, apperr.KindOf(err))

		other := h.token(t, "payer-2", 2030)
		_, err = h.scheduler.CreateSubscription(ctx, &CreateSubscriptionRequest{
			PayerID: "payer-1", Amount: decimal.NewFromInt(30), Frequency: types.BillingFrequencyMonthly, TokenID: other.ID,
		})
		assert.Equal(t, apperr.KindTokenNotFound, apperr.KindOf(err))
	})

	t.Run("validation", func(t *testing.T) {
		h := newHarness(t)
		for name, req := range map[string]*CreateSubscriptionRequest{
			"no payer":      {Amount: decimal.NewFromInt(1), Frequency: types.BillingFrequencyDaily},
			"zero amount":   {PayerID: "p", Frequency: types.BillingFrequencyDaily},
			"bad frequency": {PayerID: "p", Amount: decimal.NewFromInt(1), Frequency: "hourly"},
			"bad day":       {PayerID: "p", Amount: decimal.NewFromInt(1), Frequency: types.BillingFrequencyMonthly, BillingDay: 32},
		} {
			_, err := h.scheduler.CreateSubscription(ctx, req)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), name)
		}
	})
}

func TestCancelAndList(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	sub := h.subscription(t, "payer-1", tickNow.Add(time.Hour), 0)

	_, err := h.scheduler.Cancel(ctx, sub.ID, "payer-2")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	got, err := h.scheduler.Cancel(ctx, sub.ID, "payer-1")
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatusCancelled, got.Status)

	got, err = h.scheduler.Cancel(ctx, sub.ID, "payer-1")
	require.NoError(t, err)
	assert.Equal(t, types.TransactionStatusCancelled, got.Status)

	list, err := h.scheduler.List(ctx, "payer-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, sub.ID, list[0].ID)
}

// peer builds a second scheduler over the same database, as another
// replica of the service would run.
func (h *harness) peer(t *testing.T) *Scheduler {
	t.Helper()
	m, err := metrics.NewCollectors(prometheus.NewRegistry())
	require.NoError(t, err)
	p := NewScheduler(h.scheduler.cfg, zap.NewNop().Sugar(), h.ledger, h.tokens, h.charger, m)
	p.now = h.scheduler.now
	return p
}

func TestTick_SchedulersSharingLedgerChargeOnce(t *testing.T) {
	h := newHarness(t)
	h.charger.delay = 50 * time.Millisecond
	sub := h.subscription(t, "payer-1", tickNow.Add(-time.Hour), 0)
	schedulers := []*Scheduler{h.scheduler, h.peer(t)}

	var wg sync.WaitGroup
	for _, s := range schedulers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Tick(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	require.Len(t, h.charger.calls(), 1)
	got := h.get(t, sub.ID)
	assert.True(t, got.NextBillingAt.After(tickNow))
	assert.Nil(t, got.BillingLeaseUntil)
}

func TestTick_SkipsSubscriptionLeasedElsewhere(t *testing.T) {
	h := newHarness(t)
	sub := h.subscription(t, "payer-1", tickNow.Add(-time.Hour), 0)
	_, ok, err := h.ledger.ClaimBilling(context.Background(), sub.ID, tickNow, tickNow.Add(time.Minute))
	require.NoError(t, err)
	require.True(t, ok)

	res, err := h.peer(t).Tick(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Due)
	assert.Empty(t, h.charger.calls())

	// once the lease runs out the subscription is due again
	later := h.peer(t)
	later.now = func() time.Time { return tickNow.Add(2 * time.Minute) }
	res, err = later.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Charged)
}

func TestTick_ChargeErrorReleasesLease(t *testing.T) {
	h := newHarness(t)
	sub := h.subscription(t, "payer-1", tickNow.Add(-time.Hour), 0)
	h.charger.respond = func(*payment.Intent) (*payment.Result, error) { return nil, errors.New("database unavailable") }

	res, err := h.scheduler.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	got := h.get(t, sub.ID)
	assert.Nil(t, got.BillingLeaseUntil)
	assert.Zero(t, got.ConsecutiveFailures)
}

func TestCreateSubscription_ChargeNowIsNotChargedByPeerTick(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	tok := h.token(t, "payer-1", 2030)
	peer := h.peer(t)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	h.charger.respond = func(*payment.Intent) (*payment.Result, error) {
		once.Do(func() { close(started) })
		<-release
		return &payment.Result{Success: true, Transaction: &models.Transaction{ID: tool.GenerateUUIDV7(), Status: types.TransactionStatusCompleted}}, nil
	}

	done := make(chan *CreateSubscriptionResult, 1)
	go func() {
		out, err := h.scheduler.CreateSubscription(ctx, &CreateSubscriptionRequest{
			PayerID: "payer-1", Amount: decimal.NewFromInt(30), Frequency: types.BillingFrequencyMonthly, TokenID: tok.ID, ChargeNow: true,
		})
		assert.NoError(t, err)
		done <- out
	}()

	<-started
	res, err := peer.Tick(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Charged)
	close(release)

	out := <-done
	require.NotNil(t, out)
	assert.True(t, out.FirstCharge.Success)
	assert.Len(t, h.charger.calls(), 1)
	assert.Nil(t, h.get(t, out.Subscription.ID).BillingLeaseUntil)
}

func TestUpdateSubscription(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := h.subscription(t, "payer-1", tickNow.Add(24*time.Hour), 0)
	lastCharged := tickNow.AddDate(0, 0, -20)
	require.NoError(t, h.db.Model(&models.Transaction{}).Where("id = ?", sub.ID).Update("last_charged_at", lastCharged).Error)

	weekly := types.BillingFrequencyWeekly
	got, err := h.scheduler.UpdateSubscription(ctx, &UpdateSubscriptionRequest{
		ID: sub.ID, PayerID: "payer-1", Amount: lo.ToPtr(decimal.NewFromInt(80)), Frequency: &weekly,
	})
	require.NoError(t, err)
	assert.Equal(t, "80.00", got.Amount.StringFixed(2))
	assert.Equal(t, types.BillingFrequencyWeekly, got.Frequency)
	// a week after the last charge is already behind us
	assert.True(t, got.NextBillingAt.Equal(tickNow))

	for name, req := range map[string]*UpdateSubscriptionRequest{
		"zero amount":   {ID: sub.ID, PayerID: "payer-1", Amount: lo.ToPtr(decimal.Zero)},
		"bad frequency": {ID: sub.ID, PayerID: "payer-1", Frequency: lo.ToPtr(types.BillingFrequency("hourly"))},
		"bad day":       {ID: sub.ID, PayerID: "payer-1", BillingDay: lo.ToPtr(40)},
		"past end":      {ID: sub.ID, PayerID: "payer-1", EndsAt: lo.ToPtr(tickNow.Add(-time.Hour))},
	} {
		_, err := h.scheduler.UpdateSubscription(ctx, req)
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err), name)
	}

	_, err = h.scheduler.UpdateSubscription(ctx, &UpdateSubscriptionRequest{ID: sub.ID, PayerID: "payer-2", Description: lo.ToPtr("x")})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = h.scheduler.Cancel(ctx, sub.ID, "payer-1")
	require.NoError(t, err)
	_, err = h.scheduler.UpdateSubscription(ctx, &UpdateSubscriptionRequest{ID: sub.ID, PayerID: "payer-1", Description: lo.ToPtr("x")})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestUpdatePaymentMethod(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	sub := h.subscription(t, "payer-1", tickNow.Add(24*time.Hour), 0)
	next := h.token(t, "payer-1", 2031)

	got, err := h.scheduler.UpdatePaymentMethod(ctx, sub.ID, "payer-1", next.ID)
	require.NoError(t, err)
	assert.Equal(t, next.ID, *got.TokenID)

	expired := h.token(t, "payer-1", 2025)
	_, err = h.scheduler.UpdatePaymentMethod(ctx, sub.ID, "payer-1", expired.ID)
	assert.Equal(t, apperr.KindTokenExpired, apperr.KindOf(err))

	foreign := h.token(t, "payer-2", 2031)
	_, err = h.scheduler.UpdatePaymentMethod(ctx, sub.ID, "payer-1", foreign.ID)
	assert.Equal(t, apperr.KindTokenNotFound, apperr.KindOf(err))

	_, err = h.scheduler.UpdatePaymentMethod(ctx, sub.ID, "payer-1", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
