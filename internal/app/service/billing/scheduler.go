package billing

import (
	"context"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fatflowers/paygate/internal/app/service/ledger"
	"github.com/fatflowers/paygate/internal/app/service/payment"
	"github.com/fatflowers/paygate/internal/app/service/token"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/config"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/metrics"
	"github.com/fatflowers/paygate/pkg/types"
)

// Charger is the slice of the payment orchestrator the scheduler needs.
type Charger interface {
	ProcessPayment(ctx context.Context, in *payment.Intent) (*payment.Result, error)
}

type ItemOutcome string

const (
	OutcomeCharged   ItemOutcome = "charged"
	OutcomeFailed    ItemOutcome = "failed"
	OutcomeCancelled ItemOutcome = "cancelled"
	OutcomeEnded     ItemOutcome = "ended"
	OutcomeError     ItemOutcome = "error"
	OutcomeSkipped   ItemOutcome = "skipped"
)

type ItemResult struct {
	SubscriptionID      string                  `json:"subscription_id"`
	Outcome             ItemOutcome             `json:"outcome"`
	TransactionID       string                  `json:"transaction_id,omitempty"`
	Status              types.TransactionStatus `json:"status"`
	ConsecutiveFailures int                     `json:"consecutive_failures"`
	Message             string                  `json:"message,omitempty"`
}

// BatchResult summarizes one tick.
type BatchResult struct {
	StartedAt time.Time     `json:"started_at"`
	Due       int           `json:"due"`
	Charged   int           `json:"charged"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Skipped   int           `json:"skipped"`
	Errors    int           `json:"errors"`
	Items     []*ItemResult `json:"items"`
}

func (b *BatchResult) add(it *ItemResult) {
	b.Items = append(b.Items, it)
	switch it.Outcome {
	case OutcomeCharged:
		b.Charged++
	case OutcomeFailed:
		b.Failed++
	case OutcomeCancelled:
		b.Failed++
		b.Cancelled++
	case OutcomeEnded:
		b.Cancelled++
	case OutcomeError:
		b.Errors++
	case OutcomeSkipped:
		b.Skipped++
	}
}

type Scheduler struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	ledger   *ledger.Ledger
	tokens   *token.Service
	payments Charger
	metrics  *metrics.Collectors
	now      func() time.Time

	// inflight holds subscription ids with a charge in progress
	inflight sync.Map
}

const defaultLeaseTTL = 10 * time.Minute

func (s *Scheduler) leaseTTL() time.Duration {
	if ttl := s.cfg.Billing.LeaseTTL; ttl > 0 {
		return ttl
	}
	return defaultLeaseTTL
}

func NewScheduler(cfg *config.Config, log *zap.SugaredLogger, l *ledger.Ledger, tokens *token.Service, payments Charger, m *metrics.Collectors) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		log:      log,
		ledger:   l,
		tokens:   tokens,
		payments: payments,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Tick charges every subscription that is due. Each subscription is charged
// at most once per period: an in-process guard skips subscriptions this
// scheduler is already charging and a ledger lease skips those claimed by
// any other scheduler. A failing item does not stop the batch;
// only failing to select the batch is an error.
func (s *Scheduler) Tick(ctx context.Context) (*BatchResult, error) {
	now := s.now()
	lg := logctx.FromCtx(ctx, s.log)
	due, err := s.ledger.DueSubscriptions(ctx, now, s.cfg.Billing.BatchSize)
	if err != nil {
		return nil, err
	}
	res := &BatchResult{StartedAt: now, Due: len(due)}
	lg.Infow("billing_tick_started", "due", len(due))

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(max(1, s.cfg.Billing.Workers))
	for _, sub := range due {
		if _, busy := s.inflight.LoadOrStore(sub.ID, struct{}{}); busy {
			lg.Infow("billing_skip_inflight", "subscription_id", sub.ID)
			mu.Lock()
			res.Skipped++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			defer s.inflight.Delete(sub.ID)
			item := s.chargeOne(ctx, sub, now)
			s.metrics.BillingCharge(string(item.Outcome))
			mu.Lock()
			res.add(item)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.BillingTick(now)
	lg.Infow("billing_tick_finished", "due", res.Due, "charged", res.Charged, "failed", res.Failed, "cancelled", res.Cancelled, "skipped", res.Skipped, "errors", res.Errors)
	return res, nil
}

func (s *Scheduler) chargeOne(ctx context.Context, sub *models.Transaction, now time.Time) (item *ItemResult) {
	lg := logctx.FromCtx(ctx, s.log).With("subscription_id", sub.ID, "payer_id", sub.PayerID)
	item = &ItemResult{SubscriptionID: sub.ID, Status: sub.Status, ConsecutiveFailures: sub.ConsecutiveFailures}
	defer func() {
		if r := recover(); r != nil {
			lg.Errorw("billing_charge_panic", "panic", r)
			item = &ItemResult{SubscriptionID: sub.ID, Outcome: OutcomeError, Status: sub.Status, Message: "internal error"}
		}
	}()

	// the lease keeps other schedulers, in this process or not, off the
	// subscription until the outcome is recorded
	claimed, ok, err := s.ledger.ClaimBilling(ctx, sub.ID, now, now.Add(s.leaseTTL()))
	if err != nil {
		lg.Errorw("billing_claim_failed", "err", err)
		item.Outcome, item.Message = OutcomeError, err.Error()
		return item
	}
	if !ok {
		lg.Infow("billing_skip_claimed", "status", claimed.Status)
		item.Outcome, item.Status = OutcomeSkipped, claimed.Status
		return item
	}
	sub = claimed
	release := true
	defer func() {
		if !release {
			return
		}
		if err := s.ledger.ReleaseBilling(context.WithoutCancel(ctx), sub.ID); err != nil {
			lg.Errorw("billing_release_failed", "err", err)
		}
	}()

	if sub.EndsAt != nil && !now.Before(*sub.EndsAt) {
		after, _, err := s.ledger.Apply(ctx, sub.ID, ledger.Change{
			To:     types.TransactionStatusCancelled,
			Reason: types.TransactionChangeReasonBilling,
			Extra:  map[string]any{"ended": true},
		})
		if err != nil {
			lg.Errorw("billing_end_failed", "err", err)
			item.Outcome, item.Message = OutcomeError, err.Error()
			return item
		}
		lg.Infow("billing_subscription_ended", "ends_at", sub.EndsAt)
		item.Outcome, item.Status = OutcomeEnded, after.Status
		return item
	}

	var result *payment.Result
	if sub.TokenID == nil {
		result = &payment.Result{Message: "subscription has no payment token"}
	} else {
		result, err = s.payments.ProcessPayment(ctx, &payment.Intent{
			PayerID:     sub.PayerID,
			Amount:      sub.Amount,
			Currency:    sub.Currency,
			Kind:        types.TransactionKindSubscription,
			TokenID:     *sub.TokenID,
			Description: sub.Description,
			Metadata:    map[string]any{"subscription_id": sub.ID},
			ParentID:    sub.ID,
			Recurring:   true,
		})
	}
	if err != nil {
		// not a charge outcome; leave the counter alone and retry next tick
		lg.Errorw("billing_charge_error", "err", err)
		item.Outcome, item.Message = OutcomeError, err.Error()
		return item
	}
	if result.Transaction != nil {
		item.TransactionID = result.Transaction.ID
	}

	out := ledger.BillingOutcome{Success: result.Success, ChargedAt: now}
	if result.Success {
		scheduled := lo.FromPtrOr(sub.NextBillingAt, now)
		out.NextBillingAt = nextAfter(scheduled, now, sub.Frequency, sub.BillingDay)
	} else {
		out.ErrorMessage = result.Message
	}
	// from here on the charge happened; a lost outcome must not let the
	// next tick charge again before the lease runs out
	release = false
	after, err := s.ledger.RecordBillingOutcome(ctx, sub.ID, out)
	if err != nil {
		lg.Errorw("billing_record_failed", "success", result.Success, "transaction_id", item.TransactionID, "err", err)
		item.Outcome, item.Message = OutcomeError, err.Error()
		return item
	}

	item.Status = after.Status
	item.ConsecutiveFailures = after.ConsecutiveFailures
	switch {
	case result.Success:
		item.Outcome = OutcomeCharged
		lg.Infow("billing_charged", "transaction_id", item.TransactionID, "next_billing_at", out.NextBillingAt)
	case after.Status == types.TransactionStatusCancelled:
		item.Outcome, item.Message = OutcomeCancelled, result.Message
		lg.Warnw("billing_cancelled_after_failures", "consecutive_failures", after.ConsecutiveFailures, "message", result.Message)
	default:
		item.Outcome, item.Message = OutcomeFailed, result.Message
		lg.Warnw("billing_charge_failed", "consecutive_failures", after.ConsecutiveFailures, "kind", result.Kind, "message", result.Message)
	}
	return item
}
