package notification_handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/paygate/internal/app/service/ledger"
	notificationlog "github.com/fatflowers/paygate/internal/app/service/notification_log"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/internal/platform/gateway"
	"github.com/fatflowers/paygate/pkg/config"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/metrics"
	"github.com/fatflowers/paygate/pkg/signature"
	"github.com/fatflowers/paygate/pkg/types"
)

const (
	EventPaymentCompleted  = "payment.completed"
	EventPaymentCaptured   = "payment.captured"
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentFailed     = "payment.failed"
	EventPaymentDeclined   = "payment.declined"
	EventPaymentRefunded   = "payment.refunded"
	EventRefundCompleted   = "refund.completed"
	EventPaymentCancelled  = "payment.cancelled"
	EventPaymentVoided     = "payment.voided"
)

// eventTransitions is the closed set of gateway events that move a
// transaction. Anything else is acknowledged and ignored.
var eventTransitions = map[string]types.TransactionStatus{
	EventPaymentCompleted:  types.TransactionStatusCompleted,
	EventPaymentCaptured:   types.TransactionStatusCompleted,
	EventPaymentAuthorized: types.TransactionStatusAuthorized,
	EventPaymentFailed:     types.TransactionStatusFailed,
	EventPaymentDeclined:   types.TransactionStatusFailed,
	EventPaymentRefunded:   types.TransactionStatusRefunded,
	EventRefundCompleted:   types.TransactionStatusRefunded,
	EventPaymentCancelled:  types.TransactionStatusCancelled,
	EventPaymentVoided:     types.TransactionStatusCancelled,
}

type Outcome string

const (
	OutcomeApplied      Outcome = "applied"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeIgnored      Outcome = "ignored"
	OutcomeNotFound     Outcome = "not_found"
	OutcomeUnauthorized Outcome = "unauthorized"
)

type Result struct {
	Outcome       Outcome                 `json:"outcome"`
	TransactionID string                  `json:"transaction_id,omitempty"`
	Status        types.TransactionStatus `json:"status,omitempty"`
	Message       string                  `json:"message,omitempty"`
}

// HTTPStatus is what the webhook endpoint answers. Only authentication and
// lookup failures are non-2xx; everything else is acknowledged so the
// sender stops redelivering.
func (r *Result) HTTPStatus() int {
	switch r.Outcome {
	case OutcomeUnauthorized:
		return http.StatusUnauthorized
	case OutcomeNotFound:
		return http.StatusNotFound
	}
	return http.StatusOK
}

// PaymentLookup fetches the gateway's own view of a payment.
type PaymentLookup interface {
	GetPayment(ctx context.Context, gatewayTransactionID string) (*gateway.Result, error)
}

type NotificationHandler struct {
	cfg      *config.Config
	notifSvc *notificationlog.Service
	ledger   *ledger.Ledger
	lookup   PaymentLookup
	metrics  *metrics.Collectors
	Logger   *zap.SugaredLogger
}

func NewNotificationHandler(cfg *config.Config, notif *notificationlog.Service, l *ledger.Ledger, lookup PaymentLookup, m *metrics.Collectors, log *zap.SugaredLogger) *NotificationHandler {
	return &NotificationHandler{cfg: cfg, notifSvc: notif, ledger: l, lookup: lookup, metrics: m, Logger: log}
}

// VerifySignature checks body against the configured webhook secret. With
// no secret configured, unsigned deliveries pass only when signatures are
// not required.
func (h *NotificationHandler) VerifySignature(body []byte, sig string) bool {
	wh := h.cfg.Webhook
	if wh.Secret == "" {
		return !wh.RequireSignature
	}
	return signature.Verify(wh.Secret, body, sig) == nil
}

// Handle reconciles one notification against the ledger. Signature failures
// are rejected before any lookup. Errors are returned only for persistence
// failures; business outcomes are reported through Result.
func (h *NotificationHandler) Handle(ctx context.Context, n *Notification) (res *Result, resErr error) {
	if n == nil {
		return nil, fmt.Errorf("nil notification")
	}
	lg := logctx.FromCtx(ctx, h.Logger)
	if !n.Verified && n.Legacy && h.cfg.Webhook.ConfirmLegacy {
		if err := h.confirm(ctx, n); err != nil {
			return nil, err
		}
	}
	dataBytes, _ := json.Marshal(n.Data)
	base := models.PaymentNotificationLog{
		EventType:            n.EventType,
		EventID:              n.EventID,
		TraceID:              n.TraceID,
		OrderRef:             n.OrderRef,
		GatewayTransactionID: n.GatewayTransactionID,
		SignatureVerified:    n.Verified,
		NotificationTime:     n.ReceivedAt,
		Data:                 datatypes.JSON(dataBytes),
	}

	received := base
	received.Status = models.PaymentNotificationLogStatusReceived
	h.notifSvc.Save(ctx, &received)

	defer func() {
		resMap := map[string]any{"result": res}
		entry := base
		entry.Status = models.PaymentNotificationLogStatusHandled
		outcome := "error"
		if res != nil {
			outcome = string(res.Outcome)
			entry.Outcome = outcome
			if res.TransactionID != "" {
				entry.TransactionID = lo.ToPtr(res.TransactionID)
			}
		}
		if resErr != nil {
			resMap["error"] = resErr.Error()
			entry.Status = models.PaymentNotificationLogStatusHandleFailed
		}
		resBytes, _ := json.Marshal(resMap)
		entry.Result = lo.ToPtr(datatypes.JSON(resBytes))
		h.notifSvc.Save(ctx, &entry)
		h.metrics.WebhookOutcome(n.EventType, outcome)
	}()

	if !n.Verified {
		lg.Warnw("webhook_signature_rejected", "event_type", n.EventType, "event_id", n.EventID)
		return &Result{Outcome: OutcomeUnauthorized, Message: "invalid signature"}, nil
	}

	to, ok := eventTransitions[n.EventType]
	if !ok {
		lg.Infow("webhook_unknown_event", "event_type", n.EventType, "event_id", n.EventID)
		return &Result{Outcome: OutcomeIgnored, Message: "unhandled event type"}, nil
	}

	match := h.ledger.Match
	if to == types.TransactionStatusRefunded {
		match = h.ledger.MatchRefund
	}
	txn, err := match(ctx, n.GatewayTransactionID, n.OrderRef)
	if errors.Is(err, ledger.ErrNotFound) {
		lg.Warnw("webhook_transaction_not_found", "event_type", n.EventType, "gateway_transaction_id", n.GatewayTransactionID, "order_ref", n.OrderRef)
		return &Result{Outcome: OutcomeNotFound, Message: "transaction not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match transaction: %w", err)
	}

	ch := ledger.Change{
		To:                   to,
		Reason:               types.TransactionChangeReasonWebhook,
		GatewayTransactionID: n.GatewayTransactionID,
		DocumentID:           n.DocumentID,
		ErrorMessage:         n.ErrorMessage,
		EventID:              n.EventID,
		Extra:                map[string]any{"event_type": n.EventType},
	}
	var refund *models.Transaction
	switch {
	case txn.Kind == types.TransactionKindRefund && (to != types.TransactionStatusRefunded || txn.ParentID == nil):
		lg.Infow("webhook_refund_row_ignored", "transaction_id", txn.ID, "event_type", n.EventType)
		return &Result{Outcome: OutcomeIgnored, TransactionID: txn.ID, Status: txn.Status, Message: "not a refund event"}, nil
	case to == types.TransactionStatusRefunded && txn.Kind == types.TransactionKindRefund && txn.ParentID != nil:
		// a refund matched through its own row is applied to the refunded
		// payment under the same reference the synchronous refund used, and
		// takes over its reservation while that refund is still pending
		refund = txn
		ch.RefundRef = refund.OrderRef
		ch.RefundAmount = lo.Ternary(n.Amount.IsZero(), refund.Amount, n.Amount)
		if refund.Status == types.TransactionStatusPending {
			ch.Reserved = refund.Amount
		}
		ch.GatewayTransactionID = ""
		if txn, err = h.ledger.Get(ctx, *refund.ParentID); err != nil {
			return nil, fmt.Errorf("failed to load refunded payment: %w", err)
		}
	case to == types.TransactionStatusRefunded:
		ch.RefundAmount = n.Amount
		ch.RefundRef = n.RefundRef
	}

	after, applied, err := h.ledger.Apply(ctx, txn.ID, ch)
	switch {
	case errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrRefundExceedsBalance),
		errors.Is(err, ledger.ErrInvalidRefundAmount):
		lg.Warnw("webhook_transition_rejected", "transaction_id", txn.ID, "status", txn.Status, "to", to, "err", err)
		return &Result{Outcome: OutcomeIgnored, TransactionID: txn.ID, Status: txn.Status, Message: err.Error()}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to apply notification: %w", err)
	}

	if refund != nil && refund.Status == types.TransactionStatusPending {
		if _, _, err := h.ledger.Apply(ctx, refund.ID, ledger.Change{
			To:                   types.TransactionStatusCompleted,
			Reason:               types.TransactionChangeReasonWebhook,
			GatewayTransactionID: lo.Ternary(n.GatewayTransactionID != lo.FromPtr(after.GatewayTransactionID), n.GatewayTransactionID, ""),
			EventID:              n.EventID,
		}); err != nil {
			lg.Errorw("webhook_refund_complete_failed", "refund_id", refund.ID, "err", err)
		}
	}

	res = &Result{TransactionID: after.ID, Status: after.Status}
	switch {
	case applied:
		res.Outcome = OutcomeApplied
		lg.Infow("webhook_applied", "transaction_id", after.ID, "event_type", n.EventType, "status", after.Status)
	case reached(after.Status, to):
		res.Outcome = OutcomeDuplicate
		lg.Infow("webhook_duplicate", "transaction_id", after.ID, "event_type", n.EventType, "status", after.Status)
	default:
		// the transaction already moved past the notified state
		res.Outcome = OutcomeIgnored
		res.Message = "stale notification"
		lg.Infow("webhook_stale", "transaction_id", after.ID, "event_type", n.EventType, "status", after.Status)
	}
	return res, nil
}

// confirm asks the gateway for the payment a legacy callback names and
// rewrites the notification from the answer. A callback the gateway does
// not know stays unverified; a lookup that fails is returned so the sender
// redelivers.
func (h *NotificationHandler) confirm(ctx context.Context, n *Notification) error {
	if n.GatewayTransactionID == "" || h.lookup == nil {
		return nil
	}
	lg := logctx.FromCtx(ctx, h.Logger)
	res, err := h.lookup.GetPayment(ctx, n.GatewayTransactionID)
	if err != nil {
		lg.Errorw("webhook_confirm_failed", "gateway_transaction_id", n.GatewayTransactionID, "err", err)
		return fmt.Errorf("failed to confirm callback with the gateway: %w", err)
	}
	if res.GatewayTransactionID != n.GatewayTransactionID {
		lg.Warnw("webhook_confirm_mismatch", "gateway_transaction_id", n.GatewayTransactionID, "gateway_reported", res.GatewayTransactionID)
		return nil
	}
	n.Verified = true
	n.EventType = EventPaymentFailed
	n.ErrorMessage = lo.CoalesceOrEmpty(res.ErrorMessage, n.ErrorMessage)
	if res.Success {
		n.EventType = EventPaymentCompleted
		n.ErrorMessage = ""
	}
	n.DocumentID = lo.CoalesceOrEmpty(n.DocumentID, res.DocumentID)
	if n.Data == nil {
		n.Data = map[string]any{}
	}
	n.Data["confirmed_by_gateway"] = true
	lg.Infow("webhook_confirmed_by_gateway", "gateway_transaction_id", n.GatewayTransactionID, "event_type", n.EventType)
	return nil
}

func reached(cur, to types.TransactionStatus) bool {
	if to == types.TransactionStatusRefunded {
		return cur == types.TransactionStatusRefunded || cur == types.TransactionStatusPartiallyRefunded
	}
	return cur == to
}

var Module = fx.Options(
	fx.Provide(
		NewNotificationHandler,
		func(api *gateway.API) PaymentLookup { return api },
	),
)
