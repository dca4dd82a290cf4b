package events

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/metrics"
	"github.com/fatflowers/paygate/pkg/types"
)

// RegisterDefaultListeners logs every domain event and counts payment
// outcomes.
func RegisterDefaultListeners(bus *Bus, log *zap.SugaredLogger, m *metrics.Collectors) {
	for _, t := range types.AllEventTypes {
		bus.Subscribe(t, func(ctx context.Context, e Event) error {
			logctx.FromCtx(ctx, log).Infow("domain_event",
				"event_type", e.Type,
				"event_id", e.ID,
				"transaction_id", e.TransactionID,
				"payer_id", e.PayerID,
				"status", e.Status,
				"amount", e.Amount.StringFixed(2),
				"currency", e.Currency,
			)
			if e.Kind != "" && e.Type != types.EventTokenCreated {
				m.PaymentOutcome(string(e.Kind), string(e.Status))
			}
			return nil
		})
	}
}

var Module = fx.Options(
	fx.Provide(NewBus),
	fx.Invoke(RegisterDefaultListeners),
)
