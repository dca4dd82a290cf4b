package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/tool"
	"github.com/fatflowers/paygate/pkg/types"
)

// Event is published once per committed change. Handlers see a copy and
// must not assume they run before the HTTP response is written.
type Event struct {
	ID            string                  `json:"id"`
	Type          types.EventType         `json:"type"`
	TransactionID string                  `json:"transaction_id,omitempty"`
	PayerID       string                  `json:"payer_id"`
	Kind          types.TransactionKind   `json:"kind,omitempty"`
	Status        types.TransactionStatus `json:"status,omitempty"`
	Amount        decimal.Decimal         `json:"amount"`
	Currency      string                  `json:"currency,omitempty"`
	OccurredAt    time.Time               `json:"occurred_at"`
	Data          map[string]any          `json:"data,omitempty"`
}

type Handler func(ctx context.Context, event Event) error

type Bus struct {
	mu       sync.RWMutex
	handlers map[types.EventType][]Handler
	log      *zap.SugaredLogger
}

func NewBus(log *zap.SugaredLogger) *Bus {
	return &Bus{handlers: make(map[types.EventType][]Handler), log: log}
}

func (b *Bus) Subscribe(eventType types.EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish runs every handler for the event type in subscription order.
// A failing or panicking handler is logged and does not stop the others;
// the publisher never sees handler errors.
func (b *Bus) Publish(ctx context.Context, event Event) {
	if event.ID == "" {
		event.ID = tool.GenerateUUIDV7()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	lg := logctx.FromCtx(ctx, b.log)
	if len(handlers) == 0 {
		lg.Debugw("event_no_handlers", "event_type", event.Type)
		return
	}
	for _, h := range handlers {
		if err := b.run(ctx, h, event); err != nil {
			lg.Errorw("event_handler_failed", "event_type", event.Type, "event_id", event.ID, "transaction_id", event.TransactionID, "err", err)
		}
	}
}

func (b *Bus) run(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, event)
}
