package notification_handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

var ErrMalformedNotification = errors.New("malformed notification")

// Notification is a parsed gateway callback. Verified carries the outcome of
// the signature check done on the raw body.
type Notification struct {
	EventType            string
	EventID              string
	GatewayTransactionID string
	OrderRef             string
	DocumentID           string
	Amount               decimal.Decimal
	RefundRef            string
	ErrorMessage         string
	Verified             bool
	// Legacy marks a redirect callback, which carries no event type and no
	// signature.
	Legacy     bool
	TraceID    string
	ReceivedAt time.Time
	Data       map[string]any
}

// Parse decodes a callback body. Both the structured event format and the
// gateway's legacy redirect-callback keys (OG-OrderID, OG-PaymentID, Success)
// are understood; the legacy form carries no event type, so one is derived
// from its Success flag.
func Parse(body []byte, now time.Time) (*Notification, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var data map[string]any
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}

	n := &Notification{
		EventType:            str(data, "event_type"),
		EventID:              str(data, "event_id"),
		GatewayTransactionID: lo.CoalesceOrEmpty(str(data, "gateway_transaction_id"), str(data, "OG-PaymentID"), str(data, "TransactionID")),
		OrderRef:             lo.CoalesceOrEmpty(str(data, "order_ref"), str(data, "OG-OrderID")),
		DocumentID:           lo.CoalesceOrEmpty(str(data, "document_id"), str(data, "OG-DocumentID")),
		RefundRef:            str(data, "refund_ref"),
		ErrorMessage:         lo.CoalesceOrEmpty(str(data, "error_message"), str(data, "ErrorMessage")),
		ReceivedAt:           now,
		Data:                 data,
	}
	if raw, ok := data["amount"]; ok && raw != nil {
		amt, err := decimal.NewFromString(fmt.Sprint(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: amount: %v", ErrMalformedNotification, err)
		}
		n.Amount = amt
	}
	if n.EventType == "" {
		if s, ok := data["Success"]; ok {
			n.Legacy = true
			n.EventType = EventPaymentFailed
			if b := strings.ToLower(fmt.Sprint(s)); b == "true" || b == "1" {
				n.EventType = EventPaymentCompleted
			}
		}
	}
	if n.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_type", ErrMalformedNotification)
	}
	if n.GatewayTransactionID == "" && n.OrderRef == "" {
		return nil, fmt.Errorf("%w: missing gateway_transaction_id and order_ref", ErrMalformedNotification)
	}
	return n, nil
}

func str(m map[string]any, key string) string {
	v, ok := m[key]
	if !ok || v == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
