package notification_handler

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Structured(t *testing.T) {
	now := time.Now().UTC()
	n, err := Parse([]byte(`{"event_type":"payment.refunded","event_id":"evt_9","gateway_transaction_id":"123","order_ref":"pay_1","amount":40.5,"refund_ref":"rf-1"}`), now)
	require.NoError(t, err)
	assert.Equal(t, EventPaymentRefunded, n.EventType)
	assert.Equal(t, "evt_9", n.EventID)
	assert.Equal(t, "123", n.GatewayTransactionID)
	assert.Equal(t, "pay_1", n.OrderRef)
	assert.True(t, n.Amount.Equal(decimal.RequireFromString("40.5")))
	assert.Equal(t, "rf-1", n.RefundRef)
	assert.Equal(t, now, n.ReceivedAt)
	assert.False(t, n.Verified)
	assert.False(t, n.Legacy)
}

func TestParse_LegacyCallback(t *testing.T) {
	n, err := Parse([]byte(`{"OG-OrderID":"pay_2","OG-PaymentID":987,"OG-DocumentID":"doc-1","Success":true}`), time.Now())
	require.NoError(t, err)
	assert.Equal(t, EventPaymentCompleted, n.EventType)
	assert.Equal(t, "987", n.GatewayTransactionID)
	assert.Equal(t, "pay_2", n.OrderRef)
	assert.Equal(t, "doc-1", n.DocumentID)
	assert.True(t, n.Legacy)

	n, err = Parse([]byte(`{"OG-OrderID":"pay_2","Success":"false","ErrorMessage":"card blocked"}`), time.Now())
	require.NoError(t, err)
	assert.Equal(t, EventPaymentFailed, n.EventType)
	assert.Equal(t, "card blocked", n.ErrorMessage)
}

func TestParse_Malformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":       `nope`,
		"no event":       `{"order_ref":"pay_1"}`,
		"no identifiers": `{"event_type":"payment.completed"}`,
		"bad amount":     `{"event_type":"payment.refunded","order_ref":"pay_1","amount":"abc"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(body), time.Now())
			require.ErrorIs(t, err, ErrMalformedNotification)
		})
	}
}
