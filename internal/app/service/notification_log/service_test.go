package notification_log

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/internal/platform/db/dbtest"
)

func TestSave_PersistsAsync(t *testing.T) {
	svc := New(dbtest.New(t), zap.NewNop().Sugar())
	ctx, cancel := context.WithCancel(context.Background())

	entry := &models.PaymentNotificationLog{
		EventType:        "payment.completed",
		EventID:          "evt_1",
		OrderRef:         "pay_1",
		NotificationTime: time.Now().UTC(),
		Data:             datatypes.JSON(`{"order_ref":"pay_1"}`),
		Status:           models.PaymentNotificationLogStatusReceived,
	}
	svc.Save(ctx, entry)
	// a cancelled request context must not drop the write
	cancel()
	require.NotEmpty(t, entry.ID)

	require.Eventually(t, func() bool {
		rows, err := svc.ListByEvent(context.Background(), "evt_1")
		return err == nil && len(rows) == 1
	}, 2*time.Second, 10*time.Millisecond)

	rows, err := svc.ListByEvent(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, rows[0].ID)
	assert.Equal(t, models.PaymentNotificationLogStatusReceived, rows[0].Status)
}

func TestSave_NilIgnored(t *testing.T) {
	svc := New(dbtest.New(t), zap.NewNop().Sugar())
	assert.NotPanics(t, func() { svc.Save(context.Background(), nil) })
}
