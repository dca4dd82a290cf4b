package notification_log

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save asynchronously persists a webhook notification log. Nil input is ignored.
func (s *Service) Save(ctx context.Context, entry *models.PaymentNotificationLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("failed to save notification log", "event_type", entry.EventType, "event_id", entry.EventID, "err", err)
		}
	}()
}

// ListByEvent returns every log row written for one gateway event id,
// oldest first.
func (s *Service) ListByEvent(ctx context.Context, eventID string) ([]*models.PaymentNotificationLog, error) {
	var out []*models.PaymentNotificationLog
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("created_at ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
