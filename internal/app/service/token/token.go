package token

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paygate/internal/app/service/events"
	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/logctx"
	"github.com/fatflowers/paygate/pkg/tool"
	"github.com/fatflowers/paygate/pkg/types"
)

var (
	ErrTokenNotFound = errors.New("payment token not found")
	ErrTokenExpired  = errors.New("payment token expired")
)

type Card struct {
	Brand       string `json:"brand"`
	LastFour    string `json:"last_four"`
	ExpiryMonth int    `json:"expiry_month"`
	ExpiryYear  int    `json:"expiry_year"`
	CitizenID   string `json:"-"`
}

type CreateRequest struct {
	PayerID      string
	Card         Card
	GatewayToken string
	MakeDefault  bool
}

// Service stores reusable card tokens. Every operation is scoped to the
// owning payer; another payer's token reads as not found.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
	bus *events.Bus
	now func() time.Time
}

func New(db *gorm.DB, log *zap.SugaredLogger, bus *events.Bus) *Service {
	return &Service{db: db, log: log, bus: bus, now: func() time.Time { return time.Now().UTC() }}
}

// ExpiresAt is the last microsecond of the card's expiry month in UTC.
func ExpiresAt(month, year int) time.Time {
	return time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Microsecond)
}

// Create stores a token. It becomes the default when asked to or when the
// payer has no default yet.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*models.PaymentToken, error) {
	if req == nil || req.PayerID == "" || req.GatewayToken == "" {
		return nil, fmt.Errorf("token create: payer and gateway token are required")
	}
	if req.Card.ExpiryMonth < 1 || req.Card.ExpiryMonth > 12 || req.Card.ExpiryYear < 2000 {
		return nil, fmt.Errorf("token create: invalid expiry %02d/%d", req.Card.ExpiryMonth, req.Card.ExpiryYear)
	}
	lastFour := req.Card.LastFour
	if len(lastFour) > 4 {
		lastFour = lastFour[len(lastFour)-4:]
	}
	tok := &models.PaymentToken{
		ID:           tool.GenerateUUIDV7(),
		PayerID:      req.PayerID,
		GatewayToken: req.GatewayToken,
		Brand:        strings.ToLower(req.Card.Brand),
		LastFour:     lastFour,
		ExpiryMonth:  req.Card.ExpiryMonth,
		ExpiryYear:   req.Card.ExpiryYear,
		CitizenID:    req.Card.CitizenID,
		ExpiresAt:    ExpiresAt(req.Card.ExpiryMonth, req.Card.ExpiryYear),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := lockOwner(tx, req.PayerID)
		if err != nil {
			return err
		}
		hasDefault := lo.ContainsBy(owned, func(t *models.PaymentToken) bool { return t.IsDefault })
		tok.IsDefault = req.MakeDefault || !hasDefault
		if tok.IsDefault && hasDefault {
			if err := clearDefault(tx, req.PayerID); err != nil {
				return err
			}
		}
		if err := tx.Create(tok).Error; err != nil {
			return fmt.Errorf("failed to create token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("token_created", "token_id", tok.ID, "payer_id", tok.PayerID, "last_four", tok.LastFour, "is_default", tok.IsDefault)
	s.bus.Publish(ctx, events.Event{
		Type:    types.EventTokenCreated,
		PayerID: tok.PayerID,
		Data:    map[string]any{"token_id": tok.ID, "last_four": tok.LastFour, "is_default": tok.IsDefault},
	})
	return tok, nil
}

// ListActive returns non-removed, non-expired tokens, default first then
// newest first.
func (s *Service) ListActive(ctx context.Context, payerID string) ([]*models.PaymentToken, error) {
	var rows []*models.PaymentToken
	err := s.db.WithContext(ctx).
		Where("payer_id = ? AND expires_at > ?", payerID, s.now()).
		Order("is_default DESC").Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return rows, nil
}

// Resolve picks the token a charge should use: tokenID when given,
// otherwise the payer's default. Expired tokens return ErrTokenExpired
// along with the token.
func (s *Service) Resolve(ctx context.Context, payerID, tokenID string) (*models.PaymentToken, error) {
	var (
		tok *models.PaymentToken
		err error
	)
	if tokenID != "" {
		tok, err = s.Get(ctx, tokenID, payerID)
	} else {
		tok, err = s.GetDefault(ctx, payerID)
	}
	if err != nil {
		return nil, err
	}
	if tok.IsExpired(s.now()) {
		return tok, ErrTokenExpired
	}
	return tok, nil
}

// GetDefault returns the payer's default token, expired or not; callers
// check expiry.
func (s *Service) GetDefault(ctx context.Context, payerID string) (*models.PaymentToken, error) {
	return first(s.db.WithContext(ctx).Where("payer_id = ? AND is_default = ?", payerID, true))
}

func (s *Service) Get(ctx context.Context, id, payerID string) (*models.PaymentToken, error) {
	return first(s.db.WithContext(ctx).Where("id = ? AND payer_id = ?", id, payerID))
}

// SetDefault makes id the payer's only default. Returns false when the
// token does not exist for this payer or has expired.
func (s *Service) SetDefault(ctx context.Context, id, payerID string) (bool, error) {
	now := s.now()
	ok := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := lockOwner(tx, payerID)
		if err != nil {
			return err
		}
		target, found := lo.Find(owned, func(t *models.PaymentToken) bool { return t.ID == id })
		if !found || target.IsExpired(now) {
			return nil
		}
		if target.IsDefault {
			ok = true
			return nil
		}
		if err := clearDefault(tx, payerID); err != nil {
			return err
		}
		if err := tx.Model(&models.PaymentToken{}).Where("id = ?", id).Update("is_default", true).Error; err != nil {
			return fmt.Errorf("failed to set default token: %w", err)
		}
		ok = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Remove soft-deletes the token. If it was the default, the newest remaining
// active token takes over in the same transaction.
func (s *Service) Remove(ctx context.Context, id, payerID string) (bool, error) {
	now := s.now()
	ok := false
	var promoted string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := lockOwner(tx, payerID)
		if err != nil {
			return err
		}
		target, found := lo.Find(owned, func(t *models.PaymentToken) bool { return t.ID == id })
		if !found {
			return nil
		}
		if err := tx.Model(&models.PaymentToken{}).Where("id = ?", id).Update("is_default", false).Error; err != nil {
			return fmt.Errorf("failed to clear default: %w", err)
		}
		if err := tx.Delete(&models.PaymentToken{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to remove token: %w", err)
		}
		ok = true
		if !target.IsDefault {
			return nil
		}

		// owned is ordered newest first
		next, found := lo.Find(owned, func(t *models.PaymentToken) bool { return t.ID != id && !t.IsExpired(now) })
		if !found {
			return nil
		}
		if err := tx.Model(&models.PaymentToken{}).Where("id = ?", next.ID).Update("is_default", true).Error; err != nil {
			return fmt.Errorf("failed to promote default token: %w", err)
		}
		promoted = next.ID
		return nil
	})
	if err != nil {
		return false, err
	}
	if ok {
		logctx.FromCtx(ctx, s.log).Infow("token_removed", "token_id", id, "payer_id", payerID, "promoted_default", promoted)
	}
	return ok, nil
}

// CleanupExpired removes every expired token. When a payer's default is
// among them, their newest live token becomes the default.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now()
	var expired []*models.PaymentToken
	if err := s.db.WithContext(ctx).Where("expires_at <= ?", now).Find(&expired).Error; err != nil {
		return 0, fmt.Errorf("failed to select expired tokens: %w", err)
	}
	lg := logctx.FromCtx(ctx, s.log)
	var removed int64
	for payerID, rows := range lo.GroupBy(expired, func(t *models.PaymentToken) string { return t.PayerID }) {
		n, err := s.removeExpired(ctx, payerID, lo.Map(rows, func(t *models.PaymentToken, _ int) string { return t.ID }), now)
		removed += n
		if err != nil {
			return removed, err
		}
	}
	lg.Infow("token_cleanup_finished", "removed", removed)
	return removed, nil
}

func (s *Service) removeExpired(ctx context.Context, payerID string, ids []string, now time.Time) (int64, error) {
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		owned, err := lockOwner(tx, payerID)
		if err != nil {
			return err
		}
		// only rows that are still live and still expired under the lock
		gone := lo.Filter(owned, func(t *models.PaymentToken, _ int) bool { return lo.Contains(ids, t.ID) && t.IsExpired(now) })
		if len(gone) == 0 {
			return nil
		}
		goneIDs := lo.Map(gone, func(t *models.PaymentToken, _ int) string { return t.ID })
		if err := tx.Model(&models.PaymentToken{}).Where("id IN ?", goneIDs).Update("is_default", false).Error; err != nil {
			return fmt.Errorf("failed to clear default: %w", err)
		}
		res := tx.Delete(&models.PaymentToken{}, "id IN ?", goneIDs)
		if res.Error != nil {
			return fmt.Errorf("failed to remove expired tokens: %w", res.Error)
		}
		removed = res.RowsAffected
		if !lo.ContainsBy(gone, func(t *models.PaymentToken) bool { return t.IsDefault }) {
			return nil
		}
		next, found := lo.Find(owned, func(t *models.PaymentToken) bool { return !lo.Contains(goneIDs, t.ID) && !t.IsExpired(now) })
		if !found {
			return nil
		}
		if err := tx.Model(&models.PaymentToken{}).Where("id = ?", next.ID).Update("is_default", true).Error; err != nil {
			return fmt.Errorf("failed to promote default token: %w", err)
		}
		return nil
	})
	return removed, err
}

// lockOwner serializes default changes for one payer. On postgres a
// transaction-scoped advisory lock on the payer id covers payers with no
// rows yet; the live token rows are then locked and returned newest first.
func lockOwner(tx *gorm.DB, payerID string) ([]*models.PaymentToken, error) {
	if tx.Dialector.Name() == "postgres" {
		if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "payment_token:"+payerID).Error; err != nil {
			return nil, fmt.Errorf("failed to lock payer: %w", err)
		}
	}
	var rows []*models.PaymentToken
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("payer_id = ?", payerID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock payer tokens: %w", err)
	}
	return rows, nil
}

func clearDefault(tx *gorm.DB, payerID string) error {
	err := tx.Model(&models.PaymentToken{}).
		Where("payer_id = ? AND is_default = ?", payerID, true).
		Update("is_default", false).Error
	if err != nil {
		return fmt.Errorf("failed to clear default token: %w", err)
	}
	return nil
}

func first(q *gorm.DB) (*models.PaymentToken, error) {
	var t models.PaymentToken
	if err := q.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return &t, nil
}

var Module = fx.Options(
	fx.Provide(New),
)
