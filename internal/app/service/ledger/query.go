package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/paygate/internal/models"
	"github.com/fatflowers/paygate/pkg/types"
)

func (l *Ledger) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return l.first(l.db.WithContext(ctx).Where("id = ?", id))
}

// GetForPayer hides other payers' transactions behind ErrNotFound.
func (l *Ledger) GetForPayer(ctx context.Context, id, payerID string) (*models.Transaction, error) {
	return l.first(l.db.WithContext(ctx).Where("id = ? AND payer_id = ?", id, payerID))
}

// FindByGatewayID prefers payments and subscriptions over refund rows,
// which may carry the refunded payment's gateway id. A refund row is
// returned only when nothing else has the id.
func (l *Ledger) FindByGatewayID(ctx context.Context, gatewayTransactionID string) (*models.Transaction, error) {
	if gatewayTransactionID == "" {
		return nil, ErrNotFound
	}
	t, err := l.first(l.db.WithContext(ctx).
		Where("gateway_transaction_id = ? AND kind <> ?", gatewayTransactionID, types.TransactionKindRefund).
		Order("created_at DESC"))
	if !errors.Is(err, ErrNotFound) {
		return t, err
	}
	return l.first(l.db.WithContext(ctx).
		Where("gateway_transaction_id = ? AND kind = ?", gatewayTransactionID, types.TransactionKindRefund).
		Order("created_at DESC"))
}

func (l *Ledger) FindByOrderRef(ctx context.Context, orderRef string) (*models.Transaction, error) {
	if orderRef == "" {
		return nil, ErrNotFound
	}
	return l.first(l.db.WithContext(ctx).Where("order_ref = ?", orderRef))
}

// Match locates a transaction by gateway id, falling back to the order
// reference.
func (l *Ledger) Match(ctx context.Context, gatewayTransactionID, orderRef string) (*models.Transaction, error) {
	t, err := l.FindByGatewayID(ctx, gatewayTransactionID)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return t, err
	}
	return l.FindByOrderRef(ctx, orderRef)
}

// MatchRefund locates the target of a refund notification. The order
// reference goes first because a refund's own reference names its refund
// row, while the gateway id usually names the refunded payment.
func (l *Ledger) MatchRefund(ctx context.Context, gatewayTransactionID, orderRef string) (*models.Transaction, error) {
	t, err := l.FindByOrderRef(ctx, orderRef)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return t, err
	}
	return l.FindByGatewayID(ctx, gatewayTransactionID)
}

func (l *Ledger) first(q *gorm.DB) (*models.Transaction, error) {
	var t models.Transaction
	if err := q.First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}
	return &t, nil
}

// ListForPayer returns the payer's transactions, newest first.
func (l *Ledger) ListForPayer(ctx context.Context, payerID string, offset, limit int) ([]*models.Transaction, int64, error) {
	if limit <= 0 {
		limit = 20
	}
	q := l.db.WithContext(ctx).Model(&models.Transaction{}).Where("payer_id = ?", payerID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	var rows []*models.Transaction
	if err := q.Order("created_at DESC").Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w", err)
	}
	return rows, total, nil
}

var scanFields = lo.Keyify([]string{
	"id", "payer_id", "order_ref", "gateway_transaction_id", "parent_id", "kind", "status",
	"currency", "amount", "refunded_amount", "pending_refund_amount", "created_at", "updated_at", "next_billing_at",
})

type ScanRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortBy    string                `json:"sort_by"`
	SortOrder string                `json:"sort_order"`
}

type ScanResponse struct {
	Items []*models.Transaction `json:"items"`
	Total int64                 `json:"total"`
}

// Scan is the admin listing with column filters restricted to scanFields.
func (l *Ledger) Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("nil request")
	}
	if req.Size <= 0 {
		req.Size = 10
	}
	if req.From < 0 {
		req.From = 0
	}
	for _, f := range req.Filters {
		if err := f.Validate(scanFields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidFilter, err)
		}
	}
	if req.SortBy != "" {
		if _, ok := scanFields[req.SortBy]; !ok {
			return nil, fmt.Errorf("%w: cannot sort by %q", ErrInvalidFilter, req.SortBy)
		}
	}

	tx := l.db.WithContext(ctx).Model(&models.Transaction{})
	if len(req.Filters) > 0 {
		tx = tx.Where(clause.Where{Exprs: []clause.Expression{types.FiltersAnd(req.Filters)}})
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}

	q := tx.Limit(req.Size).Offset(req.From)
	sortBy := lo.CoalesceOrEmpty(req.SortBy, "created_at")
	q = q.Order(clause.OrderBy{Columns: []clause.OrderByColumn{{Column: clause.Column{Name: sortBy}, Desc: req.SortOrder != "asc"}}})

	var rows []*models.Transaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return &ScanResponse{Items: rows, Total: total}, nil
}
