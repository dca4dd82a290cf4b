package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/paygate/pkg/types"
)

// Transaction is one payment attempt: a charge, an authorization, a refund,
// or a recurring subscription agreement. Status changes go through the
// ledger only.
type Transaction struct {
	ID      string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	PayerID string `gorm:"column:payer_id;type:varchar(64);not null;index:idx_payer_id_created_at,priority:1" json:"payer_id"`
	// OrderRef is the external order reference sent to the gateway.
	OrderRef             string  `gorm:"column:order_ref;type:varchar(128);not null;uniqueIndex" json:"order_ref"`
	GatewayTransactionID *string `gorm:"column:gateway_transaction_id;type:varchar(128);index" json:"gateway_transaction_id"`
	// ParentID links a refund to the refunded payment and a recurring charge
	// to its subscription.
	ParentID *string                 `gorm:"column:parent_id;type:uuid;index" json:"parent_id"`
	Kind     types.TransactionKind   `gorm:"column:kind;type:varchar(32);not null;index:idx_kind_status_next_billing,priority:1" json:"kind"`
	Status   types.TransactionStatus `gorm:"column:status;type:varchar(32);not null;index:idx_kind_status_next_billing,priority:2" json:"status"`

	Amount           decimal.Decimal `gorm:"column:amount;type:numeric(14,2);not null" json:"amount"`
	AuthorizedAmount decimal.Decimal `gorm:"column:authorized_amount;type:numeric(14,2);not null;default:0" json:"authorized_amount"`
	RefundedAmount   decimal.Decimal `gorm:"column:refunded_amount;type:numeric(14,2);not null;default:0" json:"refunded_amount"`
	Currency         string          `gorm:"column:currency;type:varchar(8);not null" json:"currency"`
	Installments     int             `gorm:"column:installments;not null;default:1" json:"installments"`
	MerchantNumber   string          `gorm:"column:merchant_number;type:varchar(64)" json:"-"`
	// PendingRefundAmount is held by refunds whose gateway call has not
	// settled yet.
	PendingRefundAmount decimal.Decimal `gorm:"column:pending_refund_amount;type:numeric(14,2);not null;default:0" json:"pending_refund_amount"`

	TokenID           *string           `gorm:"column:token_id;type:uuid" json:"token_id"`
	DocumentID        *string           `gorm:"column:document_id;type:varchar(128)" json:"document_id"`
	AuthorizationCode *string           `gorm:"column:authorization_code;type:varchar(64)" json:"authorization_code"`
	ErrorMessage      *string           `gorm:"column:error_message;type:text" json:"error_message"`
	Description       string            `gorm:"column:description;type:varchar(255)" json:"description"`
	Metadata          datatypes.JSONMap `gorm:"column:metadata;type:jsonb;default:'{}'" json:"metadata"`
	// Version is bumped on every ledger write and used as the compare-and-set
	// guard.
	Version int `gorm:"column:version;not null;default:0" json:"-"`

	// Subscription scheduling; zero for other kinds.
	Frequency           types.BillingFrequency `gorm:"column:frequency;type:varchar(16)" json:"frequency,omitempty"`
	BillingDay          int                    `gorm:"column:billing_day;not null;default:0" json:"billing_day,omitempty"`
	NextBillingAt       *time.Time             `gorm:"column:next_billing_at;index:idx_kind_status_next_billing,priority:3" json:"next_billing_at,omitempty"`
	LastChargedAt       *time.Time             `gorm:"column:last_charged_at" json:"last_charged_at,omitempty"`
	ConsecutiveFailures int                    `gorm:"column:consecutive_failures;not null;default:0" json:"consecutive_failures"`
	EndsAt              *time.Time             `gorm:"column:ends_at" json:"ends_at,omitempty"`
	// BillingLeaseUntil marks a charge in progress; other schedulers skip
	// the subscription until it passes.
	BillingLeaseUntil *time.Time `gorm:"column:billing_lease_until" json:"-"`

	AuthorizedAt *time.Time     `gorm:"column:authorized_at" json:"authorized_at"`
	CapturedAt   *time.Time     `gorm:"column:captured_at" json:"captured_at"`
	FailedAt     *time.Time     `gorm:"column:failed_at" json:"failed_at"`
	CancelledAt  *time.Time     `gorm:"column:cancelled_at" json:"cancelled_at"`
	RefundedAt   *time.Time     `gorm:"column:refunded_at" json:"refunded_at"`
	ProcessedAt  *time.Time     `gorm:"column:processed_at" json:"processed_at"`
	CreatedAt    time.Time      `gorm:"index:idx_payer_id_created_at,priority:2,sort:desc" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Transaction) TableName() string {
	return "transaction"
}

// RemainingRefundable is the amount still available for refunds, net of
// refunds already applied and those in flight.
func (t *Transaction) RemainingRefundable() decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	return t.Amount.Sub(t.RefundedAmount).Sub(t.PendingRefundAmount)
}

func (t *Transaction) IsSubscription() bool {
	return t != nil && t.Kind == types.TransactionKindSubscription
}

// Snapshot returns a shallow copy with a copied metadata map, used for
// audit before/after rows.
func (t *Transaction) Snapshot() *Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Metadata != nil {
		cp.Metadata = make(datatypes.JSONMap, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
