package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/fatflowers/paygate/pkg/types"
)

// TransactionLog is an append-only audit row written for every applied
// transaction change. Used for troubleshooting and dispute handling.
type TransactionLog struct {
	ID            string                        `gorm:"column:id;primary_key;type:uuid;index:idx_transaction_id_id,priority:2,sort:desc"`
	TransactionID string                        `gorm:"column:transaction_id;type:uuid;not null;index:idx_transaction_id_id,priority:1"`
	PayerID       string                        `gorm:"column:payer_id;type:varchar(64);not null"`
	Reason        types.TransactionChangeReason `gorm:"column:reason;type:varchar(64);not null"`
	FromStatus    types.TransactionStatus       `gorm:"column:from_status;type:varchar(32)"`
	ToStatus      types.TransactionStatus       `gorm:"column:to_status;type:varchar(32);not null"`
	// Before and After are full snapshots of the row around the change.
	Before datatypes.JSONType[*Transaction] `gorm:"column:before;type:jsonb;default:'null'"`
	After  datatypes.JSONType[*Transaction] `gorm:"column:after;type:jsonb;default:'null'"`
	// Extra carries context such as the webhook event id or refund reference.
	Extra     datatypes.JSONMap `gorm:"column:extra;type:jsonb;default:'{}'"`
	CreatedAt time.Time         `json:"created_at"`
}

func (TransactionLog) TableName() string {
	return "transaction_log"
}
