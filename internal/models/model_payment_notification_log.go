package models

import (
	"time"

	"gorm.io/datatypes"
)

type PaymentNotificationLogStatus string

const (
	PaymentNotificationLogStatusReceived     PaymentNotificationLogStatus = "received"
	PaymentNotificationLogStatusHandled      PaymentNotificationLogStatus = "handled"
	PaymentNotificationLogStatusHandleFailed PaymentNotificationLogStatus = "handle_failed"
)

// PaymentNotificationLog records each webhook delivery and how it was
// reconciled.
type PaymentNotificationLog struct {
	ID                   string                       `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventType            string                       `gorm:"column:event_type;type:varchar(64);not null" json:"event_type"`
	EventID              string                       `gorm:"column:event_id;type:varchar(128);index" json:"event_id"`
	TraceID              string                       `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	TransactionID        *string                      `gorm:"column:transaction_id;type:uuid" json:"transaction_id"`
	OrderRef             string                       `gorm:"column:order_ref;type:varchar(128)" json:"order_ref"`
	GatewayTransactionID string                       `gorm:"column:gateway_transaction_id;type:varchar(128)" json:"gateway_transaction_id"`
	SignatureVerified    bool                         `gorm:"column:signature_verified;not null;default:false" json:"signature_verified"`
	Outcome              string                       `gorm:"column:outcome;type:varchar(32)" json:"outcome"`
	NotificationTime     time.Time                    `gorm:"column:notification_time" json:"notification_time"`
	Data                 datatypes.JSON               `gorm:"column:data;type:jsonb" json:"data"`
	Result               *datatypes.JSON              `gorm:"column:result;type:jsonb" json:"result"`
	Status               PaymentNotificationLogStatus `gorm:"column:status;type:varchar(64);not null" json:"status"`
	CreatedAt            time.Time                    `json:"created_at"`
	UpdatedAt            time.Time                    `json:"updated_at"`
}

func (PaymentNotificationLog) TableName() string { return "payment_notification_log" }
