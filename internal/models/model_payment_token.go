package models

import (
	"time"

	"gorm.io/gorm"
)

// PaymentToken is a reusable card token saved for a payer. The gateway
// token and citizen id never leave the service. A partial unique index
// keeps at most one live default per payer.
type PaymentToken struct {
	ID           string `gorm:"column:id;type:uuid;primary_key" json:"id"`
	PayerID      string `gorm:"column:payer_id;type:varchar(64);not null;index:idx_payer_id_default,priority:1;uniqueIndex:idx_payer_id_one_default,where:is_default = true AND deleted_at IS NULL" json:"payer_id"`
	GatewayToken string `gorm:"column:gateway_token;type:varchar(255);not null" json:"-"`
	Brand        string `gorm:"column:brand;type:varchar(32)" json:"brand"`
	LastFour     string `gorm:"column:last_four;type:varchar(4)" json:"last_four"`
	ExpiryMonth  int    `gorm:"column:expiry_month;not null" json:"expiry_month"`
	ExpiryYear   int    `gorm:"column:expiry_year;not null" json:"expiry_year"`
	CitizenID    string `gorm:"column:citizen_id;type:varchar(32)" json:"-"`
	IsDefault    bool   `gorm:"column:is_default;not null;default:false;index:idx_payer_id_default,priority:2" json:"is_default"`
	// ExpiresAt is the last instant of the expiry month (UTC).
	ExpiresAt time.Time      `gorm:"column:expires_at;not null" json:"expires_at"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (PaymentToken) TableName() string {
	return "payment_token"
}

func (t *PaymentToken) IsExpired(now time.Time) bool {
	return t != nil && !now.Before(t.ExpiresAt)
}
