package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const PaymentStatusCompleted = "completed"

type Payment struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	OrderID    string `gorm:"size:255;not null;uniqueIndex" json:"order_id"`
	PaymentKey string `gorm:"size:255;not null" json:"payment_key"`
	UserID     string `gorm:"size:128;not null;index" json:"user_id"`
	Amount     int64  `gorm:"not null" json:"amount"`
	Method     string `gorm:"size:50" json:"method"`
	Status     string `gorm:"size:20;not null" json:"status"`

	Coins       int64   `gorm:"not null" json:"coins"`
	BonusCoins  int64   `gorm:"not null;default:0" json:"bonus_coins"`
	TotalCoins  int64   `gorm:"not null" json:"total_coins"`
	PackageID   *string `gorm:"size:64" json:"package_id,omitempty"`
	PackageName *string `gorm:"size:255" json:"package_name,omitempty"`

	GatewayResponse datatypes.JSON `json:"-"`

	ApprovedAt time.Time `gorm:"not null" json:"approved_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
