package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type WheelSpin struct {
	ID        uint64          `gorm:"primaryKey" json:"id"`
	UserID    uint64          `gorm:"not null;index" json:"user_id"`
	Prize     string          `gorm:"size:64;not null" json:"prize"`
	Amount    decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"amount"`
	Fee       decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"fee"`
	CreatedAt time.Time       `json:"created_at"`
}

func (WheelSpin) TableName() string {
	return "wheel_spins"
}
