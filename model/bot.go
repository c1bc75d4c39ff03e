package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BotProduct is a purchasable "investment" bot: the price is locked up as
// principal and pays DailyRate per day over DurationDays.
type BotProduct struct {
	ID           uint64          `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"size:64;not null" json:"name"`
	Price        decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"price"`
	DailyRate    decimal.Decimal `gorm:"type:decimal(12,8);not null" json:"daily_rate"`
	DurationDays int             `gorm:"not null" json:"duration_days"`
	// No column default: gorm drops zero-value fields that carry one, so
	// an inactive product could never be inserted.
	Active    bool      `gorm:"not null" json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (BotProduct) TableName() string {
	return "bot_products"
}

type BotPurchaseStatus string

const (
	BotPurchaseActive    BotPurchaseStatus = "active"
	BotPurchaseCompleted BotPurchaseStatus = "completed"
)

type BotPurchase struct {
	ID           uint64            `gorm:"primaryKey" json:"id"`
	UserID       uint64            `gorm:"not null;index" json:"user_id"`
	ProductID    uint64            `gorm:"not null;index" json:"product_id"`
	Principal    decimal.Decimal   `gorm:"type:decimal(32,8);not null" json:"principal"`
	DailyRate    decimal.Decimal   `gorm:"type:decimal(12,8);not null" json:"daily_rate"`
	DurationDays int               `gorm:"not null" json:"duration_days"`
	Status       BotPurchaseStatus `gorm:"size:16;not null;default:active" json:"status"`
	PurchasedAt  time.Time         `json:"purchased_at"`
	CompletedAt  *time.Time        `json:"completed_at,omitempty"`
}

func (BotPurchase) TableName() string {
	return "bot_purchases"
}
