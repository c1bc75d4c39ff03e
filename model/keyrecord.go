package model

import (
	"time"

	"gorm.io/gorm"
)

type Currency string

const (
	CurrencyBTC  Currency = "BTC"
	CurrencyETH  Currency = "ETH"
	CurrencyUSDT Currency = "USDT"
	CurrencyUBT  Currency = "UBT"
)

// KeyRecord is one unit of deposit-address inventory. Records are created
// by bulk import, claimed by the assignment engine and repaired by the
// reconciliation tool; they are never deleted in normal operation.
type KeyRecord struct {
	ID            uint64   `gorm:"primaryKey" json:"id"`
	Currency      Currency `gorm:"size:8;not null;uniqueIndex:uk_currency_address;index:idx_pool_free,priority:1" json:"currency"`
	PublicAddress string   `gorm:"size:128;not null;uniqueIndex:uk_currency_address" json:"public_address"`
	// PrivateKeySealed is AES-256-GCM ciphertext, empty for address-only
	// imports. Keys are informational: nothing in this system signs.
	PrivateKeySealed string     `gorm:"type:text" json:"-"`
	IsAssigned       bool       `gorm:"not null;default:false;index:idx_pool_free,priority:2" json:"is_assigned"`
	AssignedTo       *uint64    `gorm:"index" json:"assigned_to,omitempty"`
	AssignedAt       *time.Time `json:"assigned_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (KeyRecord) TableName() string {
	return "key_records"
}

// PoolStat is the per-currency inventory summary.
type PoolStat struct {
	Currency  Currency `json:"currency"`
	Total     int64    `json:"total"`
	Assigned  int64    `json:"assigned"`
	Available int64    `json:"available"`
}

// AutoMigrate creates all tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&KeyRecord{},
		&UserAddressRecord{},
		&UserAddressEntry{},
		&LedgerEntry{},
		&BotProduct{},
		&BotPurchase{},
		&WheelSpin{},
	)
}
