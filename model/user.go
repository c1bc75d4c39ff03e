package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletAddresses is the legacy denormalized mirror of a user's assigned
// deposit addresses, kept in sync with UserAddressRecord for older code
// paths. Ethereum and UBT always carry the same value as the USDT entry.
type WalletAddresses struct {
	Bitcoin  string `gorm:"column:wallet_bitcoin;size:128" json:"bitcoin"`
	Ethereum string `gorm:"column:wallet_ethereum;size:128" json:"ethereum"`
	UBT      string `gorm:"column:wallet_ubt;size:128" json:"ubt"`
}

type User struct {
	ID           uint64          `gorm:"primaryKey" json:"id"`
	Email        string          `gorm:"size:128;uniqueIndex" json:"email"`
	Phone        string          `gorm:"size:32;index" json:"phone"`
	PasswordHash string          `gorm:"size:128" json:"-"`
	InviteCode   string          `gorm:"size:16;uniqueIndex" json:"invite_code"`
	ReferrerID   *uint64         `gorm:"index" json:"referrer_id,omitempty"`
	IsAdmin      bool            `gorm:"not null;default:false" json:"-"`
	Balance      decimal.Decimal `gorm:"type:decimal(32,8);not null;default:0" json:"balance"`

	WalletAddresses WalletAddresses `gorm:"embedded" json:"wallet_addresses"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}
