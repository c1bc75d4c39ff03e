package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type LedgerEntryType string

const (
	LedgerDeposit       LedgerEntryType = "deposit"
	LedgerBotPurchase   LedgerEntryType = "bot_purchase"
	LedgerBotPayout     LedgerEntryType = "bot_payout"
	LedgerWheelFee      LedgerEntryType = "wheel_fee"
	LedgerWheelPrize    LedgerEntryType = "wheel_prize"
	LedgerReferralBonus LedgerEntryType = "referral_bonus"
)

// LedgerEntry is one UBT balance movement. Amount is signed: credits are
// positive, debits negative. BalanceAfter snapshots the user's running
// balance as written in the same transaction.
type LedgerEntry struct {
	ID           uint64          `gorm:"primaryKey" json:"id"`
	UserID       uint64          `gorm:"not null;index" json:"user_id"`
	Type         LedgerEntryType `gorm:"size:32;not null" json:"type"`
	Amount       decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"amount"`
	BalanceAfter decimal.Decimal `gorm:"type:decimal(32,8);not null" json:"balance_after"`
	Reference    string          `gorm:"size:64;uniqueIndex" json:"reference"`
	Note         string          `gorm:"size:256" json:"note,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
