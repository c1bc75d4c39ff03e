package model

import "time"

// UserAddressRecord is the per-user view of currently assigned deposit
// addresses, one entry per currency. For every entry the pool must hold
// exactly one KeyRecord assigned to the same user, and the USDT entry
// always equals the ETH entry (USDT shares ETH's address space here).
type UserAddressRecord struct {
	ID            uint64             `gorm:"primaryKey" json:"id"`
	UserID        uint64             `gorm:"not null;uniqueIndex" json:"user_id"`
	TotalAssigned int                `gorm:"not null;default:0" json:"total_assigned"`
	Entries       []UserAddressEntry `gorm:"foreignKey:RecordID" json:"entries"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func (UserAddressRecord) TableName() string {
	return "user_address_records"
}

type UserAddressEntry struct {
	ID         uint64    `gorm:"primaryKey" json:"id"`
	RecordID   uint64    `gorm:"not null;uniqueIndex:uk_record_currency" json:"-"`
	Currency   Currency  `gorm:"size:8;not null;uniqueIndex:uk_record_currency" json:"currency"`
	Address    string    `gorm:"size:128;not null;index" json:"address"`
	AssignedAt time.Time `json:"assigned_at"`
	IsActive   bool      `gorm:"not null;default:true" json:"is_active"`
}

func (UserAddressEntry) TableName() string {
	return "user_address_entries"
}

// Address returns the active address for a currency, or "".
func (r *UserAddressRecord) Address(currency Currency) string {
	for _, e := range r.Entries {
		if e.Currency == currency && e.IsActive {
			return e.Address
		}
	}
	return ""
}

// Consistent reports whether the record is complete (BTC, ETH and USDT all
// present) and the USDT entry matches the ETH entry.
func (r *UserAddressRecord) Consistent() bool {
	btc := r.Address(CurrencyBTC)
	eth := r.Address(CurrencyETH)
	usdt := r.Address(CurrencyUSDT)
	return btc != "" && eth != "" && usdt != "" && usdt == eth
}
