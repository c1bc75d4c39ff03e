package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hsit/hsit-server/model"
	"gorm.io/gorm"
)

type UserAddressRepo struct {
	db *gorm.DB
}

func NewUserAddressRepo(db *gorm.DB) *UserAddressRepo {
	return &UserAddressRepo{db: db}
}

func (r *UserAddressRepo) WithTx(tx *gorm.DB) *UserAddressRepo {
	return &UserAddressRepo{db: tx}
}

// GetByUserID returns the record with its entries, or nil if none exists.
func (r *UserAddressRepo) GetByUserID(ctx context.Context, userID uint64) (*model.UserAddressRecord, error) {
	var rec model.UserAddressRecord
	err := r.db.WithContext(ctx).Preload("Entries").
		Where("user_id = ?", userID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// SetEntries writes the given currency->address mapping, creating the
// record if needed and replacing any existing entry per currency.
func (r *UserAddressRepo) SetEntries(ctx context.Context, userID uint64, addresses map[model.Currency]string) (*model.UserAddressRecord, error) {
	rec, err := r.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		rec = &model.UserAddressRecord{UserID: userID}
		if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
			return nil, err
		}
	}

	now := time.Now()
	for currency, address := range addresses {
		var existing model.UserAddressEntry
		err := r.db.WithContext(ctx).
			Where("record_id = ? AND currency = ?", rec.ID, currency).
			First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			entry := model.UserAddressEntry{
				RecordID:   rec.ID,
				Currency:   currency,
				Address:    address,
				AssignedAt: now,
				IsActive:   true,
			}
			if err := r.db.WithContext(ctx).Create(&entry).Error; err != nil {
				return nil, err
			}
		case err != nil:
			return nil, err
		default:
			if existing.Address != address || !existing.IsActive {
				existing.Address = address
				existing.AssignedAt = now
				existing.IsActive = true
				if err := r.db.WithContext(ctx).Save(&existing).Error; err != nil {
					return nil, err
				}
			}
		}
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&model.UserAddressEntry{}).
		Where("record_id = ? AND is_active = ?", rec.ID, true).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(rec).
		Update("total_assigned", count).Error; err != nil {
		return nil, err
	}
	return r.GetByUserID(ctx, userID)
}

// UserIDsHoldingAddress returns the distinct user IDs whose record carries
// the given address for a currency.
func (r *UserAddressRepo) UserIDsHoldingAddress(ctx context.Context, currency model.Currency, address string) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.UserAddressEntry{}).
		Distinct("user_address_records.user_id").
		Joins("JOIN user_address_records ON user_address_records.id = user_address_entries.record_id").
		Where("user_address_entries.currency = ? AND user_address_entries.address = ? AND user_address_entries.is_active = ?",
			currency, address, true).
		Pluck("user_address_records.user_id", &ids).Error
	return ids, err
}

// HoldsAddress reports whether the user's record carries the address for
// any currency.
func (r *UserAddressRepo) HoldsAddress(ctx context.Context, userID uint64, address string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.UserAddressEntry{}).
		Joins("JOIN user_address_records ON user_address_records.id = user_address_entries.record_id").
		Where("user_address_records.user_id = ? AND user_address_entries.address = ? AND user_address_entries.is_active = ?",
			userID, address, true).
		Count(&count).Error
	return count > 0, err
}
