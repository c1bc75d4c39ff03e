package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/model"
	"gorm.io/gorm"
)

// claimAttempts bounds the optimistic-claim retry loop. Each lost race
// means another request claimed the candidate row first.
const claimAttempts = 10

type KeyPoolRepo struct {
	db *gorm.DB
}

func NewKeyPoolRepo(db *gorm.DB) *KeyPoolRepo {
	return &KeyPoolRepo{db: db}
}

// WithTx returns a repo bound to an open transaction.
func (r *KeyPoolRepo) WithTx(tx *gorm.DB) *KeyPoolRepo {
	return &KeyPoolRepo{db: tx}
}

// Insert adds one record to the pool. Duplicate (currency, address) pairs
// surface as apperr.ErrImportDuplicate via the unique index.
func (r *KeyPoolRepo) Insert(ctx context.Context, rec *model.KeyRecord) error {
	err := r.db.WithContext(ctx).Create(rec).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.ErrImportDuplicate
	}
	return err
}

// ClaimOne atomically reserves the oldest free record for a currency.
// The candidate is selected first, then claimed with a conditional update
// guarded on is_assigned=false; zero rows affected means another request
// won the race and the next candidate is tried. An empty candidate set is
// apperr.ErrPoolExhausted.
func (r *KeyPoolRepo) ClaimOne(ctx context.Context, currency model.Currency, userID uint64) (*model.KeyRecord, error) {
	for attempt := 0; attempt < claimAttempts; attempt++ {
		var rec model.KeyRecord
		err := r.db.WithContext(ctx).
			Where("currency = ? AND is_assigned = ?", currency, false).
			Order("created_at ASC, id ASC").
			First(&rec).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("claim %s: %w", currency, apperr.ErrPoolExhausted)
		}
		if err != nil {
			return nil, err
		}

		now := time.Now()
		res := r.db.WithContext(ctx).Model(&model.KeyRecord{}).
			Where("id = ? AND is_assigned = ?", rec.ID, false).
			Updates(map[string]interface{}{
				"is_assigned": true,
				"assigned_to": userID,
				"assigned_at": now,
			})
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 1 {
			rec.IsAssigned = true
			rec.AssignedTo = &userID
			rec.AssignedAt = &now
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("claim %s: gave up after %d contended attempts", currency, claimAttempts)
}

// MarkAssigned force-marks an address as belonging to a user, inserting
// the record if the pool never knew it (defensive sync from legacy data).
// Idempotent.
func (r *KeyPoolRepo) MarkAssigned(ctx context.Context, currency model.Currency, address string, userID uint64) error {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.KeyRecord{}).
		Where("currency = ? AND public_address = ?", currency, address).
		Updates(map[string]interface{}{
			"is_assigned": true,
			"assigned_to": userID,
			"assigned_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&model.KeyRecord{
		Currency:      currency,
		PublicAddress: address,
		IsAssigned:    true,
		AssignedTo:    &userID,
		AssignedAt:    &now,
	}).Error
}

func (r *KeyPoolRepo) FindByAddress(ctx context.Context, currency model.Currency, address string) (*model.KeyRecord, error) {
	var rec model.KeyRecord
	err := r.db.WithContext(ctx).
		Where("currency = ? AND public_address = ?", currency, address).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindAssignedTo returns the assigned record holding an address for any
// currency, or nil.
func (r *KeyPoolRepo) FindAssignedTo(ctx context.Context, address string, userID uint64) (*model.KeyRecord, error) {
	var rec model.KeyRecord
	err := r.db.WithContext(ctx).
		Where("public_address = ? AND assigned_to = ?", address, userID).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListAssigned returns all assigned records for a currency, oldest first.
func (r *KeyPoolRepo) ListAssigned(ctx context.Context, currency model.Currency) ([]*model.KeyRecord, error) {
	var recs []*model.KeyRecord
	err := r.db.WithContext(ctx).
		Where("currency = ? AND is_assigned = ?", currency, true).
		Order("id ASC").
		Find(&recs).Error
	return recs, err
}

// Stats returns per-currency inventory counts.
func (r *KeyPoolRepo) Stats(ctx context.Context) ([]model.PoolStat, error) {
	var rows []struct {
		Currency model.Currency
		Total    int64
		Assigned int64
	}
	err := r.db.WithContext(ctx).Model(&model.KeyRecord{}).
		Select("currency, COUNT(*) AS total, SUM(CASE WHEN is_assigned THEN 1 ELSE 0 END) AS assigned").
		Group("currency").
		Order("currency").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	stats := make([]model.PoolStat, 0, len(rows))
	for _, row := range rows {
		stats = append(stats, model.PoolStat{
			Currency:  row.Currency,
			Total:     row.Total,
			Assigned:  row.Assigned,
			Available: row.Total - row.Assigned,
		})
	}
	return stats, nil
}
