package repository

import (
	"context"
	"errors"

	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/model"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type UserRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) *UserRepo {
	return &UserRepo{db: db}
}

func (r *UserRepo) WithTx(tx *gorm.DB) *UserRepo {
	return &UserRepo{db: tx}
}

func (r *UserRepo) Create(ctx context.Context, user *model.User) error {
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) GetByInviteCode(ctx context.Context, code string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("invite_code = ?", code).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInviteCodeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) UpdateWalletAddresses(ctx context.Context, userID uint64, addrs model.WalletAddresses) error {
	return r.db.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Updates(map[string]interface{}{
			"wallet_bitcoin":  addrs.Bitcoin,
			"wallet_ethereum": addrs.Ethereum,
			"wallet_ubt":      addrs.UBT,
		}).Error
}

// ListIDs returns all user IDs in ascending order, for batch tools.
func (r *UserRepo) ListIDs(ctx context.Context) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// UserIDsWithLegacyAddress returns user IDs whose legacy wallet mirror
// references the address in any of its fields.
func (r *UserRepo) UserIDsWithLegacyAddress(ctx context.Context, address string) ([]uint64, error) {
	var ids []uint64
	err := r.db.WithContext(ctx).Model(&model.User{}).
		Where("wallet_bitcoin = ? OR wallet_ethereum = ? OR wallet_ubt = ?", address, address, address).
		Order("id ASC").
		Pluck("id", &ids).Error
	return ids, err
}

// ListWithLegacyAddresses returns users with at least one legacy wallet
// field populated, for the consistency scan.
func (r *UserRepo) ListWithLegacyAddresses(ctx context.Context) ([]*model.User, error) {
	var users []*model.User
	err := r.db.WithContext(ctx).
		Where("wallet_bitcoin <> '' OR wallet_ethereum <> '' OR wallet_ubt <> ''").
		Order("id ASC").
		Find(&users).Error
	return users, err
}

// AdjustBalance applies a signed delta to the user's running balance in a
// single conditional update. For debits the guard refuses to take the
// balance negative and apperr.ErrInsufficientBalance is returned.
func (r *UserRepo) AdjustBalance(ctx context.Context, userID uint64, delta decimal.Decimal) (decimal.Decimal, error) {
	q := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID)
	if delta.IsNegative() {
		q = q.Where("balance >= ?", delta.Neg())
	}
	res := q.Update("balance", gorm.Expr("balance + ?", delta))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		// Distinguish a missing user from a failed guard.
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
			return decimal.Zero, err
		}
		if count == 0 {
			return decimal.Zero, apperr.ErrUserNotFound
		}
		return decimal.Zero, apperr.ErrInsufficientBalance
	}

	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}
