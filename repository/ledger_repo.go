package repository

import (
	"context"
	"errors"

	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/model"
	"gorm.io/gorm"
)

type LedgerRepo struct {
	db *gorm.DB
}

func NewLedgerRepo(db *gorm.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

func (r *LedgerRepo) WithTx(tx *gorm.DB) *LedgerRepo {
	return &LedgerRepo{db: tx}
}

func (r *LedgerRepo) Append(ctx context.Context, entry *model.LedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *LedgerRepo) ListByUser(ctx context.Context, userID uint64, page, size int) ([]*model.LedgerEntry, int64, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.LedgerEntry{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []*model.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error
	return list, total, err
}

type BotRepo struct {
	db *gorm.DB
}

func NewBotRepo(db *gorm.DB) *BotRepo {
	return &BotRepo{db: db}
}

func (r *BotRepo) WithTx(tx *gorm.DB) *BotRepo {
	return &BotRepo{db: tx}
}

func (r *BotRepo) ListProducts(ctx context.Context) ([]*model.BotProduct, error) {
	var products []*model.BotProduct
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("price ASC").Find(&products).Error
	return products, err
}

func (r *BotRepo) GetProduct(ctx context.Context, id uint64) (*model.BotProduct, error) {
	var product model.BotProduct
	err := r.db.WithContext(ctx).First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *BotRepo) CountProducts(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.BotProduct{}).Count(&count).Error
	return count, err
}

func (r *BotRepo) CreateProduct(ctx context.Context, product *model.BotProduct) error {
	return r.db.WithContext(ctx).Create(product).Error
}

func (r *BotRepo) CreatePurchase(ctx context.Context, purchase *model.BotPurchase) error {
	return r.db.WithContext(ctx).Create(purchase).Error
}

func (r *BotRepo) GetPurchase(ctx context.Context, id uint64) (*model.BotPurchase, error) {
	var purchase model.BotPurchase
	err := r.db.WithContext(ctx).First(&purchase, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrPurchaseNotFound
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

func (r *BotRepo) SavePurchase(ctx context.Context, purchase *model.BotPurchase) error {
	return r.db.WithContext(ctx).Save(purchase).Error
}

func (r *BotRepo) ListPurchases(ctx context.Context, userID uint64) ([]*model.BotPurchase, error) {
	var purchases []*model.BotPurchase
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Find(&purchases).Error
	return purchases, err
}

type WheelRepo struct {
	db *gorm.DB
}

func NewWheelRepo(db *gorm.DB) *WheelRepo {
	return &WheelRepo{db: db}
}

func (r *WheelRepo) WithTx(tx *gorm.DB) *WheelRepo {
	return &WheelRepo{db: tx}
}

func (r *WheelRepo) Create(ctx context.Context, spin *model.WheelSpin) error {
	return r.db.WithContext(ctx).Create(spin).Error
}

func (r *WheelRepo) ListByUser(ctx context.Context, userID uint64, limit int) ([]*model.WheelSpin, error) {
	if limit < 1 || limit > 100 {
		limit = 50
	}
	var spins []*model.WheelSpin
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("id DESC").Limit(limit).Find(&spins).Error
	return spins, err
}
