package service

import (
	"context"
	"fmt"
	"time"

	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type BotService struct {
	db     *gorm.DB
	bots   *repository.BotRepo
	ledger *LedgerService
}

func NewBotService(db *gorm.DB, bots *repository.BotRepo, ledger *LedgerService) *BotService {
	return &BotService{db: db, bots: bots, ledger: ledger}
}

func (s *BotService) ListProducts(ctx context.Context) ([]*model.BotProduct, error) {
	return s.bots.ListProducts(ctx)
}

func (s *BotService) ListPurchases(ctx context.Context, userID uint64) ([]*model.BotPurchase, error) {
	return s.bots.ListPurchases(ctx, userID)
}

// Purchase debits the product price and opens an active purchase, both in
// one transaction.
func (s *BotService) Purchase(ctx context.Context, userID, productID uint64) (*model.BotPurchase, error) {
	var purchase *model.BotPurchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bots := s.bots.WithTx(tx)

		product, err := bots.GetProduct(ctx, productID)
		if err != nil {
			return err
		}
		if !product.Active {
			return apperr.ErrProductNotFound
		}

		note := fmt.Sprintf("purchase of bot %q", product.Name)
		if _, err := s.ledger.creditTx(ctx, tx, userID, model.LedgerBotPurchase, product.Price.Neg(), note); err != nil {
			return err
		}

		purchase = &model.BotPurchase{
			UserID:       userID,
			ProductID:    product.ID,
			Principal:    product.Price,
			DailyRate:    product.DailyRate,
			DurationDays: product.DurationDays,
			Status:       model.BotPurchaseActive,
			PurchasedAt:  time.Now(),
		}
		return bots.CreatePurchase(ctx, purchase)
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// Complete pays out principal plus the full-term yield and closes the
// purchase. Idempotent: completing twice is a no-op on the second call.
func (s *BotService) Complete(ctx context.Context, purchaseID uint64) (*model.BotPurchase, error) {
	var purchase *model.BotPurchase
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		bots := s.bots.WithTx(tx)

		p, err := bots.GetPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		if p.Status == model.BotPurchaseCompleted {
			purchase = p
			return nil
		}

		yield := p.Principal.Mul(p.DailyRate).Mul(decimal.NewFromInt(int64(p.DurationDays)))
		payout := p.Principal.Add(yield)
		note := fmt.Sprintf("payout for bot purchase %d", p.ID)
		if _, err := s.ledger.creditTx(ctx, tx, p.UserID, model.LedgerBotPayout, payout, note); err != nil {
			return err
		}

		now := time.Now()
		p.Status = model.BotPurchaseCompleted
		p.CompletedAt = &now
		if err := bots.SavePurchase(ctx, p); err != nil {
			return err
		}
		purchase = p
		zap.L().Info("bot purchase completed",
			zap.Uint64("purchaseID", p.ID),
			zap.Uint64("userID", p.UserID),
			zap.String("payout", payout.String()))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return purchase, nil
}

// SeedDefaults inserts the starter catalog on an empty table.
func (s *BotService) SeedDefaults(ctx context.Context) error {
	count, err := s.bots.CountProducts(ctx)
	if err != nil || count > 0 {
		return err
	}
	defaults := []*model.BotProduct{
		{Name: "Starter Bot", Price: decimal.NewFromInt(100), DailyRate: decimal.NewFromFloat(0.01), DurationDays: 30, Active: true},
		{Name: "Growth Bot", Price: decimal.NewFromInt(500), DailyRate: decimal.NewFromFloat(0.012), DurationDays: 60, Active: true},
		{Name: "Pro Bot", Price: decimal.NewFromInt(2000), DailyRate: decimal.NewFromFloat(0.015), DurationDays: 90, Active: true},
	}
	for _, product := range defaults {
		if err := s.bots.CreateProduct(ctx, product); err != nil {
			return err
		}
	}
	return nil
}
