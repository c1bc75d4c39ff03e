package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LedgerService owns UBT balance movements. Every movement appends an
// entry and updates the user's running balance in one transaction; debits
// that would take the balance negative fail with ErrInsufficientBalance.
type LedgerService struct {
	db     *gorm.DB
	users  *repository.UserRepo
	ledger *repository.LedgerRepo
}

func NewLedgerService(db *gorm.DB, users *repository.UserRepo, ledger *repository.LedgerRepo) *LedgerService {
	return &LedgerService{db: db, users: users, ledger: ledger}
}

func (s *LedgerService) Credit(ctx context.Context, userID uint64, typ model.LedgerEntryType, amount decimal.Decimal, note string) (*model.LedgerEntry, error) {
	var entry *model.LedgerEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		e, err := s.creditTx(ctx, tx, userID, typ, amount, note)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// creditTx applies a signed amount inside an open transaction. Used
// directly by services that bundle a ledger movement with other writes.
func (s *LedgerService) creditTx(ctx context.Context, tx *gorm.DB, userID uint64, typ model.LedgerEntryType, amount decimal.Decimal, note string) (*model.LedgerEntry, error) {
	if amount.IsZero() {
		return nil, fmt.Errorf("ledger %s for user %d: zero amount", typ, userID)
	}
	users := s.users.WithTx(tx)
	ledger := s.ledger.WithTx(tx)

	balance, err := users.AdjustBalance(ctx, userID, amount)
	if err != nil {
		return nil, fmt.Errorf("ledger %s for user %d: %w", typ, userID, err)
	}

	entry := &model.LedgerEntry{
		UserID:       userID,
		Type:         typ,
		Amount:       amount,
		BalanceAfter: balance,
		Reference:    uuid.NewString(),
		Note:         note,
	}
	if err := ledger.Append(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *LedgerService) Debit(ctx context.Context, userID uint64, typ model.LedgerEntryType, amount decimal.Decimal, note string) (*model.LedgerEntry, error) {
	return s.Credit(ctx, userID, typ, amount.Neg(), note)
}

func (s *LedgerService) Balance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return decimal.Zero, err
	}
	return user.Balance, nil
}

func (s *LedgerService) History(ctx context.Context, userID uint64, page, size int) ([]*model.LedgerEntry, int64, error) {
	return s.ledger.ListByUser(ctx, userID, page, size)
}
