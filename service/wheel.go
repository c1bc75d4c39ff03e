package service

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hsit/hsit-server/config"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type WheelPrize struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
	Weight uint32          `json:"weight"`
}

// defaultPrizes is the fixed wheel layout; weights sum to 1000.
var defaultPrizes = []WheelPrize{
	{Label: "better luck next time", Amount: decimal.Zero, Weight: 400},
	{Label: "0.5 UBT", Amount: decimal.NewFromFloat(0.5), Weight: 300},
	{Label: "1 UBT", Amount: decimal.NewFromInt(1), Weight: 180},
	{Label: "5 UBT", Amount: decimal.NewFromInt(5), Weight: 90},
	{Label: "20 UBT", Amount: decimal.NewFromInt(20), Weight: 25},
	{Label: "100 UBT", Amount: decimal.NewFromInt(100), Weight: 5},
}

type WheelService struct {
	db     *gorm.DB
	wheel  *repository.WheelRepo
	ledger *LedgerService
	fee    decimal.Decimal
	prizes []WheelPrize
	rand   io.Reader // crypto/rand in production, deterministic in tests
}

func NewWheelService(db *gorm.DB, wheel *repository.WheelRepo, ledger *LedgerService, cfg config.WheelConfig) (*WheelService, error) {
	fee, err := decimal.NewFromString(cfg.SpinFee)
	if err != nil {
		return nil, fmt.Errorf("invalid wheel spin fee %q: %w", cfg.SpinFee, err)
	}
	return &WheelService{
		db:     db,
		wheel:  wheel,
		ledger: ledger,
		fee:    fee,
		prizes: defaultPrizes,
		rand:   rand.Reader,
	}, nil
}

func (s *WheelService) Prizes() []WheelPrize {
	return s.prizes
}

// Spin charges the fee, draws a prize and credits any winnings, all in
// one transaction. An insufficient balance rolls the whole spin back.
func (s *WheelService) Spin(ctx context.Context, userID uint64) (*model.WheelSpin, error) {
	prize, err := s.draw()
	if err != nil {
		return nil, err
	}

	var spin *model.WheelSpin
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.fee.IsPositive() {
			if _, err := s.ledger.creditTx(ctx, tx, userID, model.LedgerWheelFee, s.fee.Neg(), "wheel spin fee"); err != nil {
				return err
			}
		}
		if prize.Amount.IsPositive() {
			note := fmt.Sprintf("wheel prize: %s", prize.Label)
			if _, err := s.ledger.creditTx(ctx, tx, userID, model.LedgerWheelPrize, prize.Amount, note); err != nil {
				return err
			}
		}
		spin = &model.WheelSpin{
			UserID: userID,
			Prize:  prize.Label,
			Amount: prize.Amount,
			Fee:    s.fee,
		}
		return s.wheel.WithTx(tx).Create(ctx, spin)
	})
	if err != nil {
		return nil, err
	}
	return spin, nil
}

func (s *WheelService) History(ctx context.Context, userID uint64, limit int) ([]*model.WheelSpin, error) {
	return s.wheel.ListByUser(ctx, userID, limit)
}

// draw picks a prize weighted by the fixed table.
func (s *WheelService) draw() (WheelPrize, error) {
	var total uint64
	for _, p := range s.prizes {
		total += uint64(p.Weight)
	}
	var buf [8]byte
	if _, err := io.ReadFull(s.rand, buf[:]); err != nil {
		return WheelPrize{}, err
	}
	n := binary.BigEndian.Uint64(buf[:]) % total
	for _, p := range s.prizes {
		if n < uint64(p.Weight) {
			return p, nil
		}
		n -= uint64(p.Weight)
	}
	return s.prizes[len(s.prizes)-1], nil
}
