package service

import (
	"context"
	"fmt"

	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AddressTriple is the full set of deposit addresses for one user. USDT
// always equals ETH: both settle on the same chain in this system, so a
// single ETH record backs them.
type AddressTriple struct {
	BTC  string `json:"BTC"`
	ETH  string `json:"ETH"`
	USDT string `json:"USDT"`
}

// AssignmentService is the single source of truth for "what addresses
// does user X have, assigning if necessary". Every caller — HTTP,
// reconciliation, deposit crediting — goes through it.
type AssignmentService struct {
	db      *gorm.DB
	users   *repository.UserRepo
	pool    *repository.KeyPoolRepo
	records *repository.UserAddressRepo
}

func NewAssignmentService(db *gorm.DB, users *repository.UserRepo, pool *repository.KeyPoolRepo, records *repository.UserAddressRepo) *AssignmentService {
	return &AssignmentService{db: db, users: users, pool: pool, records: records}
}

// GetOrAssignAddresses returns the user's address triple, assigning fresh
// pool records when needed. Idempotent: repeated calls return the same
// triple. The whole resolution runs in one transaction so a claimed pool
// record can never persist without its user-side records.
func (s *AssignmentService) GetOrAssignAddresses(ctx context.Context, userID uint64) (*AddressTriple, error) {
	var triple *AddressTriple
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.resolve(ctx, tx, userID)
		if err != nil {
			return err
		}
		triple = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return triple, nil
}

func (s *AssignmentService) resolve(ctx context.Context, tx *gorm.DB, userID uint64) (*AddressTriple, error) {
	users := s.users.WithTx(tx)
	pool := s.pool.WithTx(tx)
	records := s.records.WithTx(tx)

	user, err := users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec, err := records.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Complete, consistent record: re-assert pool ownership (heals pool
	// drift without failing the request) and sync the legacy mirror.
	if rec != nil && rec.Consistent() {
		triple := &AddressTriple{
			BTC:  rec.Address(model.CurrencyBTC),
			ETH:  rec.Address(model.CurrencyETH),
			USDT: rec.Address(model.CurrencyUSDT),
		}
		if err := s.assertOwnership(ctx, pool, triple, userID); err != nil {
			return nil, err
		}
		if err := s.syncLegacyMirror(ctx, users, user, triple); err != nil {
			return nil, err
		}
		return triple, nil
	}

	// Legacy mirror with both BTC and ETH populated predates the address
	// record and is authoritative: derive USDT from ETH and rebuild.
	legacy := user.WalletAddresses
	if legacy.Bitcoin != "" && legacy.Ethereum != "" {
		triple := &AddressTriple{BTC: legacy.Bitcoin, ETH: legacy.Ethereum, USDT: legacy.Ethereum}
		zap.L().Info("healing address records from legacy wallet fields",
			zap.Uint64("userID", userID))
		return triple, s.commit(ctx, tx, user, triple)
	}

	// Fresh (or partial) assignment. Entries already on record are kept;
	// only the missing currencies claim from the pool, so a half-written
	// legacy state never leaks an assigned record.
	btc := legacy.Bitcoin
	eth := legacy.Ethereum
	if rec != nil {
		if btc == "" {
			btc = rec.Address(model.CurrencyBTC)
		}
		if eth == "" {
			eth = rec.Address(model.CurrencyETH)
		}
	}
	if btc == "" {
		claimed, err := pool.ClaimOne(ctx, model.CurrencyBTC, userID)
		if err != nil {
			return nil, fmt.Errorf("assign BTC for user %d: %w", userID, err)
		}
		btc = claimed.PublicAddress
	}
	if eth == "" {
		claimed, err := pool.ClaimOne(ctx, model.CurrencyETH, userID)
		if err != nil {
			// Returning the error rolls back the BTC claim too: either
			// both succeed or the user keeps no addresses.
			return nil, fmt.Errorf("assign ETH for user %d: %w", userID, err)
		}
		eth = claimed.PublicAddress
	}

	triple := &AddressTriple{BTC: btc, ETH: eth, USDT: eth}
	return triple, s.commit(ctx, tx, user, triple)
}

// commit writes the triple to every store: user address record, pool
// ownership marks and the legacy mirror.
func (s *AssignmentService) commit(ctx context.Context, tx *gorm.DB, user *model.User, triple *AddressTriple) error {
	users := s.users.WithTx(tx)
	pool := s.pool.WithTx(tx)
	records := s.records.WithTx(tx)

	if _, err := records.SetEntries(ctx, user.ID, map[model.Currency]string{
		model.CurrencyBTC:  triple.BTC,
		model.CurrencyETH:  triple.ETH,
		model.CurrencyUSDT: triple.USDT,
	}); err != nil {
		return err
	}
	if err := s.assertOwnership(ctx, pool, triple, user.ID); err != nil {
		return err
	}
	return s.syncLegacyMirror(ctx, users, user, triple)
}

// assertOwnership force-marks the pool rows backing the triple as owned
// by the user. Idempotent; inserts rows the pool never knew about.
func (s *AssignmentService) assertOwnership(ctx context.Context, pool *repository.KeyPoolRepo, triple *AddressTriple, userID uint64) error {
	if err := pool.MarkAssigned(ctx, model.CurrencyBTC, triple.BTC, userID); err != nil {
		return err
	}
	return pool.MarkAssigned(ctx, model.CurrencyETH, triple.ETH, userID)
}

func (s *AssignmentService) syncLegacyMirror(ctx context.Context, users *repository.UserRepo, user *model.User, triple *AddressTriple) error {
	want := model.WalletAddresses{Bitcoin: triple.BTC, Ethereum: triple.ETH, UBT: triple.USDT}
	if user.WalletAddresses == want {
		return nil
	}
	if err := users.UpdateWalletAddresses(ctx, user.ID, want); err != nil {
		return err
	}
	user.WalletAddresses = want
	return nil
}

// VerifyAddressBelongsToUser checks current and legacy records before a
// deposit is credited. A routine negative is false, never an error; I/O
// failures are logged and also answer false.
func (s *AssignmentService) VerifyAddressBelongsToUser(ctx context.Context, address string, userID uint64) bool {
	if address == "" {
		return false
	}
	holds, err := s.records.HoldsAddress(ctx, userID, address)
	if err != nil {
		zap.L().Warn("address ownership check failed", zap.Uint64("userID", userID), zap.Error(err))
		return false
	}
	if holds {
		return true
	}

	user, err := s.users.GetByID(ctx, userID)
	if err == nil {
		w := user.WalletAddresses
		if address == w.Bitcoin || address == w.Ethereum || address == w.UBT {
			return true
		}
	}

	rec, err := s.pool.FindAssignedTo(ctx, address, userID)
	if err != nil {
		zap.L().Warn("address ownership check failed", zap.Uint64("userID", userID), zap.Error(err))
		return false
	}
	return rec != nil
}
