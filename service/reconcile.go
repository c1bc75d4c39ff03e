package service

import (
	"context"
	"fmt"

	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type FindingKind string

const (
	FindingDuplicateAssignment     FindingKind = "duplicate_assignment"
	FindingAddressNotFound         FindingKind = "address_not_found"
	FindingNotMarkedAssigned       FindingKind = "not_marked_assigned"
	FindingAssignedToDifferentUser FindingKind = "assigned_to_different_user"
)

type Finding struct {
	Kind     FindingKind    `json:"kind"`
	Currency model.Currency `json:"currency"`
	Address  string         `json:"address"`
	UserIDs  []uint64       `json:"user_ids"`
}

// Err maps the finding onto the error taxonomy, for callers and logs
// that branch with errors.Is rather than on the kind string.
func (f Finding) Err() error {
	if f.Kind == FindingDuplicateAssignment {
		return fmt.Errorf("%s address %s held by users %v: %w", f.Currency, f.Address, f.UserIDs, apperr.ErrDuplicateAssignment)
	}
	return fmt.Errorf("%s address %s (%s) for users %v: %w", f.Currency, f.Address, f.Kind, f.UserIDs, apperr.ErrInconsistentRecord)
}

type ReconcileReport struct {
	UsersScanned         int       `json:"users_scanned"`
	Migrated             int       `json:"migrated"`
	Skipped              int       `json:"skipped"`
	Errors               int       `json:"errors"`
	DuplicatesFound      int       `json:"duplicates_found"`
	DuplicatesRepaired   int       `json:"duplicates_repaired"`
	DuplicatesUnrepaired int       `json:"duplicates_unrepaired"`
	Findings             []Finding `json:"findings,omitempty"`
}

// ReconcileService detects and repairs drift between the key pool, the
// user address records and the legacy wallet mirror. Batch-mode only: it
// is driven by the admin bulk-assign endpoint or the offline tool, never
// per request. Found inconsistencies are logged, counted and repaired or
// flagged; only unexpected I/O failures propagate.
type ReconcileService struct {
	db         *gorm.DB
	users      *repository.UserRepo
	pool       *repository.KeyPoolRepo
	records    *repository.UserAddressRepo
	assignment *AssignmentService
}

func NewReconcileService(db *gorm.DB, users *repository.UserRepo, pool *repository.KeyPoolRepo, records *repository.UserAddressRepo, assignment *AssignmentService) *ReconcileService {
	return &ReconcileService{db: db, users: users, pool: pool, records: records, assignment: assignment}
}

// ScanDuplicates walks every assigned pool record and flags addresses
// referenced by more than one account. The same address held by two users
// would commingle their incoming funds, so this is the scan that matters
// most.
func (s *ReconcileService) ScanDuplicates(ctx context.Context) ([]Finding, error) {
	var findings []Finding
	for _, currency := range []model.Currency{model.CurrencyBTC, model.CurrencyETH, model.CurrencyUSDT} {
		assigned, err := s.pool.ListAssigned(ctx, currency)
		if err != nil {
			return nil, err
		}
		for _, rec := range assigned {
			holders, err := s.holders(ctx, currency, rec.PublicAddress)
			if err != nil {
				return nil, err
			}
			if len(holders) > 1 {
				findings = append(findings, Finding{
					Kind:     FindingDuplicateAssignment,
					Currency: currency,
					Address:  rec.PublicAddress,
					UserIDs:  holders,
				})
			}
		}
	}
	return findings, nil
}

// holders returns the sorted distinct user IDs referencing an address,
// from both the address records and the legacy wallet mirror.
func (s *ReconcileService) holders(ctx context.Context, currency model.Currency, address string) ([]uint64, error) {
	recordIDs, err := s.records.UserIDsHoldingAddress(ctx, currency, address)
	if err != nil {
		return nil, err
	}
	legacyIDs, err := s.users.UserIDsWithLegacyAddress(ctx, address)
	if err != nil {
		return nil, err
	}
	seen := make(map[uint64]bool)
	var out []uint64
	for _, id := range append(recordIDs, legacyIDs...) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	// insertion order is not sorted; repair wants lowest-ID first
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j] < out[j-1]; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

// RepairDuplicates keeps each duplicated address with its earliest user
// and claims a replacement for every other holder, inside a per-user
// transaction. A holder that cannot be repaired because the pool ran dry
// is logged and counted, never silently dropped.
func (s *ReconcileService) RepairDuplicates(ctx context.Context, findings []Finding, report *ReconcileReport) {
	for _, f := range findings {
		if f.Kind != FindingDuplicateAssignment || len(f.UserIDs) < 2 {
			continue
		}
		report.DuplicatesFound++
		zap.L().Warn("duplicate assignment detected", zap.Error(f.Err()))
		keeper := f.UserIDs[0]
		for _, userID := range f.UserIDs[1:] {
			if err := s.reassignUser(ctx, userID, f.Currency, f.Address); err != nil {
				report.DuplicatesUnrepaired++
				zap.L().Warn("duplicate address left unrepaired; pool needs restocking",
					zap.String("currency", string(f.Currency)),
					zap.String("address", f.Address),
					zap.Uint64("userID", userID),
					zap.Error(err))
				continue
			}
			report.DuplicatesRepaired++
			zap.L().Info("duplicate address reassigned",
				zap.String("currency", string(f.Currency)),
				zap.String("address", f.Address),
				zap.Uint64("keptUserID", keeper),
				zap.Uint64("movedUserID", userID))
		}
		// Re-assert the keeper's ownership so the pool row points at the
		// surviving account.
		if err := s.pool.MarkAssigned(ctx, f.Currency, f.Address, keeper); err != nil {
			zap.L().Warn("failed to re-point pool record at keeper", zap.Error(err))
		}
	}
}

// reassignUser claims a fresh address of the given currency for the user
// and rewrites their record and legacy mirror. ETH reassignment carries
// the USDT entry and the UBT mirror with it.
func (s *ReconcileService) reassignUser(ctx context.Context, userID uint64, currency model.Currency, oldAddress string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		pool := s.pool.WithTx(tx)
		records := s.records.WithTx(tx)

		claimCurrency := currency
		if claimCurrency == model.CurrencyUSDT {
			claimCurrency = model.CurrencyETH
		}
		claimed, err := pool.ClaimOne(ctx, claimCurrency, userID)
		if err != nil {
			return err
		}

		entries := map[model.Currency]string{}
		switch claimCurrency {
		case model.CurrencyBTC:
			entries[model.CurrencyBTC] = claimed.PublicAddress
		case model.CurrencyETH:
			entries[model.CurrencyETH] = claimed.PublicAddress
			entries[model.CurrencyUSDT] = claimed.PublicAddress
		}
		if _, err := records.SetEntries(ctx, userID, entries); err != nil {
			return err
		}

		user, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		w := user.WalletAddresses
		switch claimCurrency {
		case model.CurrencyBTC:
			if w.Bitcoin == oldAddress || w.Bitcoin == "" {
				w.Bitcoin = claimed.PublicAddress
			}
		case model.CurrencyETH:
			w.Ethereum = claimed.PublicAddress
			w.UBT = claimed.PublicAddress
		}
		return users.UpdateWalletAddresses(ctx, userID, w)
	})
}

// ScanLegacy checks every populated legacy wallet field against the pool
// and reports rows the pool has never heard of, rows it believes are
// free, and rows it believes belong to someone else.
func (s *ReconcileService) ScanLegacy(ctx context.Context) ([]Finding, error) {
	users, err := s.users.ListWithLegacyAddresses(ctx)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	check := func(userID uint64, currency model.Currency, address string) error {
		if address == "" {
			return nil
		}
		rec, err := s.pool.FindByAddress(ctx, currency, address)
		if err != nil {
			return err
		}
		switch {
		case rec == nil:
			findings = append(findings, Finding{Kind: FindingAddressNotFound, Currency: currency, Address: address, UserIDs: []uint64{userID}})
		case !rec.IsAssigned:
			findings = append(findings, Finding{Kind: FindingNotMarkedAssigned, Currency: currency, Address: address, UserIDs: []uint64{userID}})
		case rec.AssignedTo == nil || *rec.AssignedTo != userID:
			findings = append(findings, Finding{Kind: FindingAssignedToDifferentUser, Currency: currency, Address: address, UserIDs: []uint64{userID}})
		}
		return nil
	}

	for _, user := range users {
		w := user.WalletAddresses
		if err := check(user.ID, model.CurrencyBTC, w.Bitcoin); err != nil {
			return nil, err
		}
		if err := check(user.ID, model.CurrencyETH, w.Ethereum); err != nil {
			return nil, err
		}
		// UBT mirrors the USDT/ETH address; a distinct value is the same
		// class of drift, checked against the ETH inventory.
		if w.UBT != "" && w.UBT != w.Ethereum {
			if err := check(user.ID, model.CurrencyETH, w.UBT); err != nil {
				return nil, err
			}
		}
	}
	return findings, nil
}

// RepairLegacy makes the pool match the user-side records: addresses were
// historically handed out before pool bookkeeping existed, so the user
// record is ground truth for these finding kinds.
func (s *ReconcileService) RepairLegacy(ctx context.Context, findings []Finding) error {
	for _, f := range findings {
		switch f.Kind {
		case FindingAddressNotFound, FindingNotMarkedAssigned, FindingAssignedToDifferentUser:
			if len(f.UserIDs) != 1 {
				continue
			}
			zap.L().Warn("repairing pool from user record", zap.Error(f.Err()))
			if err := s.pool.MarkAssigned(ctx, f.Currency, f.Address, f.UserIDs[0]); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReconcileAll runs the full batch: duplicate scan and repair, legacy
// repair, then a per-user pass through the assignment engine so every
// account ends with a complete, consistent triple. Per-user failures are
// counted and logged; the batch keeps going.
func (s *ReconcileService) ReconcileAll(ctx context.Context) (*ReconcileReport, error) {
	report := &ReconcileReport{}

	duplicates, err := s.ScanDuplicates(ctx)
	if err != nil {
		return nil, err
	}
	report.Findings = append(report.Findings, duplicates...)
	s.RepairDuplicates(ctx, duplicates, report)

	legacy, err := s.ScanLegacy(ctx)
	if err != nil {
		return nil, err
	}
	report.Findings = append(report.Findings, legacy...)
	if err := s.RepairLegacy(ctx, legacy); err != nil {
		return nil, err
	}

	ids, err := s.users.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, userID := range ids {
		report.UsersScanned++
		consistent, err := s.userConsistent(ctx, userID)
		if err != nil {
			report.Errors++
			zap.L().Warn("reconcile: consistency check failed", zap.Uint64("userID", userID), zap.Error(err))
			continue
		}
		if consistent {
			report.Skipped++
			continue
		}
		if _, err := s.assignment.GetOrAssignAddresses(ctx, userID); err != nil {
			report.Errors++
			zap.L().Warn("reconcile: assignment failed", zap.Uint64("userID", userID), zap.Error(err))
			continue
		}
		report.Migrated++
	}

	zap.L().Info("reconciliation finished",
		zap.Int("usersScanned", report.UsersScanned),
		zap.Int("migrated", report.Migrated),
		zap.Int("skipped", report.Skipped),
		zap.Int("errors", report.Errors),
		zap.Int("duplicatesFound", report.DuplicatesFound),
		zap.Int("duplicatesRepaired", report.DuplicatesRepaired))
	return report, nil
}

// userConsistent reports whether the record, pool and legacy mirror all
// already agree for a user.
func (s *ReconcileService) userConsistent(ctx context.Context, userID uint64) (bool, error) {
	rec, err := s.records.GetByUserID(ctx, userID)
	if err != nil {
		return false, err
	}
	if rec == nil || !rec.Consistent() {
		return false, nil
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	w := user.WalletAddresses
	if w.Bitcoin != rec.Address(model.CurrencyBTC) || w.Ethereum != rec.Address(model.CurrencyETH) || w.UBT != rec.Address(model.CurrencyUSDT) {
		return false, nil
	}

	for _, pair := range []struct {
		currency model.Currency
		address  string
	}{
		{model.CurrencyBTC, rec.Address(model.CurrencyBTC)},
		{model.CurrencyETH, rec.Address(model.CurrencyETH)},
	} {
		poolRec, err := s.pool.FindByAddress(ctx, pair.currency, pair.address)
		if err != nil {
			return false, err
		}
		if poolRec == nil || !poolRec.IsAssigned || poolRec.AssignedTo == nil || *poolRec.AssignedTo != userID {
			return false, nil
		}
	}
	return true, nil
}
