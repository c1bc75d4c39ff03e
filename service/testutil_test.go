package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap sql.DB: %v", err)
	}
	// Serialize access: each in-memory sqlite connection is its own DB.
	sqlDB.SetMaxOpenConns(1)
	if err := model.AutoMigrate(db); err != nil {
		t.Fatalf("migrate test schema: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return db
}

type testEnv struct {
	db        *gorm.DB
	users     *repository.UserRepo
	pool      *repository.KeyPoolRepo
	records   *repository.UserAddressRepo
	keypool   *KeyPoolService
	assign    *AssignmentService
	reconcile *ReconcileService
	ledger    *LedgerService
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	users := repository.NewUserRepo(db)
	pool := repository.NewKeyPoolRepo(db)
	records := repository.NewUserAddressRepo(db)
	sealer, err := NewKeySealer("test-secret")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	assign := NewAssignmentService(db, users, pool, records)
	return &testEnv{
		db:        db,
		users:     users,
		pool:      pool,
		records:   records,
		keypool:   NewKeyPoolService(pool, sealer),
		assign:    assign,
		reconcile: NewReconcileService(db, users, pool, records, assign),
		ledger:    NewLedgerService(db, users, repository.NewLedgerRepo(db)),
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "x",
		InviteCode:   fmt.Sprintf("IC-%s", email),
		Balance:      decimal.Zero,
	}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return user
}

// seedPool inserts free records with ascending creation times so FIFO
// ordering is deterministic.
func (e *testEnv) seedPool(t *testing.T, currency model.Currency, addresses ...string) {
	t.Helper()
	base := time.Now().Add(-time.Hour)
	for i, address := range addresses {
		rec := &model.KeyRecord{
			Currency:      currency,
			PublicAddress: address,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}
		if err := e.db.Create(rec).Error; err != nil {
			t.Fatalf("seed pool %s/%s: %v", currency, address, err)
		}
	}
}

func (e *testEnv) fundUser(t *testing.T, userID uint64, amount decimal.Decimal) {
	t.Helper()
	if _, err := e.ledger.Credit(context.Background(), userID, model.LedgerDeposit, amount, "test funding"); err != nil {
		t.Fatalf("fund user %d: %v", userID, err)
	}
}
