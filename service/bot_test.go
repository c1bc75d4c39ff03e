package service

import (
	"context"
	"errors"
	"testing"

	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/model"
	"github.com/hsit/hsit-server/repository"
	"github.com/shopspring/decimal"
)

func setupBotService(t *testing.T, env *testEnv) *BotService {
	t.Helper()
	return NewBotService(env.db, repository.NewBotRepo(env.db), env.ledger)
}

func TestSeedDefaultsOnce(t *testing.T) {
	env := setupEnv(t)
	svc := setupBotService(t, env)
	ctx := context.Background()

	if err := svc.SeedDefaults(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := svc.SeedDefaults(ctx); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	products, err := svc.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(products) != 3 {
		t.Fatalf("seeded %d products, want 3", len(products))
	}
}

func TestBotPurchase(t *testing.T) {
	env := setupEnv(t)
	svc := setupBotService(t, env)
	ctx := context.Background()

	product := &model.BotProduct{
		Name:         "Test Bot",
		Price:        decimal.NewFromInt(100),
		DailyRate:    decimal.NewFromFloat(0.01),
		DurationDays: 30,
		Active:       true,
	}
	if err := repository.NewBotRepo(env.db).CreateProduct(ctx, product); err != nil {
		t.Fatalf("create product: %v", err)
	}

	user := env.createUser(t, "buyer@example.com")

	// broke: the whole purchase rolls back
	if _, err := svc.Purchase(ctx, user.ID, product.ID); !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("broke purchase: got %v", err)
	}
	if purchases, _ := svc.ListPurchases(ctx, user.ID); len(purchases) != 0 {
		t.Fatalf("rejected purchase left %d rows", len(purchases))
	}

	env.fundUser(t, user.ID, decimal.NewFromInt(150))
	purchase, err := svc.Purchase(ctx, user.ID, product.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if purchase.Status != model.BotPurchaseActive {
		t.Fatalf("status = %q, want active", purchase.Status)
	}
	if !purchase.Principal.Equal(product.Price) {
		t.Fatalf("principal = %s, want %s", purchase.Principal, product.Price)
	}
	balance, _ := env.ledger.Balance(ctx, user.ID)
	if !balance.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("balance after purchase = %s, want 50", balance)
	}
}

func TestBotPurchaseInactiveProduct(t *testing.T) {
	env := setupEnv(t)
	svc := setupBotService(t, env)
	ctx := context.Background()

	product := &model.BotProduct{
		Name:         "Retired Bot",
		Price:        decimal.NewFromInt(10),
		DailyRate:    decimal.NewFromFloat(0.01),
		DurationDays: 30,
		Active:       false,
	}
	repo := repository.NewBotRepo(env.db)
	if err := repo.CreateProduct(ctx, product); err != nil {
		t.Fatalf("create product: %v", err)
	}
	// the false must survive the round trip, not be swallowed by a column
	// default
	stored, err := repo.GetProduct(ctx, product.ID)
	if err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if stored.Active {
		t.Fatal("product inserted with Active=false came back active")
	}

	user := env.createUser(t, "late@example.com")
	env.fundUser(t, user.ID, decimal.NewFromInt(100))

	if _, err := svc.Purchase(ctx, user.ID, product.ID); !errors.Is(err, apperr.ErrProductNotFound) {
		t.Fatalf("inactive product purchase: got %v", err)
	}
}

func TestBotComplete(t *testing.T) {
	env := setupEnv(t)
	svc := setupBotService(t, env)
	ctx := context.Background()

	product := &model.BotProduct{
		Name:         "Yield Bot",
		Price:        decimal.NewFromInt(100),
		DailyRate:    decimal.NewFromFloat(0.01),
		DurationDays: 30,
		Active:       true,
	}
	if err := repository.NewBotRepo(env.db).CreateProduct(ctx, product); err != nil {
		t.Fatalf("create product: %v", err)
	}
	user := env.createUser(t, "earner@example.com")
	env.fundUser(t, user.ID, decimal.NewFromInt(100))

	purchase, err := svc.Purchase(ctx, user.ID, product.ID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}

	done, err := svc.Complete(ctx, purchase.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.BotPurchaseCompleted || done.CompletedAt == nil {
		t.Fatalf("purchase not closed: %+v", done)
	}

	// payout = principal + principal * rate * days = 100 + 100*0.01*30
	balance, _ := env.ledger.Balance(ctx, user.ID)
	if !balance.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("balance after completion = %s, want 130", balance)
	}

	// completing again pays nothing
	if _, err := svc.Complete(ctx, purchase.ID); err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	balance, _ = env.ledger.Balance(ctx, user.ID)
	if !balance.Equal(decimal.NewFromInt(130)) {
		t.Fatalf("second completion changed balance: %s", balance)
	}

	if _, err := svc.Complete(ctx, 9999); !errors.Is(err, apperr.ErrPurchaseNotFound) {
		t.Fatalf("unknown purchase: got %v", err)
	}
}
