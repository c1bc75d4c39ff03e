package service

import (
	"context"
	"errors"
	"testing"

	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/model"
	"github.com/shopspring/decimal"
)

func TestLedgerCreditAndDebit(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "ledger@example.com")

	entry, err := env.ledger.Credit(ctx, user.ID, model.LedgerDeposit, decimal.NewFromInt(100), "deposit")
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if !entry.BalanceAfter.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance after credit = %s, want 100", entry.BalanceAfter)
	}
	if entry.Reference == "" {
		t.Fatal("entry has no reference")
	}

	entry, err = env.ledger.Debit(ctx, user.ID, model.LedgerWheelFee, decimal.NewFromInt(30), "fee")
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if !entry.Amount.Equal(decimal.NewFromInt(-30)) {
		t.Fatalf("debit amount stored as %s, want -30", entry.Amount)
	}
	if !entry.BalanceAfter.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("balance after debit = %s, want 70", entry.BalanceAfter)
	}

	balance, err := env.ledger.Balance(ctx, user.ID)
	if err != nil || !balance.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("balance = %s err=%v, want 70", balance, err)
	}
}

func TestLedgerInsufficientBalance(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "broke@example.com")
	env.fundUser(t, user.ID, decimal.NewFromInt(5))

	if _, err := env.ledger.Debit(ctx, user.ID, model.LedgerBotPurchase, decimal.NewFromInt(6), "too much"); !errors.Is(err, apperr.ErrInsufficientBalance) {
		t.Fatalf("overdraw should fail with insufficient balance, got %v", err)
	}

	// the rejected debit must leave neither an entry nor a balance change
	balance, _ := env.ledger.Balance(ctx, user.ID)
	if !balance.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("balance changed on rejected debit: %s", balance)
	}
	_, total, err := env.ledger.History(ctx, user.ID, 1, 20)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if total != 1 {
		t.Fatalf("ledger has %d entries, want just the funding credit", total)
	}

	// draining to exactly zero is allowed
	if _, err := env.ledger.Debit(ctx, user.ID, model.LedgerBotPurchase, decimal.NewFromInt(5), "all of it"); err != nil {
		t.Fatalf("debit to zero: %v", err)
	}
}

func TestLedgerRejectsZeroAmount(t *testing.T) {
	env := setupEnv(t)
	user := env.createUser(t, "zero@example.com")

	if _, err := env.ledger.Credit(context.Background(), user.ID, model.LedgerDeposit, decimal.Zero, "nothing"); err == nil {
		t.Fatal("zero-amount movement should be rejected")
	}
}

func TestLedgerUnknownUser(t *testing.T) {
	env := setupEnv(t)

	if _, err := env.ledger.Credit(context.Background(), 999, model.LedgerDeposit, decimal.NewFromInt(1), "ghost"); !errors.Is(err, apperr.ErrUserNotFound) {
		t.Fatalf("credit to unknown user should fail with user not found, got %v", err)
	}
}

func TestLedgerHistoryPaging(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "pager@example.com")

	for i := 1; i <= 5; i++ {
		env.fundUser(t, user.ID, decimal.NewFromInt(int64(i)))
	}

	page1, total, err := env.ledger.History(ctx, user.ID, 1, 2)
	if err != nil {
		t.Fatalf("history page 1: %v", err)
	}
	if total != 5 || len(page1) != 2 {
		t.Fatalf("page 1: total=%d len=%d, want 5/2", total, len(page1))
	}
	// newest first
	if !page1[0].Amount.Equal(decimal.NewFromInt(5)) || !page1[1].Amount.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("page 1 not newest-first: %s, %s", page1[0].Amount, page1[1].Amount)
	}

	page3, _, err := env.ledger.History(ctx, user.ID, 3, 2)
	if err != nil {
		t.Fatalf("history page 3: %v", err)
	}
	if len(page3) != 1 || !page3[0].Amount.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("page 3 = %+v, want the single oldest entry", page3)
	}
}
