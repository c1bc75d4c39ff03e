package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/hsit/hsit-server/apperr"
	"github.com/hsit/hsit-server/model"
)

func TestGetOrAssignAddressesScenario(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.seedPool(t, model.CurrencyBTC, "b1", "b2")
	env.seedPool(t, model.CurrencyETH, "e1", "e2")

	u1 := env.createUser(t, "u1@example.com")
	u2 := env.createUser(t, "u2@example.com")
	u3 := env.createUser(t, "u3@example.com")

	first, err := env.assign.GetOrAssignAddresses(ctx, u1.ID)
	if err != nil {
		t.Fatalf("assign u1: %v", err)
	}
	if first.BTC != "b1" || first.ETH != "e1" || first.USDT != "e1" {
		t.Fatalf("u1 got %+v, want {b1 e1 e1}", first)
	}

	again, err := env.assign.GetOrAssignAddresses(ctx, u1.ID)
	if err != nil {
		t.Fatalf("re-assign u1: %v", err)
	}
	if *again != *first {
		t.Fatalf("repeat call not idempotent: %+v then %+v", first, again)
	}

	second, err := env.assign.GetOrAssignAddresses(ctx, u2.ID)
	if err != nil {
		t.Fatalf("assign u2: %v", err)
	}
	if second.BTC != "b2" || second.ETH != "e2" || second.USDT != "e2" {
		t.Fatalf("u2 got %+v, want {b2 e2 e2}", second)
	}

	if _, err := env.assign.GetOrAssignAddresses(ctx, u3.ID); !errors.Is(err, apperr.ErrPoolExhausted) {
		t.Fatalf("u3 should hit pool exhaustion, got %v", err)
	}
	// exhaustion must leave u3 with no partial state
	rec, err := env.records.GetByUserID(ctx, u3.ID)
	if err != nil {
		t.Fatalf("load u3 record: %v", err)
	}
	if rec != nil {
		t.Fatalf("u3 should have no address record after rollback, got %+v", rec)
	}
}

func TestAssignWritesAllThreeStores(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.seedPool(t, model.CurrencyBTC, "b1")
	env.seedPool(t, model.CurrencyETH, "e1")
	user := env.createUser(t, "full@example.com")

	triple, err := env.assign.GetOrAssignAddresses(ctx, user.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	rec, err := env.records.GetByUserID(ctx, user.ID)
	if err != nil || rec == nil {
		t.Fatalf("load record: rec=%v err=%v", rec, err)
	}
	if !rec.Consistent() {
		t.Fatalf("record not consistent: %+v", rec.Entries)
	}
	if rec.Address(model.CurrencyUSDT) != rec.Address(model.CurrencyETH) {
		t.Fatal("USDT entry must equal ETH entry")
	}
	if rec.TotalAssigned != 3 {
		t.Fatalf("total_assigned = %d, want 3", rec.TotalAssigned)
	}

	fresh, err := env.users.GetByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	w := fresh.WalletAddresses
	if w.Bitcoin != triple.BTC || w.Ethereum != triple.ETH || w.UBT != triple.USDT {
		t.Fatalf("legacy mirror out of sync: %+v vs %+v", w, triple)
	}

	for _, pair := range []struct {
		currency model.Currency
		address  string
	}{{model.CurrencyBTC, triple.BTC}, {model.CurrencyETH, triple.ETH}} {
		poolRec, err := env.pool.FindByAddress(ctx, pair.currency, pair.address)
		if err != nil || poolRec == nil {
			t.Fatalf("pool record %s/%s: rec=%v err=%v", pair.currency, pair.address, poolRec, err)
		}
		if !poolRec.IsAssigned || poolRec.AssignedTo == nil || *poolRec.AssignedTo != user.ID {
			t.Fatalf("pool record %s not owned by user: %+v", pair.address, poolRec)
		}
	}
}

func TestAssignHealsLegacyWalletFields(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	user := env.createUser(t, "legacy@example.com")

	// history: addresses handed out before the record or pool existed
	if err := env.users.UpdateWalletAddresses(ctx, user.ID, model.WalletAddresses{
		Bitcoin:  "b1",
		Ethereum: "e1",
		UBT:      "",
	}); err != nil {
		t.Fatalf("seed legacy fields: %v", err)
	}

	triple, err := env.assign.GetOrAssignAddresses(ctx, user.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if triple.BTC != "b1" || triple.ETH != "e1" || triple.USDT != "e1" {
		t.Fatalf("legacy heal returned %+v, want {b1 e1 e1}", triple)
	}

	rec, err := env.records.GetByUserID(ctx, user.ID)
	if err != nil || rec == nil || !rec.Consistent() {
		t.Fatalf("record not rebuilt from legacy data: rec=%+v err=%v", rec, err)
	}

	fresh, _ := env.users.GetByID(ctx, user.ID)
	if fresh.WalletAddresses.UBT != "e1" {
		t.Fatalf("ubt mirror = %q, want e1", fresh.WalletAddresses.UBT)
	}

	// the pool must now know about both addresses even though it never
	// issued them
	poolRec, err := env.pool.FindByAddress(ctx, model.CurrencyBTC, "b1")
	if err != nil || poolRec == nil || poolRec.AssignedTo == nil || *poolRec.AssignedTo != user.ID {
		t.Fatalf("legacy BTC address not back-filled into pool: %+v err=%v", poolRec, err)
	}
}

func TestAssignReusesPartialRecord(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.seedPool(t, model.CurrencyBTC, "b-new")
	env.seedPool(t, model.CurrencyETH, "e-new")
	user := env.createUser(t, "partial@example.com")

	// a half-written record: BTC present, ETH/USDT missing
	if _, err := env.records.SetEntries(ctx, user.ID, map[model.Currency]string{
		model.CurrencyBTC: "b-old",
	}); err != nil {
		t.Fatalf("seed partial record: %v", err)
	}

	triple, err := env.assign.GetOrAssignAddresses(ctx, user.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if triple.BTC != "b-old" {
		t.Fatalf("existing BTC entry was abandoned: got %q", triple.BTC)
	}
	if triple.ETH != "e-new" || triple.USDT != "e-new" {
		t.Fatalf("missing currencies not claimed: %+v", triple)
	}

	// the seeded BTC record must remain free: only ETH was claimed
	free, err := env.pool.FindByAddress(ctx, model.CurrencyBTC, "b-new")
	if err != nil || free == nil {
		t.Fatalf("find b-new: %v", err)
	}
	if free.IsAssigned {
		t.Fatal("BTC pool record should not have been claimed")
	}
}

func TestConcurrentAssignDistinctAddresses(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	const n = 8
	btc := make([]string, n)
	eth := make([]string, n)
	for i := range btc {
		btc[i] = string(rune('a'+i)) + "-btc"
		eth[i] = string(rune('a'+i)) + "-eth"
	}
	env.seedPool(t, model.CurrencyBTC, btc...)
	env.seedPool(t, model.CurrencyETH, eth...)

	users := make([]*model.User, n)
	for i := range users {
		users[i] = env.createUser(t, string(rune('a'+i))+"@example.com")
	}

	var wg sync.WaitGroup
	triples := make([]*AddressTriple, n)
	errs := make([]error, n)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			triples[i], errs[i] = env.assign.GetOrAssignAddresses(ctx, users[i].ID)
		}(i)
	}
	wg.Wait()

	seenBTC := make(map[string]int)
	seenETH := make(map[string]int)
	for i := range users {
		if errs[i] != nil {
			t.Fatalf("user %d failed: %v", users[i].ID, errs[i])
		}
		seenBTC[triples[i].BTC]++
		seenETH[triples[i].ETH]++
	}
	for address, count := range seenBTC {
		if count != 1 {
			t.Fatalf("BTC address %s assigned %d times", address, count)
		}
	}
	for address, count := range seenETH {
		if count != 1 {
			t.Fatalf("ETH address %s assigned %d times", address, count)
		}
	}

	late := env.createUser(t, "late@example.com")
	if _, err := env.assign.GetOrAssignAddresses(ctx, late.ID); !errors.Is(err, apperr.ErrPoolExhausted) {
		t.Fatalf("drained pool should reject the next user, got %v", err)
	}
}

func TestVerifyAddressBelongsToUser(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()
	env.seedPool(t, model.CurrencyBTC, "b1")
	env.seedPool(t, model.CurrencyETH, "e1")
	owner := env.createUser(t, "owner@example.com")
	other := env.createUser(t, "other@example.com")

	triple, err := env.assign.GetOrAssignAddresses(ctx, owner.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	if !env.assign.VerifyAddressBelongsToUser(ctx, triple.BTC, owner.ID) {
		t.Fatal("owner's BTC address not verified")
	}
	if !env.assign.VerifyAddressBelongsToUser(ctx, triple.USDT, owner.ID) {
		t.Fatal("owner's USDT address not verified")
	}
	if env.assign.VerifyAddressBelongsToUser(ctx, triple.BTC, other.ID) {
		t.Fatal("someone else's address must not verify")
	}
	if env.assign.VerifyAddressBelongsToUser(ctx, "unknown-address", owner.ID) {
		t.Fatal("unknown address must not verify")
	}
	if env.assign.VerifyAddressBelongsToUser(ctx, "", owner.ID) {
		t.Fatal("empty address must not verify")
	}

	// legacy-only reference still counts
	legacyUser := env.createUser(t, "legacyv@example.com")
	if err := env.users.UpdateWalletAddresses(ctx, legacyUser.ID, model.WalletAddresses{Bitcoin: "b-legacy"}); err != nil {
		t.Fatalf("seed legacy: %v", err)
	}
	if !env.assign.VerifyAddressBelongsToUser(ctx, "b-legacy", legacyUser.ID) {
		t.Fatal("legacy wallet field reference not verified")
	}
}
