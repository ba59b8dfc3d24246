package accounts_test

import (
	"context"
	"testing"
	"time"

	"lister/internal/accounts"
	"lister/internal/config"
	"lister/internal/testsupport"
)

func TestActiveFiltersInactiveAccounts(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAccounts(
		config.Account{ID: "a1", Platform: "base", DailyUploadLimit: 100, Active: true},
		config.Account{ID: "a2", Platform: "base", DailyUploadLimit: 50, Active: false},
	))
	store := testsupport.MustOpenStore(t, cfg)

	dir := accounts.NewDirectory(cfg, store)
	active := dir.Active("base")
	if len(active) != 1 || active[0].ID != "a1" {
		t.Fatalf("expected only a1 active, got %#v", active)
	}
}

func TestRemainingSubtractsAssignedUploads(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithAccounts(
		config.Account{ID: "a1", Platform: "base", DailyUploadLimit: 3, Active: true},
	))
	store := testsupport.MustOpenStore(t, cfg)
	dir := accounts.NewDirectory(cfg, store)

	ctx := context.Background()
	today := time.Now().UTC()
	account, ok := dir.Get("base", "a1")
	if !ok {
		t.Fatal("account a1 not found")
	}

	remaining, err := dir.Remaining(ctx, account, today)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 3 {
		t.Fatalf("expected full quota 3, got %d", remaining)
	}

	for i := 0; i < 4; i++ {
		testsupport.NewItem(t, store, "B-Q-"+string(rune('A'+i)), "base", "a1")
	}

	remaining, err = dir.Remaining(ctx, account, today)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if remaining != 0 {
		t.Fatalf("expected saturated quota to clamp at 0, got %d", remaining)
	}
}
