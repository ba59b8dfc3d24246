package schedule_test

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"lister/internal/accounts"
	"lister/internal/config"
	"lister/internal/listings"
	"lister/internal/logging"
	"lister/internal/queue"
	"lister/internal/schedule"
	"lister/internal/testsupport"
)

type fixture struct {
	cfg     *config.Config
	store   *queue.Store
	catalog *listings.Catalog
	manager *schedule.Manager
}

func newFixture(t *testing.T, opts ...testsupport.ConfigOption) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	catalog, err := listings.Open(cfg)
	if err != nil {
		t.Fatalf("listings.Open: %v", err)
	}
	t.Cleanup(func() {
		catalog.Close()
	})

	dir := accounts.NewDirectory(cfg, store)
	manager := schedule.NewManager(cfg, store, catalog, dir, logging.NewNop(),
		schedule.WithRand(rand.New(rand.NewSource(1))),
	)
	return &fixture{cfg: cfg, store: store, catalog: catalog, manager: manager}
}

func TestAddEnqueuesPendingItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	added, err := f.manager.Add(ctx, schedule.AddRequest{ASIN: "B0TEST0001", Platform: "base"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !added {
		t.Fatal("expected item to be added")
	}

	items, err := f.store.PendingItems(ctx, "base", "main", 10)
	if err != nil {
		t.Fatalf("PendingItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 pending item, got %d", len(items))
	}
	if items[0].AccountID != "main" {
		t.Fatalf("expected auto-assignment to main, got %q", items[0].AccountID)
	}
	if items[0].Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", items[0].Status)
	}
}

func TestAddSkipsAlreadyListedASIN(t *testing.T) {
	f := newFixture(t)
	testsupport.SeedListing(t, f.cfg, testsupport.Listing{
		ASIN: "B0LISTED01", Platform: "base", AccountID: "main", Status: listings.StatusListed,
	})

	added, err := f.manager.Add(context.Background(), schedule.AddRequest{ASIN: "B0LISTED01", Platform: "base"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added {
		t.Fatal("expected listed ASIN to be skipped")
	}
}

func TestAddSkipsActiveQueueEntry(t *testing.T) {
	f := newFixture(t)
	testsupport.NewItem(t, f.store, "B0QUEUED01", "base", "main")

	added, err := f.manager.Add(context.Background(), schedule.AddRequest{ASIN: "B0QUEUED01", Platform: "base"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added {
		t.Fatal("expected queued ASIN to be skipped")
	}
}

func TestAddReturnsFalseWhenAllQuotaSpent(t *testing.T) {
	f := newFixture(t, testsupport.WithAccounts(
		config.Account{ID: "tiny", Platform: "base", DailyUploadLimit: 1, Active: true},
	))
	ctx := context.Background()
	testsupport.NewItem(t, f.store, "B0FULL0001", "base", "tiny")

	added, err := f.manager.Add(ctx, schedule.AddRequest{ASIN: "B0FULL0002", Platform: "base"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if added {
		t.Fatal("expected saturated quota to skip the item, not enqueue it")
	}
}

func TestAddRejectsInactiveExplicitAccount(t *testing.T) {
	f := newFixture(t, testsupport.WithAccounts(
		config.Account{ID: "dormant", Platform: "base", DailyUploadLimit: 10, Active: false},
		config.Account{ID: "main", Platform: "base", DailyUploadLimit: 10, Active: true},
	))

	_, err := f.manager.Add(context.Background(), schedule.AddRequest{
		ASIN: "B0INACT001", Platform: "base", AccountID: "dormant",
	})
	if err == nil {
		t.Fatal("expected error for explicitly requested inactive account")
	}
}

func TestAddBatchTruncatesAtAccountQuota(t *testing.T) {
	f := newFixture(t, testsupport.WithAccounts(
		config.Account{ID: "main", Platform: "base", DailyUploadLimit: 5, Active: true},
	))

	asins := make([]string, 8)
	for i := range asins {
		asins[i] = fmt.Sprintf("B0TRUNC%03d", i)
	}
	result, err := f.manager.AddBatch(context.Background(), schedule.BatchRequest{
		ASINs: asins, Platform: "base",
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if result.Succeeded != 5 {
		t.Fatalf("expected 5 succeeded, got %d", result.Succeeded)
	}
	if result.Truncated != 3 {
		t.Fatalf("expected 3 truncated, got %d", result.Truncated)
	}
	if result.BatchID == "" {
		t.Fatal("expected a batch id")
	}
}

func TestAddBatchImmediateChargesQuotaAgainstToday(t *testing.T) {
	f := newFixture(t, testsupport.WithAccounts(
		config.Account{ID: "tiny", Platform: "base", DailyUploadLimit: 1, Active: true},
	))
	ctx := context.Background()
	testsupport.NewItem(t, f.store, "B0FULL0001", "base", "tiny")

	result, err := f.manager.AddBatch(ctx, schedule.BatchRequest{
		ASINs: []string{"B0FULL0002"}, Platform: "base",
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if result.Succeeded != 0 || result.Truncated != 1 {
		t.Fatalf("expected 0 succeeded / 1 truncated on a saturated day, got %d / %d",
			result.Succeeded, result.Truncated)
	}

	items, err := f.store.PendingItems(ctx, "base", "tiny", 10)
	if err != nil {
		t.Fatalf("PendingItems: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("daily limit 1 but %d items assigned to today", len(items))
	}
}

func TestAddBatchHonorsExplicitStartWithoutDistribution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2027, 5, 1, 9, 0, 0, 0, time.UTC)

	result, err := f.manager.AddBatch(ctx, schedule.BatchRequest{
		ASINs:     []string{"B0LATER001", "B0LATER002"},
		Platform:  "base",
		StartTime: start,
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if result.Succeeded != 2 {
		t.Fatalf("expected 2 succeeded, got %d", result.Succeeded)
	}
	if !result.WindowStart.Equal(start) || !result.WindowEnd.Equal(start) {
		t.Fatalf("expected window pinned to %v, got %v .. %v", start, result.WindowStart, result.WindowEnd)
	}

	items, err := f.store.List(ctx, "base", 0, queue.StatusScheduled)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 scheduled items, got %d", len(items))
	}
	for _, item := range items {
		if !item.ScheduledAt.Equal(start) {
			t.Fatalf("requested start %v but item scheduled at %v", start, item.ScheduledAt)
		}
	}
}

func TestAddBatchAutoDistributeFollowsRemainingQuota(t *testing.T) {
	f := newFixture(t, testsupport.WithAccounts(
		config.Account{ID: "big", Platform: "base", DailyUploadLimit: 100, Active: true},
		config.Account{ID: "mid", Platform: "base", DailyUploadLimit: 50, Active: true},
		config.Account{ID: "spent", Platform: "base", DailyUploadLimit: 0, Active: true},
	))

	asins := make([]string, 150)
	for i := range asins {
		asins[i] = fmt.Sprintf("B0DIST%04d", i)
	}
	result, err := f.manager.AddBatch(context.Background(), schedule.BatchRequest{
		ASINs:                  asins,
		Platform:               "base",
		AutoDistributeAccounts: true,
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if result.Succeeded != 150 {
		t.Fatalf("expected all 150 enqueued, got %d", result.Succeeded)
	}
	if result.Truncated != 0 {
		t.Fatalf("expected no truncation, got %d", result.Truncated)
	}
	if got := result.PerAccount["spent"]; got != 0 {
		t.Fatalf("saturated account received %d items", got)
	}
	if got := result.PerAccount["big"]; got != 100 {
		t.Fatalf("expected big to take 100 items, got %d", got)
	}
	if got := result.PerAccount["mid"]; got != 50 {
		t.Fatalf("expected mid to take 50 items, got %d", got)
	}
}

func TestAddBatchAutoDistributeTruncatesBeyondPool(t *testing.T) {
	f := newFixture(t, testsupport.WithAccounts(
		config.Account{ID: "a1", Platform: "base", DailyUploadLimit: 2, Active: true},
		config.Account{ID: "a2", Platform: "base", DailyUploadLimit: 2, Active: true},
	))

	asins := []string{"B0P1", "B0P2", "B0P3", "B0P4", "B0P5", "B0P6"}
	result, err := f.manager.AddBatch(context.Background(), schedule.BatchRequest{
		ASINs: asins, Platform: "base", AutoDistributeAccounts: true,
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if result.Succeeded != 4 || result.Truncated != 2 {
		t.Fatalf("expected 4 succeeded / 2 truncated, got %d / %d", result.Succeeded, result.Truncated)
	}
}

func TestAddBatchSkipsDuplicatesBeforeAssignment(t *testing.T) {
	f := newFixture(t)
	testsupport.NewItem(t, f.store, "B0DUP00001", "base", "main")

	result, err := f.manager.AddBatch(context.Background(), schedule.BatchRequest{
		ASINs: []string{"B0DUP00001", "B0NEW00001"}, Platform: "base",
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if result.Skipped != 1 {
		t.Fatalf("expected 1 skipped duplicate, got %d", result.Skipped)
	}
	if result.Succeeded != 1 {
		t.Fatalf("expected 1 succeeded, got %d", result.Succeeded)
	}
}

func TestAddBatchDistributeTimeSchedulesAcrossWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2026, 4, 1, 6, 0, 0, 0, time.UTC)

	asins := make([]string, 25)
	for i := range asins {
		asins[i] = fmt.Sprintf("B0TIME%04d", i)
	}
	result, err := f.manager.AddBatch(ctx, schedule.BatchRequest{
		ASINs:          asins,
		Platform:       "base",
		DistributeTime: true,
		StartTime:      start,
		HourlyLimit:    10,
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	if result.Succeeded != 25 {
		t.Fatalf("expected 25 succeeded, got %d", result.Succeeded)
	}
	if !result.WindowStart.Equal(start) {
		t.Fatalf("expected window to open at %v, got %v", start, result.WindowStart)
	}
	if result.WindowEnd.Before(start.Add(2 * time.Hour)) {
		t.Fatalf("25 items at 10/hour must spill into a third hour, window ends %v", result.WindowEnd)
	}

	items, err := f.store.List(ctx, "base", 0, queue.StatusScheduled)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(items) != 25 {
		t.Fatalf("expected 25 scheduled items, got %d", len(items))
	}

	perHour := make(map[int]int)
	for _, item := range items {
		perHour[int(item.ScheduledAt.Sub(start)/time.Hour)]++
	}
	for hour, count := range perHour {
		if count > 10 {
			t.Fatalf("hour %d holds %d items, limit 10", hour, count)
		}
	}
}

func TestAddBatchDefaultsStartToNextBusinessDay(t *testing.T) {
	now := time.Date(2026, 4, 1, 15, 0, 0, 0, time.UTC)

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	catalog, err := listings.Open(cfg)
	if err != nil {
		t.Fatalf("listings.Open: %v", err)
	}
	t.Cleanup(func() {
		catalog.Close()
	})
	manager := schedule.NewManager(cfg, store, catalog, accounts.NewDirectory(cfg, store), logging.NewNop(),
		schedule.WithClock(func() time.Time { return now }),
		schedule.WithRand(rand.New(rand.NewSource(1))),
	)

	result, err := manager.AddBatch(context.Background(), schedule.BatchRequest{
		ASINs:          []string{"B0NEXT0001"},
		Platform:       "base",
		DistributeTime: true,
	})
	if err != nil {
		t.Fatalf("AddBatch: %v", err)
	}
	want := time.Date(2026, 4, 2, cfg.BusinessHours.StartHour, 0, 0, 0, time.UTC)
	if !result.WindowStart.Equal(want) {
		t.Fatalf("expected default start %v, got %v", want, result.WindowStart)
	}
}
