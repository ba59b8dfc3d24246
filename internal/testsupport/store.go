package testsupport

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"lister/internal/config"
	"lister/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewItem enqueues a pending item due now for tests.
func NewItem(t testing.TB, store *queue.Store, asin, platform, accountID string) *queue.Item {
	t.Helper()

	item, err := store.Enqueue(context.Background(), &queue.Item{
		ASIN:        asin,
		Platform:    platform,
		AccountID:   accountID,
		Status:      queue.StatusPending,
		ScheduledAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return item
}

// Listing mirrors one row of the listings table for test seeding.
type Listing struct {
	ASIN         string
	Platform     string
	AccountID    string
	SKU          string
	Title        string
	SellingPrice int
	ImageURLs    []string
	Status       string
}

// SeedListing inserts a listing row the way the upstream producer would.
// The pipeline itself never writes this table.
func SeedListing(t testing.TB, cfg *config.Config, listing Listing) {
	t.Helper()

	db, err := sql.Open("sqlite", cfg.QueueDBPath())
	if err != nil {
		t.Fatalf("open listings db: %v", err)
	}
	defer db.Close()

	if listing.Status == "" {
		listing.Status = "candidate"
	}
	var imageJSON any
	if len(listing.ImageURLs) > 0 {
		data, err := json.Marshal(listing.ImageURLs)
		if err != nil {
			t.Fatalf("marshal image urls: %v", err)
		}
		imageJSON = string(data)
	}

	_, err = db.Exec(
		`INSERT INTO listings (asin, platform, account_id, sku, title, selling_price, image_urls, status, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		listing.ASIN,
		listing.Platform,
		listing.AccountID,
		listing.SKU,
		listing.Title,
		listing.SellingPrice,
		imageJSON,
		listing.Status,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
}
