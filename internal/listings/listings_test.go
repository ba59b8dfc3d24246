package listings_test

import (
	"context"
	"testing"

	"lister/internal/listings"
	"lister/internal/testsupport"
)

func TestGetReturnsSeededListing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg) // creates the schema
	testsupport.SeedListing(t, cfg, testsupport.Listing{
		ASIN: "B000LIST01", Platform: "base", AccountID: "main",
		SKU: "SKU-1", Title: "Sample Product", SellingPrice: 2980,
		ImageURLs: []string{"https://img.example/1.jpg", "https://img.example/2.jpg"},
		Status:    "priced",
	})

	catalog, err := listings.Open(cfg)
	if err != nil {
		t.Fatalf("listings.Open: %v", err)
	}
	defer catalog.Close()

	ctx := context.Background()
	listing, err := catalog.Get(ctx, "B000LIST01", "base", "main")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if listing == nil || listing.SKU != "SKU-1" || listing.SellingPrice != 2980 {
		t.Fatalf("unexpected listing: %#v", listing)
	}
	if len(listing.ImageURLs) != 2 {
		t.Fatalf("expected 2 image urls, got %d", len(listing.ImageURLs))
	}

	missing, err := catalog.Get(ctx, "B-MISSING", "base", "")
	if err != nil {
		t.Fatalf("Get missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing listing, got %#v", missing)
	}
}

func TestIsListedOnlyCountsListedStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MustOpenStore(t, cfg)
	testsupport.SeedListing(t, cfg, testsupport.Listing{
		ASIN: "B000QUEUED", Platform: "base", Status: "queued",
	})
	testsupport.SeedListing(t, cfg, testsupport.Listing{
		ASIN: "B000LIVE", Platform: "base", Status: listings.StatusListed,
	})

	catalog, err := listings.Open(cfg)
	if err != nil {
		t.Fatalf("listings.Open: %v", err)
	}
	defer catalog.Close()

	ctx := context.Background()
	listed, err := catalog.IsListed(ctx, "B000QUEUED", "base", "")
	if err != nil {
		t.Fatalf("IsListed: %v", err)
	}
	if listed {
		t.Fatal("queued listing must not count as listed")
	}

	listed, err = catalog.IsListed(ctx, "B000LIVE", "base", "")
	if err != nil {
		t.Fatalf("IsListed: %v", err)
	}
	if !listed {
		t.Fatal("expected live listing to count as listed")
	}
}
