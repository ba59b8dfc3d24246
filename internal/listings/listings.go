// Package listings exposes read-only access to the listings table produced
// by the upstream scraping/pricing pipeline. The upload pipeline reads it
// to guard against duplicate enqueues and to build upload requests; it
// never writes it.
package listings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"lister/internal/config"
)

// StatusListed marks a listing confirmed live on the marketplace. Only this
// state counts for duplicate checks; queued-but-unconfirmed records must
// not block retries.
const StatusListed = "listed"

// Listing is one upstream-produced product record.
type Listing struct {
	ASIN         string
	Platform     string
	AccountID    string
	SKU          string
	Title        string
	SellingPrice int
	ImageURLs    []string
	Status       string
	CreatedAt    time.Time
}

// Catalog reads the listings table.
type Catalog struct {
	db *sql.DB
}

// Open connects to the shared database for listing reads.
func Open(cfg *config.Config) (*Catalog, error) {
	db, err := sql.Open("sqlite", cfg.QueueDBPath())
	if err != nil {
		return nil, fmt.Errorf("open listings db: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply busy timeout: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the underlying database connection.
func (c *Catalog) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

const listingColumns = "asin, platform, account_id, sku, title, selling_price, image_urls, status, created_at"

// Get returns the newest listing for an ASIN on a platform. An empty
// accountID matches any account. Missing listings return nil, nil.
func (c *Catalog) Get(ctx context.Context, asin, platform, accountID string) (*Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE asin = ? AND platform = ?`
	args := []any{asin, platform}
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}
	query += ` ORDER BY id DESC LIMIT 1`

	row := c.db.QueryRowContext(ctx, query, args...)
	listing, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	return listing, nil
}

// IsListed reports whether a confirmed listed record exists for the ASIN.
func (c *Catalog) IsListed(ctx context.Context, asin, platform, accountID string) (bool, error) {
	query := `SELECT COUNT(1) FROM listings WHERE asin = ? AND platform = ? AND status = ?`
	args := []any{asin, platform, StatusListed}
	if accountID != "" {
		query += ` AND account_id = ?`
		args = append(args, accountID)
	}

	var count int
	if err := c.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("check listed: %w", err)
	}
	return count > 0, nil
}

func scanListing(scanner interface{ Scan(dest ...any) error }) (*Listing, error) {
	var (
		listing    Listing
		imageJSON  sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(
		&listing.ASIN,
		&listing.Platform,
		&listing.AccountID,
		&listing.SKU,
		&listing.Title,
		&listing.SellingPrice,
		&imageJSON,
		&listing.Status,
		&createdRaw,
	); err != nil {
		return nil, err
	}
	if imageJSON.Valid && imageJSON.String != "" {
		if err := json.Unmarshal([]byte(imageJSON.String), &listing.ImageURLs); err != nil {
			return nil, fmt.Errorf("decode image urls: %w", err)
		}
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		listing.CreatedAt = created
	}
	return &listing, nil
}
