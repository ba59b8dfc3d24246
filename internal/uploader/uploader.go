// Package uploader defines the marketplace upload contract and its
// implementations. One Uploader exists per marketplace; the dispatch
// engine resolves them through the registry and never depends on a
// concrete marketplace client.
package uploader

import (
	"context"
	"time"

	"lister/internal/config"
)

// Request carries the listing fields an upload call needs. The dispatch
// engine builds it from the queue item and the upstream listing record.
type Request struct {
	ASIN         string
	SKU          string
	Title        string
	Description  string
	SellingPrice int
	ImageURLs    []string
}

// Result reports the outcome of a single item upload.
type Result struct {
	Status         string
	PlatformItemID string
	Message        string
}

// ImagesResult reports how many of a listing's images were attached.
// Partial failure is reported here, never rolled back.
type ImagesResult struct {
	Status        string
	UploadedCount int
	Message       string
}

// Upload result statuses.
const (
	StatusOK      = "ok"
	StatusPartial = "partial"
)

// Uploader is the per-marketplace capability interface.
type Uploader interface {
	// Platform returns the marketplace key this uploader serves.
	Platform() string

	// ValidateItem pre-flights a request before any network call so a
	// doomed request never spends a rate-limited API call.
	ValidateItem(req *Request) error

	// CheckDuplicate reports whether the marketplace already holds a
	// confirmed listed record for the ASIN/SKU. Queued-but-unconfirmed
	// state must not count, or legitimate retries would be blocked.
	CheckDuplicate(ctx context.Context, asin, sku string) (bool, error)

	// UploadItem pushes the listing. It must tolerate being called on an
	// already-uploaded item without crashing.
	UploadItem(ctx context.Context, req *Request) (*Result, error)

	// UploadImages attaches images to an uploaded item. Called only after
	// a successful UploadItem.
	UploadImages(ctx context.Context, platformItemID string, urls []string) (*ImagesResult, error)

	// BusinessHours returns the dispatch window this uploader's account
	// operates in.
	BusinessHours() config.BusinessHours

	// RateLimit returns the minimum pause between marketplace calls.
	RateLimit() time.Duration
}
