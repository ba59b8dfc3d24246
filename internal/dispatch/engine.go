// Package dispatch drains due queue items through a marketplace uploader.
// Execution is strictly sequential with a rate-limit pause between calls;
// marketplace quotas matter more than throughput here.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"lister/internal/config"
	"lister/internal/listings"
	"lister/internal/logging"
	"lister/internal/queue"
	"lister/internal/uploader"
)

// Engine executes uploads for one (platform, account) pair.
type Engine struct {
	cfg        *config.Config
	store      *queue.Store
	catalog    *listings.Catalog
	up         uploader.Uploader
	logger     *slog.Logger
	maxRetries int
	rateLimit  time.Duration
	now        func() time.Time
	sleep      func(ctx context.Context, d time.Duration) error
}

// Option configures optional Engine behavior.
type Option func(*Engine)

// WithRateLimit overrides the pause between marketplace calls.
func WithRateLimit(d time.Duration) Option {
	return func(e *Engine) {
		if d >= 0 {
			e.rateLimit = d
		}
	}
}

// WithMaxRetries overrides the transient-failure retry budget.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithSleep overrides the blocking pause (used in tests).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// NewEngine constructs a dispatch engine bound to one uploader.
func NewEngine(cfg *config.Config, store *queue.Store, catalog *listings.Catalog, up uploader.Uploader, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		cfg:        cfg,
		store:      store,
		catalog:    catalog,
		up:         up,
		logger:     logging.NewComponentLogger(logger, "dispatch"),
		maxRetries: cfg.Dispatch.MaxRetries,
		rateLimit:  up.RateLimit(),
		now:        time.Now,
		sleep:      sleepContext,
	}
	if e.maxRetries <= 0 {
		e.maxRetries = 3
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Summary reports one dispatch pass. Skipped items were lost to a
// concurrent transition before processing started; their status never
// changed, so they count as neither success nor failure.
type Summary struct {
	Processed int
	Succeeded int
	Failed    int
	Skipped   int
}

// ProcessDue drains up to batchSize items whose scheduled time has passed.
func (e *Engine) ProcessDue(ctx context.Context, platform, accountID string, batchSize int) (Summary, error) {
	items, err := e.store.DueItems(ctx, platform, accountID, e.now().UTC(), batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch due items: %w", err)
	}
	return e.process(ctx, items)
}

// ProcessPending drains up to batchSize pending items regardless of their
// scheduled time. Used for operator-forced catch-up runs.
func (e *Engine) ProcessPending(ctx context.Context, platform, accountID string, batchSize int) (Summary, error) {
	items, err := e.store.PendingItems(ctx, platform, accountID, batchSize)
	if err != nil {
		return Summary{}, fmt.Errorf("fetch pending items: %w", err)
	}
	return e.process(ctx, items)
}

func (e *Engine) process(ctx context.Context, items []*queue.Item) (Summary, error) {
	var summary Summary
	for i, item := range items {
		if i > 0 {
			if err := e.sleep(ctx, e.rateLimit); err != nil {
				return summary, err
			}
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		err := e.processItem(ctx, item)
		switch {
		case err == nil:
			summary.Processed++
			summary.Succeeded++
		case errors.Is(err, queue.ErrInvalidTransition):
			summary.Skipped++
		default:
			summary.Processed++
			summary.Failed++
		}
	}
	return summary, nil
}

// processItem runs the full per-item pipeline. A returned error means the
// item ended up failed (or was lost to a concurrent transition); the
// batch continues either way.
func (e *Engine) processItem(ctx context.Context, item *queue.Item) error {
	itemLogger := e.logger.With(
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldASIN, item.ASIN),
		logging.String(logging.FieldAccountID, item.AccountID),
	)

	if err := e.store.MarkUploading(ctx, item.ID); err != nil {
		if errors.Is(err, queue.ErrInvalidTransition) {
			itemLogger.Warn("item no longer dispatchable, skipping")
			return err
		}
		return fmt.Errorf("mark uploading: %w", err)
	}

	listing, err := e.catalog.Get(ctx, item.ASIN, item.Platform, item.AccountID)
	if err != nil {
		return e.fail(ctx, itemLogger, item.ID, fmt.Errorf("load listing: %w", err))
	}
	if listing == nil {
		return e.fail(ctx, itemLogger, item.ID, fmt.Errorf("no listing record for asin %s", item.ASIN))
	}

	req := &uploader.Request{
		ASIN:         item.ASIN,
		SKU:          listing.SKU,
		Title:        listing.Title,
		SellingPrice: listing.SellingPrice,
		ImageURLs:    listing.ImageURLs,
	}

	// Validation failure is terminal. No marketplace call is spent on a
	// doomed request.
	if err := e.up.ValidateItem(req); err != nil {
		return e.fail(ctx, itemLogger, item.ID, err)
	}

	dup, err := e.up.CheckDuplicate(ctx, item.ASIN, listing.SKU)
	if err != nil {
		// A failed duplicate probe does not block the upload; UploadItem
		// tolerates already-uploaded items.
		itemLogger.Warn("duplicate check failed, proceeding", logging.Error(err))
	}
	if dup {
		itemLogger.Info("item already listed on marketplace")
		return e.succeed(ctx, itemLogger, item.ID, &uploader.Result{
			Status:  uploader.StatusOK,
			Message: "already listed",
		})
	}

	result, err := e.uploadWithRetry(ctx, itemLogger, req)
	if err != nil {
		return e.fail(ctx, itemLogger, item.ID, err)
	}
	if err := e.succeed(ctx, itemLogger, item.ID, result); err != nil {
		return err
	}

	e.uploadImages(ctx, itemLogger, result.PlatformItemID, listing.ImageURLs)
	return nil
}

// uploadWithRetry calls UploadItem up to maxRetries times, pausing the
// rate limit between attempts, and stops early on non-retryable errors.
func (e *Engine) uploadWithRetry(ctx context.Context, itemLogger *slog.Logger, req *uploader.Request) (*uploader.Result, error) {
	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		result, err := e.up.UploadItem(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !uploader.Retryable(err) {
			return nil, err
		}
		itemLogger.Warn("upload attempt failed",
			logging.Error(err),
			logging.Int("attempt", attempt),
			logging.Int("max_retries", e.maxRetries),
		)
		if attempt < e.maxRetries {
			if sleepErr := e.sleep(ctx, e.rateLimit); sleepErr != nil {
				return nil, sleepErr
			}
		}
	}
	return nil, lastErr
}

// uploadImages is best-effort: a partially-imaged listing is still valid,
// so failures are logged and never roll back the success.
func (e *Engine) uploadImages(ctx context.Context, itemLogger *slog.Logger, platformItemID string, urls []string) {
	if len(urls) == 0 || platformItemID == "" {
		return
	}
	result, err := e.up.UploadImages(ctx, platformItemID, urls)
	if err != nil {
		itemLogger.Warn("image upload failed", logging.Error(err))
		return
	}
	if result.Status != uploader.StatusOK {
		itemLogger.Warn("image upload incomplete",
			logging.Int("uploaded", result.UploadedCount),
			logging.Int("total", len(urls)),
		)
	}
}

func (e *Engine) succeed(ctx context.Context, itemLogger *slog.Logger, id int64, result *uploader.Result) error {
	payload, err := json.Marshal(map[string]string{
		"status":           result.Status,
		"platform_item_id": result.PlatformItemID,
		"message":          result.Message,
	})
	if err != nil {
		return e.fail(ctx, itemLogger, id, fmt.Errorf("encode result: %w", err))
	}
	if err := e.store.MarkSuccess(ctx, id, string(payload)); err != nil {
		itemLogger.Error("mark success failed", logging.Error(err))
		return err
	}
	itemLogger.Info("upload succeeded",
		logging.String("platform_item_id", result.PlatformItemID),
	)
	return nil
}

// fail finalizes the item and always returns a non-nil error so callers
// count it.
func (e *Engine) fail(ctx context.Context, itemLogger *slog.Logger, id int64, cause error) error {
	itemLogger.Error("upload failed", logging.Error(cause))
	if err := e.store.MarkFailed(ctx, id, cause.Error()); err != nil {
		itemLogger.Error("mark failed did not apply", logging.Error(err))
	}
	return cause
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
