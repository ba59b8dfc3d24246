// Package schedule decides when and to which seller account pending
// listings are enqueued: single and batch enqueue, quota-aware account
// assignment, and time-slot distribution across business hours.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"

	"lister/internal/accounts"
	"lister/internal/config"
	"lister/internal/listings"
	"lister/internal/logging"
	"lister/internal/queue"
)

// Manager turns enqueue requests into durable, schedulable queue items.
type Manager struct {
	cfg       *config.Config
	store     *queue.Store
	catalog   *listings.Catalog
	directory *accounts.Directory
	logger    *slog.Logger
	now       func() time.Time
	rnd       *rand.Rand
}

// Option configures optional Manager behavior.
type Option func(*Manager)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRand overrides the random source used for allocation-pool shuffling.
func WithRand(rnd *rand.Rand) Option {
	return func(m *Manager) { m.rnd = rnd }
}

// NewManager constructs a queue manager.
func NewManager(cfg *config.Config, store *queue.Store, catalog *listings.Catalog, directory *accounts.Directory, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		cfg:       cfg,
		store:     store,
		catalog:   catalog,
		directory: directory,
		logger:    logging.NewComponentLogger(logger, "schedule"),
		now:       time.Now,
		rnd:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddRequest describes a single enqueue.
type AddRequest struct {
	ASIN      string
	Platform  string
	AccountID string // empty = auto-assign
	Priority  int
	// ScheduledAt zero means "now".
	ScheduledAt time.Time
}

// Add enqueues one item. It returns false (with nil error) when no account
// has remaining quota or the item is already listed or queued; the caller
// reports this, it is not an error condition.
func (m *Manager) Add(ctx context.Context, req AddRequest) (bool, error) {
	asin := strings.TrimSpace(req.ASIN)
	if asin == "" {
		return false, fmt.Errorf("asin is required")
	}
	platform := strings.ToLower(strings.TrimSpace(req.Platform))

	duplicate, err := m.isDuplicate(ctx, asin, platform, req.AccountID)
	if err != nil {
		return false, err
	}
	if duplicate {
		m.logger.Info("skipping duplicate enqueue",
			logging.String(logging.FieldASIN, asin),
			logging.String(logging.FieldPlatform, platform),
		)
		return false, nil
	}

	scheduledAt := req.ScheduledAt
	status := queue.StatusScheduled
	if scheduledAt.IsZero() {
		scheduledAt = m.now().UTC()
		status = queue.StatusPending
	}

	accountID := strings.TrimSpace(req.AccountID)
	if accountID == "" {
		account, _, ok, err := m.pickAccount(ctx, platform, scheduledAt)
		if err != nil {
			return false, err
		}
		if !ok {
			m.logger.Warn("no account with remaining quota",
				logging.String(logging.FieldASIN, asin),
				logging.String(logging.FieldPlatform, platform),
			)
			return false, nil
		}
		accountID = account.ID
	} else {
		account, ok := m.directory.Get(platform, accountID)
		if !ok || !account.Active {
			return false, fmt.Errorf("account %q is not an active %s account", accountID, platform)
		}
		remaining, err := m.directory.Remaining(ctx, account, scheduledAt)
		if err != nil {
			return false, err
		}
		if remaining <= 0 {
			m.logger.Warn("account quota exhausted",
				logging.String(logging.FieldAccountID, accountID),
				logging.String(logging.FieldPlatform, platform),
			)
			return false, nil
		}
	}

	_, err = m.store.Enqueue(ctx, &queue.Item{
		ASIN:        asin,
		Platform:    platform,
		AccountID:   accountID,
		Priority:    req.Priority,
		Status:      status,
		ScheduledAt: scheduledAt,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// BatchRequest describes a multi-item enqueue.
type BatchRequest struct {
	ASINs     []string
	Platform  string
	AccountID string // empty = assignment by mode
	Priority  int

	// StartTime schedules the whole batch at that instant (zero means
	// now). With DistributeTime set, items are instead spread across
	// business hours from StartTime (default: next day at business-hours
	// start).
	DistributeTime bool
	StartTime      time.Time
	HourlyLimit    int // 0 = config default

	// AutoDistributeAccounts splits the batch across all active accounts
	// weighted by remaining quota; otherwise one account takes the batch.
	AutoDistributeAccounts bool
}

// BatchResult reports what a batch enqueue actually did.
type BatchResult struct {
	BatchID   string
	Requested int
	Succeeded int
	Failed    int
	// Truncated items were dropped because quota ran out; Skipped items
	// were already listed or queued.
	Truncated int
	Skipped   int

	WindowStart time.Time
	WindowEnd   time.Time
	PerAccount  map[string]int
}

// AddBatch enqueues a batch with account assignment and optional time-slot
// distribution. Quota shortfall truncates the batch (reported in the
// result) instead of failing the call.
func (m *Manager) AddBatch(ctx context.Context, req BatchRequest) (BatchResult, error) {
	platform := strings.ToLower(strings.TrimSpace(req.Platform))
	result := BatchResult{
		BatchID:    uuid.NewString(),
		Requested:  len(req.ASINs),
		PerAccount: make(map[string]int),
	}
	if len(req.ASINs) == 0 {
		return result, nil
	}

	// Drop duplicates before consuming quota slots.
	fresh := make([]string, 0, len(req.ASINs))
	for _, raw := range req.ASINs {
		asin := strings.TrimSpace(raw)
		if asin == "" {
			result.Skipped++
			continue
		}
		duplicate, err := m.isDuplicate(ctx, asin, platform, req.AccountID)
		if err != nil {
			return result, err
		}
		if duplicate {
			result.Skipped++
			continue
		}
		fresh = append(fresh, asin)
	}
	if len(fresh) == 0 {
		return result, nil
	}

	startTime := req.StartTime
	explicitStart := !startTime.IsZero()
	if req.DistributeTime && startTime.IsZero() {
		startTime = NextBusinessStart(m.now(), m.cfg.BusinessHours)
	}

	// Quota must be charged against the day items actually land on:
	// today for an immediate batch, the start day otherwise.
	quotaDay := m.now().UTC()
	if req.DistributeTime || explicitStart {
		quotaDay = startTime
	}

	assignments, truncated, err := m.assignBatch(ctx, platform, req, fresh, quotaDay)
	if err != nil {
		return result, err
	}
	result.Truncated = truncated

	var slots []time.Time
	status := queue.StatusPending
	switch {
	case req.DistributeTime:
		hourlyLimit := req.HourlyLimit
		if hourlyLimit <= 0 {
			hourlyLimit = m.cfg.Queue.HourlyLimit
		}
		slots = DistributeSlots(len(assignments), startTime, hourlyLimit, m.cfg.BusinessHours.Width())
		status = queue.StatusScheduled
	case explicitStart:
		status = queue.StatusScheduled
	}

	defaultAt := m.now().UTC()
	if explicitStart {
		defaultAt = startTime
	}
	for i, assignment := range assignments {
		scheduledAt := defaultAt
		if slots != nil {
			scheduledAt = slots[i]
		}
		_, err := m.store.Enqueue(ctx, &queue.Item{
			ASIN:        assignment.asin,
			Platform:    platform,
			AccountID:   assignment.accountID,
			Priority:    req.Priority,
			Status:      status,
			ScheduledAt: scheduledAt,
			BatchID:     result.BatchID,
		})
		if err != nil {
			result.Failed++
			m.logger.Error("batch enqueue failed",
				logging.Error(err),
				logging.String(logging.FieldASIN, assignment.asin),
				logging.String(logging.FieldBatchID, result.BatchID),
			)
			continue
		}
		result.Succeeded++
		result.PerAccount[assignment.accountID]++
		if result.WindowStart.IsZero() || scheduledAt.Before(result.WindowStart) {
			result.WindowStart = scheduledAt
		}
		if scheduledAt.After(result.WindowEnd) {
			result.WindowEnd = scheduledAt
		}
	}

	m.logger.Info("batch enqueued",
		logging.String(logging.FieldBatchID, result.BatchID),
		logging.String(logging.FieldPlatform, platform),
		logging.Int("requested", result.Requested),
		logging.Int("succeeded", result.Succeeded),
		logging.Int("truncated", result.Truncated),
		logging.Int("skipped", result.Skipped),
	)
	return result, nil
}

type batchAssignment struct {
	asin      string
	accountID string
}

// assignBatch maps ASINs to accounts per the requested mode and reports how
// many items were truncated for lack of quota.
func (m *Manager) assignBatch(ctx context.Context, platform string, req BatchRequest, asins []string, day time.Time) ([]batchAssignment, int, error) {
	if accountID := strings.TrimSpace(req.AccountID); accountID != "" {
		account, ok := m.directory.Get(platform, accountID)
		if !ok || !account.Active {
			return nil, 0, fmt.Errorf("account %q is not an active %s account", accountID, platform)
		}
		remaining, err := m.directory.Remaining(ctx, account, day)
		if err != nil {
			return nil, 0, err
		}
		return takeForAccount(asins, accountID, remaining)
	}

	if req.AutoDistributeAccounts {
		pool, err := m.buildAllocationPool(ctx, platform, day)
		if err != nil {
			return nil, 0, err
		}
		n := len(asins)
		if len(pool) < n {
			n = len(pool)
		}
		assignments := make([]batchAssignment, 0, n)
		for i := 0; i < n; i++ {
			assignments = append(assignments, batchAssignment{asin: asins[i], accountID: pool[i]})
		}
		return assignments, len(asins) - n, nil
	}

	account, remaining, ok, err := m.pickAccount(ctx, platform, day)
	if err != nil {
		return nil, 0, err
	}
	if !ok {
		return nil, len(asins), nil
	}
	return takeForAccount(asins, account.ID, remaining)
}

func takeForAccount(asins []string, accountID string, remaining int) ([]batchAssignment, int, error) {
	n := len(asins)
	if remaining < n {
		n = remaining
	}
	if n < 0 {
		n = 0
	}
	assignments := make([]batchAssignment, 0, n)
	for i := 0; i < n; i++ {
		assignments = append(assignments, batchAssignment{asin: asins[i], accountID: accountID})
	}
	return assignments, len(asins) - n, nil
}

// isDuplicate reports whether the ASIN is already listed on the platform or
// already has an active queue entry.
func (m *Manager) isDuplicate(ctx context.Context, asin, platform, accountID string) (bool, error) {
	listed, err := m.catalog.IsListed(ctx, asin, platform, accountID)
	if err != nil {
		return false, fmt.Errorf("listing check: %w", err)
	}
	if listed {
		return true, nil
	}
	queued, err := m.store.HasActiveEntry(ctx, asin, platform, accountID)
	if err != nil {
		return false, fmt.Errorf("queue check: %w", err)
	}
	return queued, nil
}
