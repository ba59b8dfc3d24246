// Package daemon runs the single-threaded poll loop of one listerd
// process. Each daemon owns exactly one (platform, account) pair; the
// supervisor decides how many daemons exist.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"lister/internal/config"
	"lister/internal/dispatch"
	"lister/internal/logging"
	"lister/internal/queue"
)

// Dispatcher is the slice of the dispatch engine the daemon drives.
type Dispatcher interface {
	ProcessDue(ctx context.Context, platform, accountID string, batchSize int) (dispatch.Summary, error)
}

// Daemon polls for due items inside business hours and hands them to the
// dispatcher. The loop is cooperative: cancellation is checked between
// iterations, never mid-call.
type Daemon struct {
	cfg        *config.Config
	account    config.Account
	store      *queue.Store
	dispatcher Dispatcher
	logger     *slog.Logger

	hours       config.BusinessHours
	interval    time.Duration
	batchSize   int
	statusEvery int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures optional Daemon behavior.
type Option func(*Daemon)

// WithClock overrides the time source (used in tests).
func WithClock(now func() time.Time) Option {
	return func(d *Daemon) { d.now = now }
}

// WithSleep overrides the blocking pause between iterations (used in
// tests).
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Daemon) { d.sleep = sleep }
}

// New constructs a daemon for one account. Interval, batch size, and
// business hours resolve through the account's overrides.
func New(cfg *config.Config, account config.Account, store *queue.Store, dispatcher Dispatcher, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || dispatcher == nil || logger == nil {
		return nil, errors.New("daemon requires config, store, dispatcher, and logger")
	}
	d := &Daemon{
		cfg:        cfg,
		account:    account,
		store:      store,
		dispatcher: dispatcher,
		logger: logging.NewComponentLogger(logger, "daemon").With(
			logging.String(logging.FieldPlatform, account.Platform),
			logging.String(logging.FieldAccountID, account.ID),
		),
		hours:       cfg.AccountBusinessHours(account),
		interval:    time.Duration(cfg.AccountInterval(account)) * time.Second,
		batchSize:   cfg.AccountBatchSize(account),
		statusEvery: cfg.Daemon.StatusEveryTick,
		now:         time.Now,
		sleep:       sleepContext,
	}
	if d.interval <= 0 {
		d.interval = time.Minute
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run executes the poll loop until ctx is cancelled. A cancelled context
// is a normal shutdown, not an error.
func (d *Daemon) Run(ctx context.Context) error {
	d.logger.Info("daemon started",
		logging.Int("interval_seconds", int(d.interval/time.Second)),
		logging.Int("batch_size", d.batchSize),
		logging.Int("start_hour", d.hours.StartHour),
		logging.Int("end_hour", d.hours.EndHour),
	)

	tick := 0
	for {
		if err := ctx.Err(); err != nil {
			d.logger.Info("daemon stopping")
			return nil
		}

		if d.hours.Contains(d.now().Hour()) {
			d.runOnce(ctx)
		} else {
			d.logger.Debug("outside business hours, idle")
		}

		tick++
		if d.statusEvery > 0 && tick%d.statusEvery == 0 {
			d.logSnapshot(ctx)
		}

		if err := d.sleep(ctx, d.interval); err != nil {
			d.logger.Info("daemon stopping")
			return nil
		}
	}
}

// runOnce performs one dispatch pass. The pass runs detached from the
// loop's cancellation so an upload already in flight completes during
// shutdown.
func (d *Daemon) runOnce(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)
	summary, err := d.dispatcher.ProcessDue(runCtx, d.account.Platform, d.account.ID, d.batchSize)
	if err != nil {
		d.logger.Error("dispatch pass failed", logging.Error(err))
		return
	}
	if summary.Processed > 0 {
		d.logger.Info("dispatch pass complete",
			logging.Int("processed", summary.Processed),
			logging.Int("succeeded", summary.Succeeded),
			logging.Int("failed", summary.Failed),
		)
	}
}

func (d *Daemon) logSnapshot(ctx context.Context) {
	stats, err := d.store.Stats(ctx, d.account.Platform)
	if err != nil {
		d.logger.Warn("queue snapshot failed", logging.Error(err))
		return
	}
	d.logger.Info("queue snapshot",
		logging.Int("pending", stats[queue.StatusPending]),
		logging.Int("scheduled", stats[queue.StatusScheduled]),
		logging.Int("uploading", stats[queue.StatusUploading]),
		logging.Int("success", stats[queue.StatusSuccess]),
		logging.Int("failed", stats[queue.StatusFailed]),
	)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
