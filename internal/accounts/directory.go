// Package accounts exposes the seller account directory: which accounts are
// active per platform and how much daily upload quota each has left. The
// directory is read-only to the rest of the pipeline.
package accounts

import (
	"context"
	"time"

	"lister/internal/config"
)

// UploadCounter reports how many uploads an account already has assigned
// for a calendar day. Implemented by the queue store.
type UploadCounter interface {
	UploadCountByAccountAndDate(ctx context.Context, platform, accountID string, day time.Time) (int, error)
}

// Directory answers account and quota questions from configuration plus
// queue counters.
type Directory struct {
	cfg     *config.Config
	counter UploadCounter
}

// NewDirectory constructs a directory over the given config and counter.
func NewDirectory(cfg *config.Config, counter UploadCounter) *Directory {
	return &Directory{cfg: cfg, counter: counter}
}

// Active returns the active accounts configured for a platform.
func (d *Directory) Active(platform string) []config.Account {
	var out []config.Account
	for _, account := range d.cfg.AccountsForPlatform(platform) {
		if account.Active {
			out = append(out, account)
		}
	}
	return out
}

// Get looks up one account by platform and id.
func (d *Directory) Get(platform, id string) (config.Account, bool) {
	for _, account := range d.cfg.AccountsForPlatform(platform) {
		if account.ID == id {
			return account, true
		}
	}
	return config.Account{}, false
}

// Remaining returns the unassigned upload quota for an account on a day.
// Never negative.
func (d *Directory) Remaining(ctx context.Context, account config.Account, day time.Time) (int, error) {
	used, err := d.counter.UploadCountByAccountAndDate(ctx, account.Platform, account.ID, day)
	if err != nil {
		return 0, err
	}
	remaining := account.DailyUploadLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
