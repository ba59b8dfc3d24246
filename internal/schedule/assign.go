package schedule

import (
	"context"
	"fmt"
	"time"

	"lister/internal/config"
)

// accountQuota pairs an account with its remaining quota for the target day.
type accountQuota struct {
	account   config.Account
	remaining int
}

func (m *Manager) quotaViews(ctx context.Context, platform string, day time.Time) ([]accountQuota, error) {
	active := m.directory.Active(platform)
	views := make([]accountQuota, 0, len(active))
	for _, account := range active {
		remaining, err := m.directory.Remaining(ctx, account, day)
		if err != nil {
			return nil, fmt.Errorf("quota for account %s: %w", account.ID, err)
		}
		views = append(views, accountQuota{account: account, remaining: remaining})
	}
	return views, nil
}

// pickAccount selects the active account with the largest remaining quota.
// The second return is that remaining quota; ok is false when every account
// is saturated (or none is configured).
func (m *Manager) pickAccount(ctx context.Context, platform string, day time.Time) (config.Account, int, bool, error) {
	views, err := m.quotaViews(ctx, platform, day)
	if err != nil {
		return config.Account{}, 0, false, err
	}

	var best accountQuota
	found := false
	for _, view := range views {
		if view.remaining <= 0 {
			continue
		}
		if !found || view.remaining > best.remaining {
			best = view
			found = true
		}
	}
	if !found {
		return config.Account{}, 0, false, nil
	}
	return best.account, best.remaining, true, nil
}

// buildAllocationPool returns account ids repeated once per remaining quota
// slot, uniformly shuffled. Drawing the first n entries yields a
// capacity-weighted split across accounts.
func (m *Manager) buildAllocationPool(ctx context.Context, platform string, day time.Time) ([]string, error) {
	views, err := m.quotaViews(ctx, platform, day)
	if err != nil {
		return nil, err
	}

	var pool []string
	for _, view := range views {
		for i := 0; i < view.remaining; i++ {
			pool = append(pool, view.account.ID)
		}
	}
	m.rnd.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})
	return pool, nil
}
