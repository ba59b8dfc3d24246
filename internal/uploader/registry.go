package uploader

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"lister/internal/config"
)

// Factory builds an Uploader for one account on a marketplace.
type Factory func(cfg *config.Config, account config.Account, logger *slog.Logger) (Uploader, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register installs a factory for a platform key. Registration happens
// explicitly at startup so the supported platform set stays auditable;
// re-registering a key replaces the previous factory.
func Register(platform string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[platform] = factory
}

// New resolves the factory for platform and builds an uploader bound to
// the account.
func New(platform string, cfg *config.Config, account config.Account, logger *slog.Logger) (Uploader, error) {
	registryMu.RLock()
	factory, ok := registry[platform]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no uploader registered for platform %q (registered: %v)", platform, Registered())
	}
	return factory(cfg, account, logger)
}

// Registered returns the sorted platform keys currently installed.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	keys := make([]string, 0, len(registry))
	for key := range registry {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// RegisterDefaults installs the built-in marketplace uploaders. Called
// once from each binary's startup path; the full platform set is visible
// right here.
func RegisterDefaults() {
	Register(PlatformBASE, NewBase)
	Register("mercari", newStubFactory("mercari"))
	Register("rakuma", newStubFactory("rakuma"))
}
