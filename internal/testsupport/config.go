package testsupport

import (
	"path/filepath"
	"testing"

	"lister/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Accounts = []config.Account{
		{ID: "main", Platform: "base", DailyUploadLimit: 100, Active: true},
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return &cfg
}

// WithAccounts replaces the configured accounts on the test config.
func WithAccounts(accounts ...config.Account) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Accounts = accounts
	}
}

// WithBusinessHours overrides the global dispatch window.
func WithBusinessHours(start, end int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.BusinessHours = config.BusinessHours{StartHour: start, EndHour: end}
	}
}
