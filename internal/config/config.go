package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Queue contains enqueue and scheduling defaults.
type Queue struct {
	DefaultPriority int `toml:"default_priority"`
	HourlyLimit     int `toml:"hourly_limit"`
}

// Dispatch contains upload execution policy.
type Dispatch struct {
	RateLimitSeconds float64 `toml:"rate_limit_seconds"`
	MaxRetries       int     `toml:"max_retries"`
	BatchSize        int     `toml:"batch_size"`
}

// Daemon contains per-account daemon loop timing.
type Daemon struct {
	IntervalSeconds int `toml:"interval_seconds"`
	StatusEveryTick int `toml:"status_every_ticks"`
}

// Supervisor contains multi-account process supervision settings.
type Supervisor struct {
	CheckIntervalSeconds int `toml:"check_interval_seconds"`
	StopGraceSeconds     int `toml:"stop_grace_seconds"`
}

// BusinessHours is the default dispatch window applied when neither the
// platform nor the account overrides it.
type BusinessHours struct {
	StartHour int `toml:"start_hour"`
	EndHour   int `toml:"end_hour"`
}

// Width returns the window size in hours.
func (b BusinessHours) Width() int {
	return b.EndHour - b.StartHour
}

// Contains reports whether hour falls inside the window.
func (b BusinessHours) Contains(hour int) bool {
	return hour >= b.StartHour && hour < b.EndHour
}

// Platform describes one configured marketplace.
type Platform struct {
	Enabled    bool   `toml:"enabled"`
	APIBaseURL string `toml:"api_base_url"`
	APIToken   string `toml:"api_token"`
}

// Account describes one seller account on a platform.
type Account struct {
	ID               string `toml:"id"`
	Platform         string `toml:"platform"`
	DailyUploadLimit int    `toml:"daily_upload_limit"`
	Active           bool   `toml:"active"`
	APIToken         string `toml:"api_token"`

	// Optional per-account overrides; zero values fall back to the
	// global daemon/business-hours settings.
	StartHour       int `toml:"start_hour"`
	EndHour         int `toml:"end_hour"`
	IntervalSeconds int `toml:"interval_seconds"`
	BatchSize       int `toml:"batch_size"`
}

// Logging contains log output configuration.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration for the listing pipeline.
type Config struct {
	Paths         Paths               `toml:"paths"`
	Queue         Queue               `toml:"queue"`
	Dispatch      Dispatch            `toml:"dispatch"`
	Daemon        Daemon              `toml:"daemon"`
	Supervisor    Supervisor          `toml:"supervisor"`
	BusinessHours BusinessHours       `toml:"business_hours"`
	Logging       Logging             `toml:"logging"`
	Platforms     map[string]Platform `toml:"platforms"`
	Accounts      []Account           `toml:"accounts"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/lister/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("lister.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	for name, platform := range c.Platforms {
		platform.APIBaseURL = strings.TrimRight(strings.TrimSpace(platform.APIBaseURL), "/")
		c.Platforms[name] = platform
	}
	for i := range c.Accounts {
		c.Accounts[i].ID = strings.TrimSpace(c.Accounts[i].ID)
		c.Accounts[i].Platform = strings.ToLower(strings.TrimSpace(c.Accounts[i].Platform))
	}
	return nil
}

// EnsureDirectories creates the directories required for operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the sqlite database location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.DataDir, "queue.db")
}

// LockFilePath returns the supervisor lock file location.
func (c *Config) LockFilePath() string {
	return filepath.Join(c.Paths.DataDir, "lister-manager.lock")
}

// DaemonLogPath returns the per-account daemon log file location.
func (c *Config) DaemonLogPath(platform, accountID string) string {
	return filepath.Join(c.Paths.LogDir, fmt.Sprintf("listerd-%s-%s.log", platform, accountID))
}

// AccountsForPlatform returns all configured accounts on one platform.
func (c *Config) AccountsForPlatform(platform string) []Account {
	var out []Account
	for _, account := range c.Accounts {
		if account.Platform == platform {
			out = append(out, account)
		}
	}
	return out
}

// PlatformNames returns the enabled platform names in stable order.
func (c *Config) PlatformNames() []string {
	names := make([]string, 0, len(c.Platforms))
	for name, platform := range c.Platforms {
		if platform.Enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// AccountBusinessHours resolves the dispatch window for an account,
// falling back to the global default when the account has no override.
func (c *Config) AccountBusinessHours(account Account) BusinessHours {
	if account.StartHour != 0 || account.EndHour != 0 {
		return BusinessHours{StartHour: account.StartHour, EndHour: account.EndHour}
	}
	return c.BusinessHours
}

// AccountInterval resolves the daemon poll interval for an account in seconds.
func (c *Config) AccountInterval(account Account) int {
	if account.IntervalSeconds > 0 {
		return account.IntervalSeconds
	}
	return c.Daemon.IntervalSeconds
}

// AccountBatchSize resolves the dispatch batch size for an account.
func (c *Config) AccountBatchSize(account Account) int {
	if account.BatchSize > 0 {
		return account.BatchSize
	}
	return c.Dispatch.BatchSize
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
