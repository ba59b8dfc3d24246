package main

import (
	"log/slog"
	"strings"
	"sync"

	"lister/internal/accounts"
	"lister/internal/config"
	"lister/internal/listings"
	"lister/internal/logging"
	"lister/internal/queue"
	"lister/internal/schedule"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolvedPath, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolvedPath
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.loggerOnce.Do(func() {
		c.logger, c.loggerErr = logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
		})
	})
	return c.logger, c.loggerErr
}

// withStore opens the queue store for one command invocation.
func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withManager wires the full enqueue stack: store, catalog, directory,
// and the schedule manager.
func (c *commandContext) withManager(fn func(*config.Config, *queue.Store, *schedule.Manager) error) error {
	logger, err := c.ensureLogger()
	if err != nil {
		return err
	}
	return c.withStore(func(cfg *config.Config, store *queue.Store) error {
		catalog, err := listings.Open(cfg)
		if err != nil {
			return err
		}
		defer catalog.Close()

		directory := accounts.NewDirectory(cfg, store)
		manager := schedule.NewManager(cfg, store, catalog, directory, logger)
		return fn(cfg, store, manager)
	})
}
