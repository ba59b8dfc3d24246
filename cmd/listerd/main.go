// Command listerd runs the upload daemon for one (platform, account)
// pair. The lister manager spawns one listerd per active account; running
// it by hand is useful for debugging a single account.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"lister/internal/config"
	"lister/internal/daemon"
	"lister/internal/dispatch"
	"lister/internal/listings"
	"lister/internal/logging"
	"lister/internal/queue"
	"lister/internal/uploader"
)

func main() {
	var (
		platformFlag = flag.String("platform", "", "marketplace platform to serve")
		accountFlag  = flag.String("account", "", "seller account id to serve")
		configFlag   = flag.String("config", "", "configuration file path")
	)
	flag.Parse()

	if *platformFlag == "" || *accountFlag == "" {
		fmt.Fprintln(os.Stderr, "usage: listerd --platform PLATFORM --account ACCOUNT [--config PATH]")
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, _, _, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	account, ok := findAccount(cfg, *platformFlag, *accountFlag)
	if !ok {
		log.Fatalf("no active %s account %q in configuration", *platformFlag, *accountFlag)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		log.Fatalf("open queue store: %v", err)
	}
	defer store.Close()

	catalog, err := listings.Open(cfg)
	if err != nil {
		log.Fatalf("open listings catalog: %v", err)
	}
	defer catalog.Close()

	uploader.RegisterDefaults()
	up, err := uploader.New(account.Platform, cfg, account, logger)
	if err != nil {
		log.Fatalf("build uploader: %v", err)
	}

	engine := dispatch.NewEngine(cfg, store, catalog, up, logger)
	d, err := daemon.New(cfg, account, store, engine, logger)
	if err != nil {
		log.Fatalf("create daemon: %v", err)
	}

	if err := d.Run(ctx); err != nil {
		log.Fatalf("daemon: %v", err)
	}
}

func findAccount(cfg *config.Config, platform, accountID string) (config.Account, bool) {
	for _, account := range cfg.AccountsForPlatform(platform) {
		if account.ID == accountID && account.Active {
			return account, true
		}
	}
	return config.Account{}, false
}
