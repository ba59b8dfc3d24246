package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lister/internal/config"
	"lister/internal/dispatch"
	"lister/internal/listings"
	"lister/internal/queue"
	"lister/internal/uploader"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Run uploads by hand",
	}
	uploadCmd.AddCommand(newUploadRunCommand(ctx))
	return uploadCmd
}

func newUploadRunCommand(ctx *commandContext) *cobra.Command {
	var (
		platformFlag  string
		accountFlag   string
		batchSizeFlag int
		rateLimitFlag float64
		forceFlag     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Dispatch due items immediately",
		Long: "Runs one dispatch pass outside the daemons, e.g. for catch-up\n" +
			"after downtime. --force processes pending items regardless of\n" +
			"their scheduled time.",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				catalog, err := listings.Open(cfg)
				if err != nil {
					return err
				}
				defer catalog.Close()

				targets := cfg.AccountsForPlatform(platformFlag)
				if accountFlag != "" {
					targets = filterAccount(targets, accountFlag)
					if len(targets) == 0 {
						return fmt.Errorf("no %s account %q in configuration", platformFlag, accountFlag)
					}
				}

				uploader.RegisterDefaults()
				out := cmd.OutOrStdout()
				var total dispatch.Summary
				for _, account := range targets {
					if !account.Active {
						continue
					}
					up, err := uploader.New(platformFlag, cfg, account, logger)
					if err != nil {
						return err
					}

					batchSize := batchSizeFlag
					if batchSize <= 0 {
						batchSize = cfg.AccountBatchSize(account)
					}
					var opts []dispatch.Option
					if cmd.Flags().Changed("rate-limit") {
						opts = append(opts, dispatch.WithRateLimit(time.Duration(rateLimitFlag*float64(time.Second))))
					}
					engine := dispatch.NewEngine(cfg, store, catalog, up, logger, opts...)

					var summary dispatch.Summary
					if forceFlag {
						summary, err = engine.ProcessPending(cmd.Context(), platformFlag, account.ID, batchSize)
					} else {
						summary, err = engine.ProcessDue(cmd.Context(), platformFlag, account.ID, batchSize)
					}
					if err != nil {
						return err
					}
					if summary.Processed > 0 {
						fmt.Fprintf(out, "%s/%s: %d processed, %d succeeded, %d failed\n",
							displayPlatform(platformFlag), account.ID,
							summary.Processed, summary.Succeeded, summary.Failed)
					}
					total.Processed += summary.Processed
					total.Succeeded += summary.Succeeded
					total.Failed += summary.Failed
				}

				if total.Processed == 0 {
					fmt.Fprintln(out, "Nothing to dispatch")
				} else {
					fmt.Fprintf(out, "Total: %d processed, %d succeeded, %d failed\n",
						total.Processed, total.Succeeded, total.Failed)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&platformFlag, "platform", "p", "base", "Target marketplace platform")
	cmd.Flags().StringVarP(&accountFlag, "account", "a", "", "Run only this account (default: all active)")
	cmd.Flags().IntVar(&batchSizeFlag, "batch-size", 0, "Max items per account (default from config)")
	cmd.Flags().Float64Var(&rateLimitFlag, "rate-limit", 0, "Seconds to pause between marketplace calls")
	cmd.Flags().BoolVar(&forceFlag, "force", false, "Process pending items regardless of schedule")
	return cmd
}

func filterAccount(accounts []config.Account, id string) []config.Account {
	for _, account := range accounts {
		if account.ID == id {
			return []config.Account{account}
		}
	}
	return nil
}
