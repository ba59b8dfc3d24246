package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"lister/internal/config"
	"lister/internal/queue"
	"lister/internal/schedule"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Manage the upload queue",
	}

	queueCmd.AddCommand(newQueueAddCommand(ctx))
	queueCmd.AddCommand(newQueueCheckCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))

	return queueCmd
}

func newQueueAddCommand(ctx *commandContext) *cobra.Command {
	var (
		platformFlag    string
		accountFlag     string
		priorityFlag    int
		distributeFlag  bool
		startFlag       string
		hourlyLimitFlag int
		autoAccounts    bool
		fileFlag        string
		yesFlag         bool
	)

	cmd := &cobra.Command{
		Use:   "add [ASIN...]",
		Short: "Enqueue items for upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			asins := append([]string(nil), args...)
			if fileFlag != "" {
				fromFile, err := readASINFile(fileFlag)
				if err != nil {
					return err
				}
				asins = append(asins, fromFile...)
			}
			if len(asins) == 0 {
				return fmt.Errorf("no ASINs given (pass them as arguments or via --file)")
			}

			startTime, err := parseStartTime(startFlag)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(asins) > 10 && !yesFlag {
				prompt := fmt.Sprintf("Enqueue %d items on %s?", len(asins), displayPlatform(platformFlag))
				if !confirm(cmd.InOrStdin(), out, prompt) {
					fmt.Fprintln(out, "Aborted (pass --yes to skip confirmation)")
					return nil
				}
			}

			return ctx.withManager(func(cfg *config.Config, _ *queue.Store, manager *schedule.Manager) error {
				if len(asins) == 1 && !distributeFlag && !autoAccounts {
					added, err := manager.Add(cmd.Context(), schedule.AddRequest{
						ASIN:        asins[0],
						Platform:    platformFlag,
						AccountID:   accountFlag,
						Priority:    priorityFlag,
						ScheduledAt: startTime,
					})
					if err != nil {
						return err
					}
					if !added {
						fmt.Fprintf(out, "Skipped %s: already queued/listed or no quota remaining\n", asins[0])
						return nil
					}
					fmt.Fprintf(out, "Enqueued %s on %s\n", asins[0], displayPlatform(platformFlag))
					return nil
				}

				result, err := manager.AddBatch(cmd.Context(), schedule.BatchRequest{
					ASINs:                  asins,
					Platform:               platformFlag,
					AccountID:              accountFlag,
					Priority:               priorityFlag,
					DistributeTime:         distributeFlag,
					StartTime:              startTime,
					HourlyLimit:            hourlyLimitFlag,
					AutoDistributeAccounts: autoAccounts,
				})
				if err != nil {
					return err
				}
				printBatchResult(out, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&platformFlag, "platform", "p", "base", "Target marketplace platform")
	cmd.Flags().StringVarP(&accountFlag, "account", "a", "", "Assign all items to one account (default: auto-select)")
	cmd.Flags().IntVar(&priorityFlag, "priority", 0, "Queue priority (higher dispatches first)")
	cmd.Flags().BoolVar(&distributeFlag, "distribute", false, "Spread scheduled times across business hours")
	cmd.Flags().StringVar(&startFlag, "start", "", "Schedule start time (RFC3339 or '2006-01-02 15:04')")
	cmd.Flags().IntVar(&hourlyLimitFlag, "hourly-limit", 0, "Max items per hour when distributing (default from config)")
	cmd.Flags().BoolVar(&autoAccounts, "auto-accounts", false, "Split the batch across accounts by remaining quota")
	cmd.Flags().StringVar(&fileFlag, "file", "", "Read ASINs from a file, one per line")
	cmd.Flags().BoolVarP(&yesFlag, "yes", "y", false, "Skip the confirmation prompt")
	return cmd
}

func printBatchResult(out io.Writer, result schedule.BatchResult) {
	fmt.Fprintf(out, "Batch %s: %d requested, %d enqueued, %d skipped, %d truncated, %d failed\n",
		result.BatchID, result.Requested, result.Succeeded, result.Skipped, result.Truncated, result.Failed)
	if !result.WindowStart.IsZero() {
		fmt.Fprintf(out, "Scheduled window: %s .. %s\n",
			formatTimestamp(result.WindowStart), formatTimestamp(result.WindowEnd))
	}
	if len(result.PerAccount) > 0 {
		rows := make([][]string, 0, len(result.PerAccount))
		for accountID, count := range result.PerAccount {
			rows = append(rows, []string{accountID, strconv.Itoa(count)})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0] < rows[j][0] })
		fmt.Fprintln(out, renderTable(
			[]string{"ACCOUNT", "ITEMS"},
			rows,
			[]columnAlignment{alignLeft, alignRight},
		))
	}
}

func newQueueCheckCommand(ctx *commandContext) *cobra.Command {
	var (
		platformFlag string
		statusFlag   string
		limitFlag    int
		showDueFlag  bool
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Inspect queue contents and counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()

				stats, err := store.Stats(cmd.Context(), platformFlag)
				if err != nil {
					return err
				}
				statRows := make([][]string, 0, len(queue.AllStatuses()))
				for _, status := range queue.AllStatuses() {
					if count := stats[status]; count > 0 {
						statRows = append(statRows, []string{string(status), strconv.Itoa(count)})
					}
				}
				if len(statRows) == 0 {
					fmt.Fprintf(out, "Queue for %s is empty\n", displayPlatform(platformFlag))
					return nil
				}
				fmt.Fprintln(out, renderTable(
					[]string{"STATUS", "COUNT"},
					statRows,
					[]columnAlignment{alignLeft, alignRight},
				))

				var items []*queue.Item
				switch {
				case showDueFlag:
					items, err = store.DueItems(cmd.Context(), platformFlag, "", time.Now().UTC(), limitFlag)
				case statusFlag != "":
					statuses, parseErr := parseStatuses(statusFlag)
					if parseErr != nil {
						return parseErr
					}
					items, err = store.List(cmd.Context(), platformFlag, limitFlag, statuses...)
				default:
					items, err = store.List(cmd.Context(), platformFlag, limitFlag)
				}
				if err != nil {
					return err
				}
				if len(items) == 0 {
					return nil
				}

				rows := make([][]string, 0, len(items))
				for _, item := range items {
					detail := item.ErrorMessage
					if detail == "" {
						detail = item.ResultData
					}
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						item.ASIN,
						item.AccountID,
						string(item.Status),
						strconv.Itoa(item.Priority),
						formatTimestamp(item.ScheduledAt),
						truncateString(detail, 40),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "ASIN", "ACCOUNT", "STATUS", "PRI", "SCHEDULED", "DETAIL"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&platformFlag, "platform", "p", "base", "Target marketplace platform")
	cmd.Flags().StringVarP(&statusFlag, "status", "s", "", "Filter by status (comma-separated)")
	cmd.Flags().IntVarP(&limitFlag, "limit", "n", 50, "Max items to show")
	cmd.Flags().BoolVar(&showDueFlag, "show-due", false, "Show only items due for dispatch right now")
	return cmd
}

func parseStatuses(value string) ([]queue.Status, error) {
	parts := strings.Split(value, ",")
	statuses := make([]queue.Status, 0, len(parts))
	for _, part := range parts {
		status, ok := queue.ParseStatus(strings.TrimSpace(part))
		if !ok {
			return nil, fmt.Errorf("unknown status %q", part)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	var platformFlag string

	cmd := &cobra.Command{
		Use:   "retry [ID...]",
		Short: "Requeue failed items back to pending",
		Long: "Failed items never re-enter the queue on their own; this is the\n" +
			"explicit operator requeue. With no IDs, every failed item on the\n" +
			"platform is requeued.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				moved, err := store.RequeueFailed(cmd.Context(), platformFlag, ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed item(s)\n", moved)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&platformFlag, "platform", "p", "base", "Target marketplace platform")
	return cmd
}
