package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"lister/internal/supervisor"
)

func newManagerCommand(ctx *commandContext) *cobra.Command {
	managerCmd := &cobra.Command{
		Use:   "manager",
		Short: "Control the multi-account upload manager",
	}

	managerCmd.AddCommand(newManagerStartCommand(ctx))
	managerCmd.AddCommand(newManagerStopCommand(ctx))
	managerCmd.AddCommand(newManagerStatusCommand(ctx))
	managerCmd.AddCommand(newManagerRestartCommand(ctx))

	return managerCmd
}

func newManagerStartCommand(ctx *commandContext) *cobra.Command {
	var foreground bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start one upload daemon per active account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if foreground {
				return runSupervisor(ctx)
			}
			return startDetached(ctx, cmd)
		},
	}

	cmd.Flags().BoolVar(&foreground, "foreground", false, "Run the supervisor in the foreground")
	return cmd
}

// runSupervisor runs the supervision loop in this process until
// SIGINT/SIGTERM.
func runSupervisor(ctx *commandContext) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}

	sup, err := supervisor.New(cfg, ctx.configPath, logger)
	if err != nil {
		return err
	}

	runCtx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	return sup.Run(runCtx)
}

// startDetached re-invokes this binary with --foreground as a detached
// session leader, logging to the manager log file.
func startDetached(ctx *commandContext, cmd *cobra.Command) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if pid, ok := supervisor.ReadLockPID(cfg.LockFilePath()); ok && pidIsOurManager(pid) {
		return fmt.Errorf("lister manager already running (pid %d)", pid)
	}

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate own binary: %w", err)
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "lister-manager.log")
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open manager log: %w", err)
	}
	defer logFile.Close()

	managerArgs := []string{"manager", "start", "--foreground"}
	if ctx.configPath != "" {
		managerArgs = append(managerArgs, "--config", ctx.configPath)
	}
	child := exec.Command(self, managerArgs...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("start manager: %w", err)
	}
	// The child acquires the lock and runs on its own from here.
	_ = child.Process.Release()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Manager started (pid %d), logging to %s\n", child.Process.Pid, logPath)
	return nil
}

func pidIsOurManager(pid int) bool {
	return pid > 0 && syscall.Kill(pid, 0) == nil
}

func newManagerStopCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the manager and all upload daemons",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if err := supervisor.Stop(cfg, logger); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Manager stopped")
			return nil
		},
	}
}

func newManagerStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show manager and daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			managerPID, managerRunning, procs, err := supervisor.Status(cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if managerRunning {
				fmt.Fprintf(out, "Manager: running (pid %d)\n", managerPID)
			} else {
				fmt.Fprintln(out, "Manager: stopped")
			}

			if len(procs) == 0 {
				fmt.Fprintln(out, "No accounts configured")
				return nil
			}
			rows := make([][]string, 0, len(procs))
			for _, proc := range procs {
				state := "stopped"
				pid := "-"
				switch {
				case proc.Running:
					state = "running"
					pid = strconv.Itoa(proc.PID)
				case !proc.Active:
					state = "disabled"
				}
				rows = append(rows, []string{
					displayPlatform(proc.Platform),
					proc.AccountID,
					state,
					pid,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"PLATFORM", "ACCOUNT", "STATE", "PID"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newManagerRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Restart the manager and all upload daemons",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if err := supervisor.Stop(cfg, logger); err != nil {
				return err
			}
			// Give the old process tree a moment to disappear from /proc.
			time.Sleep(500 * time.Millisecond)
			return startDetached(ctx, cmd)
		},
	}
}
