package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"lister/internal/config"
	"lister/internal/logging"
)

// child is one spawned listerd process under supervision.
type child struct {
	account config.Account
	cmd     *exec.Cmd
	logFile *os.File
	done    chan error
}

func (c *child) key() string {
	return c.account.Platform + "/" + c.account.ID
}

func (c *child) exited() (error, bool) {
	select {
	case err := <-c.done:
		return err, true
	default:
		return nil, false
	}
}

// Supervisor spawns and restarts one listerd per (platform, account).
// Restarts are unconditional: a repeatedly crashing account daemon shows
// up in the restart counter rather than being backed off silently.
type Supervisor struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	execPath   string
	check      time.Duration
	grace      time.Duration

	children map[string]*child
	restarts map[string]int
	// pending holds (platform, account) pairs whose respawn failed;
	// they are retried on every liveness check until a spawn sticks.
	pending map[string]config.Account

	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures optional Supervisor behavior.
type Option func(*Supervisor)

// WithExecutable overrides the listerd binary path.
func WithExecutable(path string) Option {
	return func(s *Supervisor) { s.execPath = path }
}

// WithCheckInterval overrides the liveness check interval.
func WithCheckInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.check = d
		}
	}
}

// New constructs a supervisor. configPath is forwarded to every spawned
// daemon so the whole tree reads one configuration file.
func New(cfg *config.Config, configPath string, logger *slog.Logger, opts ...Option) (*Supervisor, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New("supervisor requires config and logger")
	}
	s := &Supervisor{
		cfg:        cfg,
		configPath: configPath,
		logger:     logging.NewComponentLogger(logger, "supervisor"),
		check:      time.Duration(cfg.Supervisor.CheckIntervalSeconds) * time.Second,
		grace:      time.Duration(cfg.Supervisor.StopGraceSeconds) * time.Second,
		children:   make(map[string]*child),
		restarts:   make(map[string]int),
		pending:    make(map[string]config.Account),
		sleep:      sleepContext,
	}
	if s.check <= 0 {
		s.check = time.Minute
	}
	if s.grace <= 0 {
		s.grace = 10 * time.Second
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.execPath == "" {
		path, err := locateDaemonBinary()
		if err != nil {
			return nil, err
		}
		s.execPath = path
	}
	return s, nil
}

// Run acquires the manager lock, spawns the daemon set, and supervises
// it until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	lock, err := AcquireLock(s.cfg.LockFilePath(), s.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			s.logger.Warn("lock release failed", logging.Error(err))
		}
	}()

	if err := s.spawnAll(); err != nil {
		s.stopChildren()
		return err
	}
	s.logger.Info("supervisor started",
		logging.Int("daemons", len(s.children)),
		logging.Int(logging.FieldPID, os.Getpid()),
	)

	for {
		if err := s.sleep(ctx, s.check); err != nil {
			break
		}
		s.restartDead()
	}

	s.stopChildren()
	s.logger.Info("supervisor stopped")
	return nil
}

// spawnAll launches a daemon per enabled platform and active account,
// skipping pairs already served by a process elsewhere on the host.
func (s *Supervisor) spawnAll() error {
	running, err := findDaemonProcesses()
	if err != nil {
		return fmt.Errorf("scan process table: %w", err)
	}
	alreadyRunning := make(map[string]int, len(running))
	for _, proc := range running {
		alreadyRunning[proc.key()] = proc.pid
	}

	for _, platform := range s.cfg.PlatformNames() {
		for _, account := range s.cfg.AccountsForPlatform(platform) {
			if !account.Active {
				continue
			}
			key := platform + "/" + account.ID
			if pid, ok := alreadyRunning[key]; ok {
				s.logger.Info("daemon already running elsewhere, skipping",
					logging.String(logging.FieldPlatform, platform),
					logging.String(logging.FieldAccountID, account.ID),
					logging.Int(logging.FieldPID, pid),
				)
				continue
			}
			if err := s.spawn(account); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Supervisor) spawn(account config.Account) error {
	logPath := s.cfg.DaemonLogPath(account.Platform, account.ID)
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open daemon log %s: %w", logPath, err)
	}

	cmd := exec.Command(s.execPath,
		"--platform", account.Platform,
		"--account", account.ID,
		"--config", s.configPath,
	)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return fmt.Errorf("start daemon for %s/%s: %w", account.Platform, account.ID, err)
	}

	c := &child{account: account, cmd: cmd, logFile: logFile, done: make(chan error, 1)}
	go func() {
		c.done <- cmd.Wait()
	}()
	s.children[c.key()] = c

	s.logger.Info("daemon started",
		logging.String(logging.FieldPlatform, account.Platform),
		logging.String(logging.FieldAccountID, account.ID),
		logging.Int(logging.FieldPID, cmd.Process.Pid),
		logging.String("log", logPath),
	)
	return nil
}

// restartDead reaps exited children and respawns them. Restarts are
// unconditional, and a failed respawn keeps the pair queued so the next
// check tries again; an account is never silently dropped from
// supervision.
func (s *Supervisor) restartDead() {
	for key, c := range s.children {
		exitErr, dead := c.exited()
		if !dead {
			continue
		}
		_ = c.logFile.Close()
		delete(s.children, key)
		s.restarts[key]++
		s.logger.Warn("daemon died, restarting",
			logging.String(logging.FieldPlatform, c.account.Platform),
			logging.String(logging.FieldAccountID, c.account.ID),
			logging.Int("restarts", s.restarts[key]),
			logging.Error(exitErr),
		)
		s.pending[key] = c.account
	}

	for key, account := range s.pending {
		if err := s.spawn(account); err != nil {
			s.logger.Error("daemon restart failed, retrying next check",
				logging.String(logging.FieldPlatform, account.Platform),
				logging.String(logging.FieldAccountID, account.ID),
				logging.Error(err),
			)
			continue
		}
		delete(s.pending, key)
	}
}

// stopChildren terminates every child: SIGTERM, a bounded grace wait,
// then SIGKILL for stragglers.
func (s *Supervisor) stopChildren() {
	for _, c := range s.children {
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Signal(unix.SIGTERM)
		}
	}

	deadline := time.Now().Add(s.grace)
	for key, c := range s.children {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		select {
		case <-c.done:
		case <-time.After(remaining):
			s.logger.Warn("daemon ignored SIGTERM, killing",
				logging.String(logging.FieldPlatform, c.account.Platform),
				logging.String(logging.FieldAccountID, c.account.ID),
			)
			_ = c.cmd.Process.Kill()
			<-c.done
		}
		_ = c.logFile.Close()
		delete(s.children, key)
	}
}

// ProcessStatus describes one expected daemon slot for status output.
type ProcessStatus struct {
	Platform  string
	AccountID string
	PID       int
	Running   bool
	Active    bool
}

// Status reports the expected daemon set against the OS-visible process
// table, so it works from any process, supervisor or not.
func Status(cfg *config.Config) (managerPID int, managerRunning bool, procs []ProcessStatus, err error) {
	if pid, ok := ReadLockPID(cfg.LockFilePath()); ok && pidAlive(pid) {
		managerPID = pid
		managerRunning = true
	}

	running, err := findDaemonProcesses()
	if err != nil {
		return 0, false, nil, fmt.Errorf("scan process table: %w", err)
	}
	byKey := make(map[string]daemonProcess, len(running))
	for _, proc := range running {
		byKey[proc.key()] = proc
	}

	for _, platform := range cfg.PlatformNames() {
		for _, account := range cfg.AccountsForPlatform(platform) {
			status := ProcessStatus{
				Platform:  platform,
				AccountID: account.ID,
				Active:    account.Active,
			}
			if proc, ok := byKey[platform+"/"+account.ID]; ok {
				status.PID = proc.pid
				status.Running = true
			}
			procs = append(procs, status)
		}
	}
	sort.Slice(procs, func(i, j int) bool {
		if procs[i].Platform != procs[j].Platform {
			return procs[i].Platform < procs[j].Platform
		}
		return procs[i].AccountID < procs[j].AccountID
	})
	return managerPID, managerRunning, procs, nil
}

// Stop terminates the manager and every listerd on the host: SIGTERM
// first, a grace wait, then SIGKILL for whatever survived. The lock file
// is removed so a fresh manager can start immediately.
func Stop(cfg *config.Config, logger *slog.Logger) error {
	log := logging.NewComponentLogger(logger, "supervisor")
	grace := time.Duration(cfg.Supervisor.StopGraceSeconds) * time.Second
	if grace <= 0 {
		grace = 10 * time.Second
	}

	targets := make(map[int]string)
	if pid, ok := ReadLockPID(cfg.LockFilePath()); ok && pidAlive(pid) {
		targets[pid] = "manager"
	}
	procs, err := findDaemonProcesses()
	if err != nil {
		return fmt.Errorf("scan process table: %w", err)
	}
	for _, proc := range procs {
		targets[proc.pid] = proc.key()
	}
	if len(targets) == 0 {
		log.Info("nothing to stop")
		return removeLockFile(cfg.LockFilePath())
	}

	for pid, name := range targets {
		log.Info("stopping process", logging.String("role", name), logging.Int(logging.FieldPID, pid))
		_ = unix.Kill(pid, unix.SIGTERM)
	}

	deadline := time.Now().Add(grace)
	for time.Now().Before(deadline) {
		allDead := true
		for pid := range targets {
			if pidAlive(pid) {
				allDead = false
				break
			}
		}
		if allDead {
			return removeLockFile(cfg.LockFilePath())
		}
		time.Sleep(200 * time.Millisecond)
	}

	for pid, name := range targets {
		if pidAlive(pid) {
			log.Warn("process ignored SIGTERM, killing",
				logging.String("role", name),
				logging.Int(logging.FieldPID, pid),
			)
			_ = unix.Kill(pid, unix.SIGKILL)
		}
	}
	return removeLockFile(cfg.LockFilePath())
}

func removeLockFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove manager lock: %w", err)
	}
	return nil
}

// locateDaemonBinary prefers a listerd next to the current executable,
// falling back to PATH.
func locateDaemonBinary() (string, error) {
	if self, err := os.Executable(); err == nil {
		sibling := filepath.Join(filepath.Dir(self), daemonBinary)
		if info, err := os.Stat(sibling); err == nil && !info.IsDir() {
			return sibling, nil
		}
	}
	path, err := exec.LookPath(daemonBinary)
	if err != nil {
		return "", fmt.Errorf("locate %s binary: %w", daemonBinary, err)
	}
	return path, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
