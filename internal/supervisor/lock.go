// Package supervisor owns the lister manager process: a lock-guarded
// parent that spawns one listerd process per (platform, account) pair
// and restarts the ones that die.
package supervisor

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	"lister/internal/logging"
)

// Lock is the manager's single-instance guard: an flock-ed file holding
// the supervisor PID.
type Lock struct {
	path  string
	flock *flock.Flock
}

// AcquireLock takes the manager lock. A lock file left by a crashed
// manager (its PID no longer alive) is removed and re-acquired; a live
// PID aborts with an error naming it.
func AcquireLock(path string, logger *slog.Logger) (*Lock, error) {
	if pid, ok := ReadLockPID(path); ok {
		if pidAlive(pid) {
			return nil, fmt.Errorf("lister manager already running (pid %d); stop it with 'lister manager stop'", pid)
		}
		logger.Warn("removing stale manager lock",
			logging.Int(logging.FieldPID, pid),
			logging.String("lock", path),
		)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale lock: %w", err)
		}
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire manager lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("manager lock %s is held by another process", path)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = fl.Unlock()
		return nil, fmt.Errorf("write manager lock: %w", err)
	}
	return &Lock{path: path, flock: fl}, nil
}

// Release drops the lock and removes the file.
func (l *Lock) Release() error {
	if l == nil {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release manager lock: %w", err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove manager lock: %w", err)
	}
	return nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// ReadLockPID reads the PID stored in a manager lock file. ok is false
// when the file is missing or holds no parseable PID.
func ReadLockPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
