package supervisor

import (
	"path/filepath"
	"testing"
	"time"

	"lister/internal/logging"
	"lister/internal/testsupport"
)

func newTestSupervisor(t *testing.T, execPath string) *Supervisor {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	s, err := New(cfg, filepath.Join(t.TempDir(), "lister.toml"), logging.NewNop(), WithExecutable(execPath))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.stopChildren)
	return s
}

// waitForReap polls restartDead until the child's exit has been reaped.
func waitForReap(t *testing.T, s *Supervisor, key string, want int) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		s.restartDead()
		if s.restarts[key] >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("restart count for %s never reached %d (got %d)", key, want, s.restarts[key])
}

func TestRestartDeadRespawnsExitedDaemon(t *testing.T) {
	s := newTestSupervisor(t, "/bin/true")
	account := s.cfg.Accounts[0]
	key := account.Platform + "/" + account.ID

	if err := s.spawn(account); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	waitForReap(t, s, key, 1)
	if _, ok := s.children[key]; !ok {
		t.Fatal("expected a replacement child after the restart")
	}
}

func TestRestartDeadRetriesAfterFailedRespawn(t *testing.T) {
	s := newTestSupervisor(t, "/bin/true")
	account := s.cfg.Accounts[0]
	key := account.Platform + "/" + account.ID

	if err := s.spawn(account); err != nil {
		t.Fatalf("spawn: %v", err)
	}

	// Break the binary path so the respawn fails once the child exits.
	s.execPath = filepath.Join(t.TempDir(), "missing-listerd")
	waitForReap(t, s, key, 1)
	if _, ok := s.children[key]; ok {
		t.Fatal("respawn with a missing binary must not produce a child")
	}
	if _, ok := s.pending[key]; !ok {
		t.Fatal("expected the account to stay queued for retry")
	}

	s.execPath = "/bin/true"
	s.restartDead()
	if _, ok := s.children[key]; !ok {
		t.Fatal("expected the next check to respawn the daemon")
	}
	if _, ok := s.pending[key]; ok {
		t.Fatal("expected the retry queue to drain after a successful spawn")
	}
}
