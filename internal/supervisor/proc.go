package supervisor

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// daemonBinary is the child process name the supervisor spawns and scans
// for in the process table.
const daemonBinary = "listerd"

// pidAlive probes a PID with signal 0. EPERM means the process exists but
// belongs to another user, which still counts as alive.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

// daemonProcess is one listerd process found in the OS process table.
type daemonProcess struct {
	pid       int
	platform  string
	accountID string
}

func (p daemonProcess) key() string {
	return p.platform + "/" + p.accountID
}

// findDaemonProcesses scans /proc for running listerd processes and
// returns their (platform, account) assignments. Unreadable entries are
// skipped; processes come and go during the scan.
func findDaemonProcesses() ([]daemonProcess, error) {
	entries, err := os.ReadDir("/proc")
	if err != nil {
		return nil, err
	}

	var procs []daemonProcess
	self := os.Getpid()
	for _, entry := range entries {
		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}
		data, err := os.ReadFile(filepath.Join("/proc", entry.Name(), "cmdline"))
		if err != nil {
			continue
		}
		args := splitCmdline(data)
		platform, accountID, ok := matchDaemonArgs(args)
		if !ok {
			continue
		}
		procs = append(procs, daemonProcess{pid: pid, platform: platform, accountID: accountID})
	}
	return procs, nil
}

func splitCmdline(data []byte) []string {
	parts := strings.Split(string(data), "\x00")
	args := parts[:0]
	for _, part := range parts {
		if part != "" {
			args = append(args, part)
		}
	}
	return args
}

// matchDaemonArgs recognizes a listerd invocation and extracts its
// platform and account flags. Both "--flag value" and "--flag=value"
// spellings occur depending on who spawned the process.
func matchDaemonArgs(args []string) (platform, accountID string, ok bool) {
	if len(args) == 0 || filepath.Base(args[0]) != daemonBinary {
		return "", "", false
	}
	for i := 1; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--platform" && i+1 < len(args):
			platform = args[i+1]
			i++
		case strings.HasPrefix(arg, "--platform="):
			platform = strings.TrimPrefix(arg, "--platform=")
		case arg == "--account" && i+1 < len(args):
			accountID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--account="):
			accountID = strings.TrimPrefix(arg, "--account=")
		}
	}
	if platform == "" || accountID == "" {
		return "", "", false
	}
	return platform, accountID, true
}
