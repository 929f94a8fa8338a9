package sidecar

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// PidRecord is persisted while a helper runs so the next launch can reap it
// if the application died without running its shutdown sequence.
type PidRecord struct {
	Pid       int    `json:"pid"`
	Path      string `json:"path"`
	LaunchID  string `json:"launch_id"`
	StartedAt string `json:"started_at"`
}

func WritePidfile(path string, rec PidRecord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func ReadPidfile(path string) (PidRecord, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return PidRecord{}, err
	}
	var rec PidRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return PidRecord{}, err
	}
	if rec.Pid <= 0 || rec.Path == "" {
		return PidRecord{}, errors.New("invalid pidfile record")
	}
	return rec, nil
}

func RemovePidfile(path string) error {
	err := os.Remove(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// ReapOrphan terminates the helper recorded in the pidfile if it is still
// running from the same executable. It reports whether a process was reaped.
// The pidfile is always removed; an unreadable one is treated as stale.
func ReapOrphan(pidfile string, timeout time.Duration) (bool, error) {
	defer RemovePidfile(pidfile)

	rec, err := ReadPidfile(pidfile)
	if err != nil {
		return false, nil
	}

	pid := int32(rec.Pid) //nolint:gosec // pids fit in int32
	exists, err := process.PidExists(pid)
	if err != nil || !exists {
		return false, nil
	}
	p, err := process.NewProcess(pid)
	if err != nil {
		return false, nil
	}
	if !runsPath(p, rec.Path) {
		// The pid was reused by an unrelated program.
		return false, nil
	}

	if err := terminateOrphan(p); err != nil && stillRunning(p) {
		if kerr := killOrphan(p); kerr != nil && stillRunning(p) {
			return false, fmt.Errorf("reap orphan pid=%d: %w", rec.Pid, kerr)
		}
	}
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if !stillRunning(p) {
			return true, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	if err := killOrphan(p); err != nil && stillRunning(p) {
		return true, fmt.Errorf("kill orphan pid=%d: %w", rec.Pid, err)
	}
	return true, nil
}

func stillRunning(p *process.Process) bool {
	running, err := p.IsRunning()
	return err == nil && running
}

// runsPath matches the executable, or the script argument when the helper is
// run through an interpreter named in its shebang line.
func runsPath(p *process.Process, path string) bool {
	if exe, err := p.Exe(); err == nil && samePath(exe, path) {
		return true
	}
	args, err := p.CmdlineSlice()
	if err != nil {
		return false
	}
	for i := 0; i < len(args) && i < 2; i++ {
		if samePath(args[i], path) {
			return true
		}
	}
	return false
}

func samePath(a, b string) bool {
	a = canonicalPath(a)
	b = canonicalPath(b)
	if runtime.GOOS == "windows" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

func canonicalPath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		p = resolved
	}
	return filepath.Clean(p)
}
