//go:build unix

package sidecar

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

func gone(pid int) bool {
	p, err := process.NewProcess(int32(pid)) //nolint:gosec // test pid
	if err != nil {
		return true
	}
	st, err := p.Status()
	return err != nil || slices.Contains(st, process.Zombie)
}

func TestReapOrphanTerminatesProcessGroup(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "avva-core")
	body := "#!/bin/sh\nsleep 30 &\necho $! > child.pid\nwait\n"
	if err := os.WriteFile(script, []byte(body), 0o755); err != nil {
		t.Fatal(err)
	}
	cmd := exec.Command(script)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start orphan: %v", err)
	}
	go func() { _ = cmd.Wait() }()
	defer func() { _ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL) }()

	var child int
	deadline := time.Now().Add(3 * time.Second)
	for child == 0 && time.Now().Before(deadline) {
		if b, err := os.ReadFile(filepath.Join(dir, "child.pid")); err == nil {
			child, _ = strconv.Atoi(strings.TrimSpace(string(b)))
		}
		time.Sleep(20 * time.Millisecond)
	}
	if child == 0 {
		t.Fatal("orphan did not start its child")
	}

	p := filepath.Join(dir, "sidecar.pid")
	if err := WritePidfile(p, PidRecord{Pid: cmd.Process.Pid, Path: script, LaunchID: "previous"}); err != nil {
		t.Fatal(err)
	}
	reaped, err := ReapOrphan(p, 2*time.Second)
	if err != nil || !reaped {
		t.Fatalf("reaped=%v err=%v", reaped, err)
	}

	deadline = time.Now().Add(3 * time.Second)
	for !gone(child) {
		if time.Now().After(deadline) {
			t.Fatalf("child pid=%d of the orphan survived", child)
		}
		time.Sleep(50 * time.Millisecond)
	}
}
