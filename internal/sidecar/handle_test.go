package sidecar

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

// writeHelper installs a shell script under the installed-layout name for the
// current platform and returns a descriptor pointing at it.
func writeHelper(t *testing.T, dir, body string) Descriptor {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("linux script-based test")
	}
	names, err := Candidates("avva-core", runtime.GOOS, runtime.GOARCH)
	if err != nil {
		t.Skipf("platform not bundled: %v", err)
	}
	p := filepath.Join(dir, names[0])
	if err := os.WriteFile(p, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write helper: %v", err)
	}
	return Descriptor{Name: "avva-core", Dir: dir}
}

func collect(t *testing.T, h *Handle, timeout time.Duration) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-h.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatalf("events not closed after %v; got %+v", timeout, out)
		}
	}
}

func TestSpawnReturnsBeforeHelperFinishes(t *testing.T) {
	d := writeHelper(t, t.TempDir(), "sleep 30")

	started := time.Now()
	h, err := Spawn(d)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Kill()

	if elapsed := time.Since(started); elapsed > 2*time.Second {
		t.Fatalf("Spawn blocked for %v", elapsed)
	}
	if h.Pid() <= 0 {
		t.Fatalf("pid=%d", h.Pid())
	}
	if !h.Running() {
		t.Fatal("helper should be running")
	}
	if h.ExitCode() != -1 {
		t.Fatalf("exit code while running=%d", h.ExitCode())
	}
}

func TestSpawnHelperExitingNonZero(t *testing.T) {
	d := writeHelper(t, t.TempDir(), "echo hello\necho oops >&2\nprintf partial\nexit 3")

	h, err := Spawn(d)
	if err != nil {
		t.Fatalf("Spawn must not wait on exit status: %v", err)
	}

	events := collect(t, h, 5*time.Second)
	var stdout, stderr []string
	var term *Event
	for i := range events {
		switch events[i].Kind {
		case EventStdout:
			stdout = append(stdout, events[i].Line)
		case EventStderr:
			stderr = append(stderr, events[i].Line)
		case EventTerminated:
			term = &events[i]
		}
	}
	if strings.Join(stdout, "|") != "hello|partial" {
		t.Fatalf("stdout=%v", stdout)
	}
	if len(stderr) != 1 || stderr[0] != "oops" {
		t.Fatalf("stderr=%v", stderr)
	}
	if term == nil || term.Code != 3 {
		t.Fatalf("terminated event=%+v", term)
	}
	if h.Running() || h.ExitCode() != 3 {
		t.Fatalf("running=%v code=%d", h.Running(), h.ExitCode())
	}
}

func TestSpawnIsNotIdempotent(t *testing.T) {
	d := writeHelper(t, t.TempDir(), "sleep 30")

	h1, err := Spawn(d)
	if err != nil {
		t.Fatalf("first Spawn: %v", err)
	}
	defer h1.Kill()
	h2, err := Spawn(d)
	if err != nil {
		t.Fatalf("second Spawn: %v", err)
	}
	defer h2.Kill()

	if h1.Pid() == h2.Pid() {
		t.Fatalf("expected two processes, both pid=%d", h1.Pid())
	}
}

func TestSpawnNonExecutableIsSpawnError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("exec bit is unix only")
	}
	dir := t.TempDir()
	names, err := Candidates("avva-core", runtime.GOOS, runtime.GOARCH)
	if err != nil {
		t.Skipf("platform not bundled: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, names[0]), []byte("#!/bin/sh\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = Spawn(Descriptor{Name: "avva-core", Dir: dir})
	var serr *SpawnError
	if !errors.As(err, &serr) {
		t.Fatalf("err=%v, want SpawnError", err)
	}
}

func TestStopKillsHelperIgnoringTerm(t *testing.T) {
	d := writeHelper(t, t.TempDir(), "trap '' TERM\nwhile true; do sleep 0.1; done")

	h, err := Spawn(d)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	// Let the shell install its trap.
	time.Sleep(200 * time.Millisecond)

	if err := h.Stop(300 * time.Millisecond); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if h.Running() {
		t.Fatal("helper still running after Stop")
	}
	if err := h.Stop(time.Second); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestStopGraceful(t *testing.T) {
	d := writeHelper(t, t.TempDir(), "trap 'exit 0' TERM\nwhile true; do sleep 0.1; done")

	h, err := Spawn(d)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	time.Sleep(200 * time.Millisecond)

	if err := h.Stop(5 * time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
}

func TestUnreadEventsAreDropped(t *testing.T) {
	d := writeHelper(t, t.TempDir(), "i=0\nwhile [ $i -lt 400 ]; do echo line $i; i=$((i+1)); done")

	h, err := Spawn(d)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("helper blocked on unread output")
	}
	if h.Dropped() == 0 {
		t.Fatal("expected dropped events when nobody reads")
	}
}

func TestTerminatedEventSurvivesFullBuffer(t *testing.T) {
	d := writeHelper(t, t.TempDir(), "i=0\nwhile [ $i -lt 400 ]; do echo line $i; i=$((i+1)); done\nexit 4")

	h, err := Spawn(d)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	select {
	case <-h.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("helper did not finish")
	}

	events := collect(t, h, 5*time.Second)
	if len(events) != eventBuffer+1 {
		t.Fatalf("events=%d dropped=%d", len(events), h.Dropped())
	}
	last := events[len(events)-1]
	if last.Kind != EventTerminated || last.Code != 4 {
		t.Fatalf("last event=%+v", last)
	}
	if h.Dropped() == 0 {
		t.Fatal("expected dropped output lines")
	}
}

func TestMergeEnvOverrides(t *testing.T) {
	got := mergeEnv([]string{"PATH=/bin", "AVVA_LAUNCH_ID=old", "HOME=/root"}, map[string]string{
		"AVVA_LAUNCH_ID": "new",
		"EXTRA":          "1",
	})
	joined := strings.Join(got, ",")
	if joined != "PATH=/bin,HOME=/root,AVVA_LAUNCH_ID=new,EXTRA=1" {
		t.Fatalf("env=%s", joined)
	}
}
