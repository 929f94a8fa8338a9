package sidecar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type EventKind string

const (
	EventStdout     EventKind = "stdout"
	EventStderr     EventKind = "stderr"
	EventError      EventKind = "error"
	EventTerminated EventKind = "terminated"
)

// Event is one observation of the helper: an output line, a wait error, or its exit.
type Event struct {
	Kind EventKind `json:"kind"`
	Line string    `json:"line,omitempty"`
	Code int       `json:"code"`
	Time time.Time `json:"time"`
}

const (
	eventBuffer = 256
	maxLine     = 64 * 1024
	// waitDelay bounds how long Wait keeps reading pipes that a grandchild still holds open.
	waitDelay = 2 * time.Second
)

// Handle is a running helper process. It is safe for concurrent use.
type Handle struct {
	path      string
	pid       int
	startedAt time.Time

	cmd    *exec.Cmd
	events chan Event
	done   chan struct{}
	plat   platformState

	mu       sync.Mutex
	exitCode int

	// emitMu orders output events against the final terminated event.
	emitMu       sync.Mutex
	eventsClosed bool

	dropped atomic.Int64
}

// Spawn starts the helper described by d and returns without waiting for output or exit.
// It does not deduplicate: every call creates a new process.
func Spawn(d Descriptor) (*Handle, error) {
	path, err := d.Resolve()
	if err != nil {
		return nil, err
	}
	return spawnPath(path, d.Args, d.Env)
}

func spawnPath(path string, args []string, env map[string]string) (*Handle, error) {
	cmd := exec.Command(path, args...)
	cmd.Dir = filepath.Dir(path)
	cmd.Env = mergeEnv(os.Environ(), env)
	cmd.WaitDelay = waitDelay
	configureProcess(cmd)

	h := &Handle{
		path:     path,
		cmd:      cmd,
		// One slot beyond eventBuffer is kept for the terminated event.
		events:   make(chan Event, eventBuffer+1),
		done:     make(chan struct{}),
		exitCode: -1,
	}
	stdout := &lineWriter{h: h, kind: EventStdout}
	stderr := &lineWriter{h: h, kind: EventStderr}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Path: path, Err: err}
	}
	h.pid = cmd.Process.Pid
	h.startedAt = time.Now().UTC()

	plat, err := attachProcess(cmd.Process)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, &SpawnError{Path: path, Err: fmt.Errorf("attach lifetime: %w", err)}
	}
	h.plat = plat

	go h.wait(stdout, stderr)
	return h, nil
}

func (h *Handle) wait(stdout, stderr *lineWriter) {
	err := h.cmd.Wait()
	stdout.flush()
	stderr.flush()

	code := -1
	if h.cmd.ProcessState != nil {
		code = h.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		h.emit(Event{Kind: EventError, Line: err.Error(), Time: time.Now().UTC()})
	}

	h.mu.Lock()
	h.exitCode = code
	h.mu.Unlock()

	releaseProcess(h.plat)
	close(h.done)

	h.emitMu.Lock()
	// emit never fills the reserved slot, so this send cannot block.
	h.events <- Event{Kind: EventTerminated, Code: code, Time: time.Now().UTC()}
	h.eventsClosed = true
	close(h.events)
	h.emitMu.Unlock()
}

// emit never blocks the helper: when the buffer is full the event is dropped and counted.
func (h *Handle) emit(ev Event) {
	h.emitMu.Lock()
	defer h.emitMu.Unlock()
	if h.eventsClosed || len(h.events) >= eventBuffer {
		h.dropped.Add(1)
		return
	}
	h.events <- ev
}

func (h *Handle) Pid() int             { return h.pid }
func (h *Handle) Path() string         { return h.path }
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Events returns the output stream. It is closed after the terminated event.
func (h *Handle) Events() <-chan Event { return h.events }

// Done is closed once the process has exited and its output is drained.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Dropped reports how many events were discarded because nobody was reading.
func (h *Handle) Dropped() int64 { return h.dropped.Load() }

func (h *Handle) Running() bool {
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// ExitCode is -1 while running or when the process was killed by a signal.
func (h *Handle) ExitCode() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.exitCode
}

// Wait blocks until the process exits or ctx is done.
func (h *Handle) Wait(ctx context.Context) (int, error) {
	select {
	case <-h.done:
		return h.ExitCode(), nil
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Kill force-terminates the helper and everything it started.
func (h *Handle) Kill() error {
	if !h.Running() {
		return nil
	}
	if err := killProcess(h.cmd.Process, h.plat); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	return nil
}

// Stop asks the helper to exit, then kills it if it is still alive after timeout.
func (h *Handle) Stop(timeout time.Duration) error {
	if !h.Running() {
		return nil
	}
	if err := terminateProcess(h.cmd.Process, h.plat); err != nil && !errors.Is(err, os.ErrProcessDone) {
		if kerr := h.Kill(); kerr != nil {
			return kerr
		}
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return nil
	case <-timer.C:
	}

	if err := h.Kill(); err != nil {
		return err
	}
	select {
	case <-h.done:
		return nil
	case <-time.After(waitDelay + time.Second):
		return fmt.Errorf("sidecar pid=%d did not exit after kill", h.pid)
	}
}

func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(base)+len(extra))
	for _, kv := range base {
		if _, overridden := extra[envName(kv)]; overridden {
			continue
		}
		out = append(out, kv)
	}
	for _, k := range keys {
		out = append(out, k+"="+extra[k])
	}
	return out
}

func envName(kv string) string {
	if kv == "" {
		return ""
	}
	// Windows keeps per-drive entries such as "=C:=C:\\"; the leading '=' is part of the name.
	if i := strings.IndexByte(kv[1:], '='); i >= 0 {
		return kv[:i+1]
	}
	return kv
}

// lineWriter turns a byte stream into line events. exec calls Write from a
// single goroutine per stream.
type lineWriter struct {
	h    *Handle
	kind EventKind
	buf  []byte
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		line := bytes.TrimRight(w.buf[:i], "\r")
		w.h.emit(Event{Kind: w.kind, Line: string(line), Time: time.Now().UTC()})
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) >= maxLine {
		w.flush()
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) == 0 {
		return
	}
	w.h.emit(Event{Kind: w.kind, Line: string(bytes.TrimRight(w.buf, "\r")), Time: time.Now().UTC()})
	w.buf = nil
}
