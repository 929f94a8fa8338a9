// Package shell exposes a restricted command-execution capability and
// control over the supervised helper.
package shell

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"avva-desktop/internal/config"
	"avva-desktop/internal/plugin"
	"avva-desktop/internal/sidecar"
)

const Name = "shell"

var ErrNotAllowed = errors.New("command not allowed")

type Result struct {
	ExitCode int    `json:"exit_code"`
	Output   string `json:"output"`
	Duration string `json:"duration"`
}

type Plugin struct {
	allow   map[string]bool
	timeout time.Duration

	sup    *sidecar.Supervisor
	logger *log.Logger
}

func New(cfg config.ShellConfig) *Plugin {
	allow := make(map[string]bool, len(cfg.Allow))
	for _, a := range cfg.Allow {
		a = strings.TrimSpace(a)
		if a != "" {
			allow[a] = true
		}
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Plugin{allow: allow, timeout: timeout}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Init(_ context.Context, host *plugin.Host) error {
	p.sup = host.Supervisor
	p.logger = host.Logger
	return nil
}

func (p *Plugin) Close() error { return nil }

// Allowed reports whether program may be executed. Bare names match by name,
// paths must match an allowed absolute path exactly.
func (p *Plugin) Allowed(program string) bool {
	if program == "" {
		return false
	}
	if strings.ContainsAny(program, `/\`) {
		abs, err := filepath.Abs(program)
		return err == nil && p.allow[abs]
	}
	return p.allow[program]
}

// Execute runs an allowed program and returns its combined output. A non-zero
// exit is reported in Result.ExitCode together with a non-nil error.
func (p *Plugin) Execute(ctx context.Context, program string, args ...string) (Result, error) {
	if !p.Allowed(program) {
		return Result{ExitCode: -1}, fmt.Errorf("%w: %s", ErrNotAllowed, program)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	started := time.Now()
	cmd := exec.CommandContext(ctx, program, args...)
	out, err := cmd.CombinedOutput()
	res := Result{Output: string(out), Duration: time.Since(started).Round(time.Millisecond).String()}
	if err == nil {
		p.logf("shell: %s exited 0 in %s", program, res.Duration)
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		p.logf("shell: %s exited %d in %s", program, res.ExitCode, res.Duration)
		return res, fmt.Errorf("%s exited with code %d: %s", program, res.ExitCode, strings.TrimSpace(res.Output))
	}
	res.ExitCode = -1
	return res, err
}

func (p *Plugin) SidecarStatus() (sidecar.Status, error) {
	if p.sup == nil {
		return sidecar.Status{}, sidecar.ErrNotStarted
	}
	return p.sup.Status(), nil
}

func (p *Plugin) StopSidecar() error {
	if p.sup == nil {
		return sidecar.ErrNotStarted
	}
	return p.sup.Stop()
}

func (p *Plugin) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
