// Package window is the native status surface shown while the application runs.
package window

import (
	"context"
	"fmt"
	"log"
	"strings"

	"avva-desktop/internal/config"
	"avva-desktop/internal/sidecar"
)

// Window runs the UI loop until the user quits or ctx is cancelled.
type Window interface {
	Run(ctx context.Context) error
}

// StatusFunc reports the current helper state for display.
type StatusFunc func() sidecar.Status

// New returns the tray window on Windows and a headless loop elsewhere or
// when cfg.Headless is set.
func New(cfg config.WindowConfig, status StatusFunc, logger *log.Logger) Window {
	if cfg.Headless {
		return Headless{}
	}
	return newNative(cfg, status, logger)
}

// Headless blocks until ctx is done.
type Headless struct{}

func (Headless) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func displayTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return "Avva"
	}
	return title
}

func statusTooltip(title string, st sidecar.Status) string {
	title = displayTitle(title)
	switch {
	case st.Running:
		return fmt.Sprintf("%s - %s running (pid %d)", title, st.Name, st.Pid)
	case st.ExitCode != nil:
		return fmt.Sprintf("%s - %s exited (code %d)", title, st.Name, *st.ExitCode)
	default:
		return fmt.Sprintf("%s - %s not started", title, st.Name)
	}
}

func statusTitle(title string, st sidecar.Status) string {
	title = displayTitle(title)
	if st.Running {
		return title
	}
	return title + " (offline)"
}

type iconState string

const (
	iconRunning iconState = "running"
	iconExited  iconState = "exited"
	iconFailed  iconState = "failed"
)

func stateOf(st sidecar.Status) iconState {
	if st.Running {
		return iconRunning
	}
	if st.ExitCode != nil && *st.ExitCode == 0 {
		return iconExited
	}
	return iconFailed
}
