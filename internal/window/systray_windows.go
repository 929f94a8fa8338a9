//go:build windows

package window

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/getlantern/systray"

	"avva-desktop/internal/config"
)

const refreshInterval = 5 * time.Second

type tray struct {
	title  string
	status StatusFunc
	logger *log.Logger

	mu            sync.Mutex
	lastIconState iconState
}

func newNative(cfg config.WindowConfig, status StatusFunc, logger *log.Logger) Window {
	return &tray{title: displayTitle(cfg.Title), status: status, logger: logger}
}

// Run blocks in the systray message loop. Cancelling ctx quits the loop.
func (t *tray) Run(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			systray.Quit()
		case <-done:
		}
	}()

	systray.Run(func() { t.onReady(ctx) }, func() {})
	return nil
}

func (t *tray) onReady(ctx context.Context) {
	t.setIconState(iconFailed)
	systray.SetTitle(t.title)
	systray.SetTooltip(t.title)

	mStatus := systray.AddMenuItem(t.title, "Helper status")
	mStatus.Disable()
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Quit "+t.title)

	go func() {
		t.refresh(mStatus)
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				t.refresh(mStatus)
			case <-mQuit.ClickedCh:
				t.logger.Printf("window: quit requested")
				systray.Quit()
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (t *tray) refresh(item *systray.MenuItem) {
	st := t.status()
	t.setIconState(stateOf(st))
	tt := statusTooltip(t.title, st)
	systray.SetTitle(statusTitle(t.title, st))
	systray.SetTooltip(tt)
	item.SetTitle(tt)
}

func (t *tray) setIconState(state iconState) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// systray writes icon bytes to a temp file on every SetIcon.
	if t.lastIconState == state {
		return
	}
	t.lastIconState = state
	systray.SetIcon(iconBytes(state))
}
