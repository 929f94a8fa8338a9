// Package app is the desktop bootstrap: it starts the helper, initializes the
// plugins, runs the window and tears everything down again on exit.
package app

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"

	"avva-desktop/internal/config"
	"avva-desktop/internal/ipc"
	"avva-desktop/internal/plugin"
	"avva-desktop/internal/plugins/bridge"
	loggerplugin "avva-desktop/internal/plugins/logger"
	"avva-desktop/internal/plugins/shell"
	"avva-desktop/internal/sidecar"
	"avva-desktop/internal/window"
)

const (
	StageInstance = "instance"
	StageSidecar  = "sidecar"
	StagePlugins  = "plugins"
	StageWindow   = "window"
)

const pidfileName = "sidecar.pid"

// StartupError is returned by Run when the application cannot come up.
type StartupError struct {
	Stage string
	Err   error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.Stage, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

type Option func(*App)

// WithWindow replaces the platform window.
func WithWindow(w window.Window) Option {
	return func(a *App) { a.window = w }
}

// WithPlugins replaces the plugins built from the config.
func WithPlugins(plugins ...plugin.Plugin) Option {
	return func(a *App) { a.plugins = plugin.NewSet(plugins...) }
}

func WithLaunchID(id string) Option {
	return func(a *App) { a.launchID = id }
}

type App struct {
	cfg      *config.Config
	logger   *log.Logger
	window   window.Window
	plugins  *plugin.Set
	launchID string

	sup       *sidecar.Supervisor
	startedAt time.Time
}

func New(cfg *config.Config, logger *log.Logger, opts ...Option) *App {
	a := &App{cfg: cfg, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	if a.plugins == nil {
		a.plugins = plugin.NewSet(BuildPlugins(cfg)...)
	}
	if a.launchID == "" {
		a.launchID = uuid.NewString()
	}
	return a
}

// BuildPlugins creates the plugins named in cfg.Plugins, in that order.
func BuildPlugins(cfg *config.Config) []plugin.Plugin {
	out := make([]plugin.Plugin, 0, len(cfg.Plugins))
	for _, name := range cfg.Plugins {
		switch name {
		case shell.Name:
			out = append(out, shell.New(cfg.Shell))
		case loggerplugin.Name:
			level, err := loggerplugin.ParseLevel(cfg.Logging.Level)
			if err != nil {
				level = loggerplugin.LevelInfo
			}
			out = append(out, loggerplugin.New(level))
		case bridge.Name:
			out = append(out, bridge.New(cfg.Bridge))
		}
	}
	return out
}

func (a *App) LaunchID() string { return a.launchID }

func (a *App) PidfilePath() string {
	return filepath.Join(a.cfg.App.DataDir, pidfileName)
}

// Supervisor is nil until Run starts.
func (a *App) Supervisor() *sidecar.Supervisor { return a.sup }

// Run blocks until the window quits or ctx is cancelled. The helper and the
// plugins are shut down on every return path.
func (a *App) Run(ctx context.Context) error {
	a.startedAt = time.Now().UTC()
	a.logger.Printf("app: starting %s %s launch=%s", a.cfg.App.Name, a.cfg.App.Version, a.launchID)

	release, err := acquireInstanceLock(a.cfg.App.DataDir)
	if err != nil {
		return &StartupError{Stage: StageInstance, Err: err}
	}
	defer release()

	stopTimeout := time.Duration(a.cfg.Sidecar.StopTimeoutSec) * time.Second
	reaped, err := sidecar.ReapOrphan(a.PidfilePath(), stopTimeout)
	if err != nil {
		a.logger.Printf("app: orphaned helper not reaped: %v", err)
	} else if reaped {
		a.logger.Printf("app: reaped helper left by a previous launch")
	}

	desc := sidecar.Descriptor{
		Name:   a.cfg.Sidecar.Name,
		Dir:    a.cfg.Sidecar.Dir,
		Args:   a.cfg.Sidecar.Args,
		Env:    a.cfg.Sidecar.Env,
		SHA256: a.cfg.Sidecar.SHA256,
	}
	a.sup = sidecar.NewSupervisor(desc, a.launchID, a.PidfilePath(), stopTimeout, a.logger)
	defer a.shutdown()

	if _, err := a.sup.Start(); err != nil {
		return &StartupError{Stage: StageSidecar, Err: err}
	}

	host := &plugin.Host{Logger: a.logger, Supervisor: a.sup, Debug: a.cfg.App.Debug}
	if err := a.plugins.InitAll(ctx, host); err != nil {
		return &StartupError{Stage: StagePlugins, Err: err}
	}

	if a.cfg.IPC.Enabled {
		srv, err := ipc.Listen(a.ipcEndpoint(), func(req ipc.Request) ipc.Response {
			return a.handleIPC(ctx, req)
		})
		if err != nil {
			a.logger.Printf("app: control channel not started: %v", err)
		} else {
			defer srv.Close()
			a.logger.Printf("app: control channel started: %s", a.ipcEndpoint())
		}
	}

	if a.window == nil {
		a.window = window.New(a.cfg.Window, a.sup.Status, a.logger)
	}
	if err := a.window.Run(ctx); err != nil {
		return &StartupError{Stage: StageWindow, Err: err}
	}
	a.logger.Printf("app: window closed")
	return nil
}

func (a *App) shutdown() {
	if err := a.plugins.CloseAll(); err != nil {
		a.logger.Printf("app: plugin shutdown: %v", err)
	}
	if err := a.sup.Stop(); err != nil {
		a.logger.Printf("app: helper stop: %v", err)
	}
	a.logger.Printf("app: shutdown complete launch=%s", a.launchID)
}

func (a *App) ipcEndpoint() string {
	if runtime.GOOS == "windows" {
		return ipc.PipeName
	}
	return a.cfg.IPC.SocketPath
}
