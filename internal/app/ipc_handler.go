package app

import (
	"context"
	"strings"
	"time"

	"avva-desktop/internal/ipc"
	"avva-desktop/internal/plugins/shell"
	"avva-desktop/internal/sidecar"
)

// handleIPC serves control requests. ctx is the application's run context, so
// commands still running at shutdown are cancelled with it.
func (a *App) handleIPC(ctx context.Context, req ipc.Request) ipc.Response {
	switch strings.ToLower(req.Action) {
	case ipc.ActionGetStatus:
		st, err := a.helperStatus()
		if err != nil {
			return ipc.ErrorResponse(err.Error())
		}
		return ipc.Response{
			Status: "ok",
			Data: map[string]any{
				"app":        a.cfg.App.Name,
				"version":    a.cfg.App.Version,
				"launch_id":  a.launchID,
				"started_at": a.startedAt.Format(time.RFC3339),
				"plugins":    a.plugins.Names(),
				"sidecar":    st,
			},
		}
	case ipc.ActionPing:
		return ipc.Response{Status: "ok", Message: "pong"}
	case ipc.ActionStopHelper:
		if err := a.stopHelper(); err != nil {
			a.logger.Printf("ipc stop_helper failed: %v", err)
			return ipc.ErrorResponse(err.Error())
		}
		return ipc.Response{Status: "ok", Message: "helper stopped"}
	case ipc.ActionRun:
		sh, ok := a.shell()
		if !ok {
			return ipc.ErrorResponse("shell plugin is not enabled")
		}
		res, err := sh.Execute(ctx, req.Program, req.Args...)
		if err != nil {
			return ipc.Response{Status: "error", Message: err.Error(), Data: res}
		}
		return ipc.Response{Status: "ok", Data: res}
	default:
		return ipc.ErrorResponse("unknown action")
	}
}

func (a *App) shell() (*shell.Plugin, bool) {
	p, ok := a.plugins.Lookup(shell.Name)
	if !ok {
		return nil, false
	}
	sh, ok := p.(*shell.Plugin)
	return sh, ok
}

// Helper control goes through the shell plugin when it is enabled, which is
// where the sidecar capability lives; without it the supervisor answers directly.
func (a *App) helperStatus() (sidecar.Status, error) {
	if sh, ok := a.shell(); ok {
		return sh.SidecarStatus()
	}
	if a.sup == nil {
		return sidecar.Status{}, sidecar.ErrNotStarted
	}
	return a.sup.Status(), nil
}

func (a *App) stopHelper() error {
	if sh, ok := a.shell(); ok {
		return sh.StopSidecar()
	}
	if a.sup == nil {
		return sidecar.ErrNotStarted
	}
	return a.sup.Stop()
}
