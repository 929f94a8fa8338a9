// Package logger is the debug-only console logger. In release mode it does
// nothing; in debug mode it tees the application log to the console and
// records helper output at or above the configured level.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"avva-desktop/internal/plugin"
	"avva-desktop/internal/sidecar"
)

const Name = "logger"

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// levelFor maps a helper event to the level it is logged at.
func levelFor(ev sidecar.Event) Level {
	switch ev.Kind {
	case sidecar.EventStdout:
		return LevelInfo
	case sidecar.EventStderr:
		return LevelWarn
	case sidecar.EventTerminated:
		if ev.Code == 0 {
			return LevelInfo
		}
		return LevelError
	default:
		return LevelError
	}
}

type Plugin struct {
	level   Level
	console io.Writer

	logger  *log.Logger
	prevOut io.Writer
	enabled bool
	cancel  func()
	wg      sync.WaitGroup
}

func New(level Level) *Plugin {
	return &Plugin{level: level, console: os.Stderr}
}

func (p *Plugin) Name() string { return Name }

func (p *Plugin) Enabled() bool { return p.enabled }

func (p *Plugin) Init(_ context.Context, host *plugin.Host) error {
	if !host.Debug {
		return nil
	}
	if host.Logger == nil {
		return fmt.Errorf("logger plugin needs a host logger")
	}
	p.logger = host.Logger
	p.prevOut = host.Logger.Writer()
	host.Logger.SetOutput(io.MultiWriter(p.prevOut, p.console))
	p.enabled = true
	p.logger.Printf("logger plugin: console logging enabled level=%s", p.level)

	if host.Supervisor != nil {
		events, cancel := host.Supervisor.Subscribe(256)
		p.cancel = cancel
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.forward(events)
		}()
	}
	return nil
}

func (p *Plugin) forward(events <-chan sidecar.Event) {
	for ev := range events {
		lvl := levelFor(ev)
		if lvl < p.level {
			continue
		}
		if ev.Kind == sidecar.EventTerminated {
			p.logger.Printf("[%s] sidecar terminated code=%d", lvl, ev.Code)
			continue
		}
		p.logger.Printf("[%s] sidecar %s: %s", lvl, ev.Kind, ev.Line)
	}
}

func (p *Plugin) Close() error {
	if !p.enabled {
		return nil
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.logger.SetOutput(p.prevOut)
	p.enabled = false
	return nil
}
