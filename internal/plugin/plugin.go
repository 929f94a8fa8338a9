// Package plugin composes the application's optional capabilities. Plugins
// are initialized in the order given and closed in reverse.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log"

	"avva-desktop/internal/sidecar"
)

// Host is what a plugin may use during Init.
type Host struct {
	Logger     *log.Logger
	Supervisor *sidecar.Supervisor
	Debug      bool
}

type Plugin interface {
	Name() string
	Init(ctx context.Context, host *Host) error
	Close() error
}

// InitError reports the plugin that failed to initialize.
type InitError struct {
	Plugin string
	Err    error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("plugin %s init: %v", e.Plugin, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

type Set struct {
	plugins []Plugin
	ready   []Plugin
}

func NewSet(plugins ...Plugin) *Set {
	return &Set{plugins: plugins}
}

func (s *Set) Names() []string {
	out := make([]string, 0, len(s.plugins))
	for _, p := range s.plugins {
		out = append(out, p.Name())
	}
	return out
}

// Lookup returns the plugin registered under name, initialized or not.
func (s *Set) Lookup(name string) (Plugin, bool) {
	for _, p := range s.plugins {
		if p.Name() == name {
			return p, true
		}
	}
	return nil, false
}

// InitAll initializes plugins in order. On the first failure the plugins that
// already initialized are closed in reverse order and an *InitError is returned.
func (s *Set) InitAll(ctx context.Context, host *Host) error {
	for _, p := range s.plugins {
		if err := ctx.Err(); err != nil {
			_ = s.CloseAll()
			return &InitError{Plugin: p.Name(), Err: err}
		}
		if err := p.Init(ctx, host); err != nil {
			if cerr := s.CloseAll(); cerr != nil && host.Logger != nil {
				host.Logger.Printf("plugin rollback: %v", cerr)
			}
			return &InitError{Plugin: p.Name(), Err: err}
		}
		s.ready = append(s.ready, p)
		if host.Logger != nil {
			host.Logger.Printf("plugin initialized: %s", p.Name())
		}
	}
	return nil
}

// CloseAll closes initialized plugins in reverse order and joins their errors.
func (s *Set) CloseAll() error {
	var errs []error
	for i := len(s.ready) - 1; i >= 0; i-- {
		p := s.ready[i]
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("plugin %s close: %w", p.Name(), err))
		}
	}
	s.ready = nil
	return errors.Join(errs...)
}
