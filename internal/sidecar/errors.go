package sidecar

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyStarted = errors.New("sidecar already started for this launch")
	ErrNotStarted     = errors.New("sidecar not started")
)

// ResolutionError means no usable helper binary exists for the current platform.
type ResolutionError struct {
	Name   string
	Dir    string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolve sidecar %q", e.Name)
	if e.Dir != "" {
		msg += " in " + e.Dir
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SpawnError means the OS refused to create the helper process.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn sidecar %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }
