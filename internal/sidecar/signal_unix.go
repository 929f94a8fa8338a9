//go:build unix

package sidecar

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// signalGroup signals the helper's process group, falling back to the
// leader alone if the group is already gone.
func signalGroup(p *os.Process, sig unix.Signal) error {
	err := unix.Kill(-p.Pid, sig)
	if err == nil {
		return nil
	}
	if errors.Is(err, unix.ESRCH) {
		if perr := p.Signal(sig); perr != nil && !errors.Is(perr, os.ErrProcessDone) {
			return perr
		}
		return nil
	}
	return err
}
