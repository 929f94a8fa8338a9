//go:build unix

package sidecar

import (
	"errors"

	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/sys/unix"
)

func terminateOrphan(p *process.Process) error { return signalOrphan(p, unix.SIGTERM) }

func killOrphan(p *process.Process) error { return signalOrphan(p, unix.SIGKILL) }

// signalOrphan signals the orphan's whole process group when it leads one,
// as helpers started by Spawn do, so its own children go with it.
func signalOrphan(p *process.Process, sig unix.Signal) error {
	pid := int(p.Pid)
	if pgid, err := unix.Getpgid(pid); err == nil && pgid == pid {
		err := unix.Kill(-pid, sig)
		if err == nil || !errors.Is(err, unix.ESRCH) {
			return err
		}
	}
	return p.SendSignal(sig)
}
