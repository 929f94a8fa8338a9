//go:build linux

package sidecar

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

type platformState struct{}

// configureProcess puts the helper in its own process group so the whole tree
// can be signalled, and asks the kernel to SIGTERM it if the application dies.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

func attachProcess(*os.Process) (platformState, error) { return platformState{}, nil }

func releaseProcess(platformState) {}

func terminateProcess(p *os.Process, _ platformState) error {
	return signalGroup(p, unix.SIGTERM)
}

func killProcess(p *os.Process, _ platformState) error {
	return signalGroup(p, unix.SIGKILL)
}
