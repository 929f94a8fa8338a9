//go:build unix && !linux

package sidecar

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

type platformState struct{}

func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func attachProcess(*os.Process) (platformState, error) { return platformState{}, nil }

func releaseProcess(platformState) {}

func terminateProcess(p *os.Process, _ platformState) error {
	return signalGroup(p, unix.SIGTERM)
}

func killProcess(p *os.Process, _ platformState) error {
	return signalGroup(p, unix.SIGKILL)
}
