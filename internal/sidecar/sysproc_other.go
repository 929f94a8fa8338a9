//go:build !unix && !windows

package sidecar

import (
	"os"
	"os/exec"
)

type platformState struct{}

func configureProcess(*exec.Cmd) {}

func attachProcess(*os.Process) (platformState, error) { return platformState{}, nil }

func releaseProcess(platformState) {}

func terminateProcess(p *os.Process, _ platformState) error { return p.Kill() }

func killProcess(p *os.Process, _ platformState) error { return p.Kill() }
