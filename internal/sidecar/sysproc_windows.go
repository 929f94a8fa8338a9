//go:build windows

package sidecar

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// platformState holds the job object that ties the helper's lifetime to ours:
// when the last handle to the job closes (including on crash) Windows kills it.
type platformState struct {
	job windows.Handle
}

func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP,
	}
}

func attachProcess(p *os.Process) (platformState, error) {
	job, err := windows.CreateJobObject(nil, nil)
	if err != nil {
		return platformState{}, fmt.Errorf("CreateJobObject: %w", err)
	}

	info := windows.JOBOBJECT_EXTENDED_LIMIT_INFORMATION{}
	info.BasicLimitInformation.LimitFlags = windows.JOB_OBJECT_LIMIT_KILL_ON_JOB_CLOSE
	if _, err := windows.SetInformationJobObject(
		job,
		windows.JobObjectExtendedLimitInformation,
		uintptr(unsafe.Pointer(&info)),
		uint32(unsafe.Sizeof(info)),
	); err != nil {
		_ = windows.CloseHandle(job)
		return platformState{}, fmt.Errorf("SetInformationJobObject: %w", err)
	}

	proc, err := windows.OpenProcess(windows.PROCESS_SET_QUOTA|windows.PROCESS_TERMINATE, false, uint32(p.Pid))
	if err != nil {
		_ = windows.CloseHandle(job)
		return platformState{}, fmt.Errorf("OpenProcess: %w", err)
	}
	defer windows.CloseHandle(proc)

	if err := windows.AssignProcessToJobObject(job, proc); err != nil {
		_ = windows.CloseHandle(job)
		return platformState{}, fmt.Errorf("AssignProcessToJobObject: %w", err)
	}
	return platformState{job: job}, nil
}

func releaseProcess(s platformState) {
	if s.job != 0 {
		_ = windows.CloseHandle(s.job)
	}
}

// terminateProcess sends CTRL_BREAK to the helper's process group. Helpers
// without a console ignore it and are killed after the stop timeout.
func terminateProcess(p *os.Process, _ platformState) error {
	return windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(p.Pid))
}

func killProcess(p *os.Process, s platformState) error {
	if s.job != 0 {
		if err := windows.TerminateJobObject(s.job, 1); err == nil {
			return nil
		}
	}
	return p.Kill()
}
