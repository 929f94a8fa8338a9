//go:build !unix

package sidecar

import "github.com/shirou/gopsutil/v4/process"

// Windows has no process groups to signal; the job object of the old launch
// is gone, so only the orphan itself can be ended here.
func terminateOrphan(p *process.Process) error { return p.Terminate() }

func killOrphan(p *process.Process) error { return p.Kill() }
