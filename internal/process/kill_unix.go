//go:build !windows

package process

import (
	"errors"
	"syscall"
)

// KillProcessGroup sends SIGKILL to the process group led by pid.
// PIDs <= 1 are ignored: 0 would target our own group and 1 is init.
func KillProcessGroup(pid int) {
	if pid <= 1 {
		return
	}
	// Best-effort; launcher.Kill() already signalled the leader.
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}

// Exists reports whether a process with pid is still present.
func Exists(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
