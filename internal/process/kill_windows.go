//go:build windows

package process

import (
	"os"
	"os/exec"
	"strconv"
)

// KillProcessGroup kills pid and its children with taskkill.
// /F = force kill, /T = terminate child processes (tree kill).
func KillProcessGroup(pid int) {
	if pid <= 1 {
		return
	}
	// Best-effort; launcher.Kill() already signalled the leader.
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run() // #nosec G204 -- pid is numeric
}

// Exists reports whether a process with pid is still present.
func Exists(pid int) bool {
	if pid <= 0 {
		return false
	}
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	_ = p.Release()
	return true
}
