//go:build unix

package execshell

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcessGroup places the child in its own process group so one
// signal reaches every process a shell pipeline spawns.
func configureProcessGroup(executable *exec.Cmd) {
	if executable.SysProcAttr == nil {
		executable.SysProcAttr = &syscall.SysProcAttr{}
	}
	executable.SysProcAttr.Setpgid = true
	executable.SysProcAttr.Pgid = 0
}

// POSIXGroupTerminator signals entire process groups via negative pids.
type POSIXGroupTerminator struct{}

// NewProcessTerminator returns the platform terminator; on unix it signals
// whole process groups.
func NewProcessTerminator() ProcessTerminator {
	return POSIXGroupTerminator{}
}

// TerminateGroup delivers SIGTERM to the child's process group.
func (POSIXGroupTerminator) TerminateGroup(processIdentifier int) error {
	// pid <= 1 would address every process or the caller's own group.
	if processIdentifier <= 1 {
		return nil
	}
	terminationError := unix.Kill(-processIdentifier, unix.SIGTERM)
	if terminationError == unix.ESRCH {
		return nil
	}
	return terminationError
}

// KillGroup delivers SIGKILL to the child's process group.
func (POSIXGroupTerminator) KillGroup(processIdentifier int) error {
	if processIdentifier <= 1 {
		return nil
	}
	killError := unix.Kill(-processIdentifier, unix.SIGKILL)
	if killError == unix.ESRCH {
		return nil
	}
	return killError
}

// Alive probes liveness with a no-op signal.
func (POSIXGroupTerminator) Alive(processIdentifier int) bool {
	if processIdentifier <= 1 {
		return false
	}
	return unix.Kill(processIdentifier, 0) == nil
}
