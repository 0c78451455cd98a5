//go:build !unix

package execshell

import (
	"errors"
	"os"
	"os/exec"
)

// configureProcessGroup is a no-op where POSIX process groups are unavailable.
func configureProcessGroup(executable *exec.Cmd) {}

// SingleProcessTerminator signals only the direct child on platforms without
// POSIX process groups. Children spawned by shell pipelines are not reached.
type SingleProcessTerminator struct{}

// NewProcessTerminator returns the platform terminator; without POSIX groups
// it falls back to signalling the direct child.
func NewProcessTerminator() ProcessTerminator {
	return SingleProcessTerminator{}
}

// TerminateGroup requests graceful termination of the direct child. A missing
// process is benign and reports no error.
func (SingleProcessTerminator) TerminateGroup(processIdentifier int) error {
	foundProcess, findError := os.FindProcess(processIdentifier)
	if findError != nil {
		return nil
	}
	_ = foundProcess.Signal(os.Interrupt)
	return nil
}

// KillGroup forcefully kills the direct child.
func (SingleProcessTerminator) KillGroup(processIdentifier int) error {
	foundProcess, findError := os.FindProcess(processIdentifier)
	if findError != nil {
		return nil
	}
	killError := foundProcess.Kill()
	if errors.Is(killError, os.ErrProcessDone) {
		return nil
	}
	return killError
}

// Alive reports whether the process handle can still be resolved.
func (SingleProcessTerminator) Alive(processIdentifier int) bool {
	_, findError := os.FindProcess(processIdentifier)
	return findError == nil
}
