package execshell

import "time"

// DefaultTerminationGracePeriod is how long a process group gets to exit after
// SIGTERM before SIGKILL follows.
const DefaultTerminationGracePeriod = 2 * time.Second

const terminationProbeInterval = 50 * time.Millisecond

// ProcessTerminator delivers termination signals and liveness probes. The unix
// implementation addresses whole process groups; the generic fallback reaches
// only the direct child.
type ProcessTerminator interface {
	// TerminateGroup requests graceful termination. Signalling an already-gone
	// process is benign and reports no error.
	TerminateGroup(processIdentifier int) error
	// KillGroup forces termination.
	KillGroup(processIdentifier int) error
	// Alive reports whether the process still accepts signals.
	Alive(processIdentifier int) bool
}

// terminateGracefully sends SIGTERM, waits up to gracePeriod for the process
// to disappear, then escalates to SIGKILL.
func terminateGracefully(terminator ProcessTerminator, processIdentifier int, gracePeriod time.Duration) error {
	terminationError := terminator.TerminateGroup(processIdentifier)

	deadline := time.Now().Add(gracePeriod)
	for time.Now().Before(deadline) {
		if !terminator.Alive(processIdentifier) {
			return terminationError
		}
		time.Sleep(terminationProbeInterval)
	}

	if terminator.Alive(processIdentifier) {
		killError := terminator.KillGroup(processIdentifier)
		if terminationError == nil {
			terminationError = killError
		}
	}

	return terminationError
}
