package procregistry

import "time"

// ProcessStatus enumerates the lifecycle states of a tracked process.
type ProcessStatus string

// Tracked process lifecycle states. Running transitions to Completed or
// Failed on natural exit and to Killed on explicit termination; terminal
// states are stable until cleanup. Unknown covers indeterminate liveness.
const (
	ProcessStatusRunning   ProcessStatus = "running"
	ProcessStatusCompleted ProcessStatus = "completed"
	ProcessStatusFailed    ProcessStatus = "failed"
	ProcessStatusKilled    ProcessStatus = "killed"
	ProcessStatusUnknown   ProcessStatus = "unknown"
)

// Terminal reports whether the status can no longer change.
func (status ProcessStatus) Terminal() bool {
	switch status {
	case ProcessStatusCompleted, ProcessStatusFailed, ProcessStatusKilled:
		return true
	default:
		return false
	}
}

// ProcessRecord is the externally visible state of one tracked process. The
// ProcessIdentifier is an opaque generated handle, distinct from the OS pid.
type ProcessRecord struct {
	ProcessIdentifier    string
	PID                  int
	Command              string
	Status               ProcessStatus
	StartedAt            time.Time
	WorkingDirectory     string
	EnvironmentVariables map[string]string
}
