package execshell

import "time"

// CommandRequest describes one shell command execution.
//
// TimeoutSeconds zero means "not set": the executor substitutes its configured
// default, and an explicit default of zero runs without a deadline (logged as
// a warning, not rejected). Negative timeouts fail validation.
type CommandRequest struct {
	Command              string
	WorkingDirectory     string
	EnvironmentVariables map[string]string
	TimeoutSeconds       int
	CaptureOutput        bool
}

// CommandResult captures the observable outcome of one execution. Framework
// detected failures carry the FrameworkFailureExitCode sentinel and a
// human-readable cause in StandardError; a process's own exit code is reported
// unchanged otherwise.
type CommandResult struct {
	Command           string
	ExitCode          int
	StandardOutput    string
	StandardError     string
	StartedAt         time.Time
	CompletedAt       time.Time
	ExecutionDuration time.Duration
	CapturedChunks    []string
}

// FrameworkFailureExitCode distinguishes executor-detected failures from the
// executed process's own exit codes.
const FrameworkFailureExitCode = -1

// ExecutionSeconds reports the execution duration in fractional seconds.
func (result CommandResult) ExecutionSeconds() float64 {
	return result.ExecutionDuration.Seconds()
}

// Succeeded reports whether the process exited naturally with code zero.
func (result CommandResult) Succeeded() bool {
	return result.ExitCode == 0
}
