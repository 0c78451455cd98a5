package execshell

import "errors"

// Construction-time configuration failures. These are the only errors the
// executor raises instead of folding into a CommandResult.
var (
	ErrLoggerNotConfigured            = errors.New("shell executor logger not configured")
	ErrProcessLauncherNotConfigured   = errors.New("shell executor process launcher not configured")
	ErrProcessTerminatorNotConfigured = errors.New("shell executor process terminator not configured")
	ErrOutputStreamerNotConfigured    = errors.New("shell executor output streamer not configured")
)

// Stderr causes reported with FrameworkFailureExitCode, in the order the
// executor checks them.
const (
	workingDirectoryMissingTemplateConstant  = "working directory not found: %s"
	workingDirectoryNotDirTemplateConstant   = "working directory is not a directory: %s"
	negativeTimeoutTemplateConstant          = "timeout must not be negative: %d"
	commandNotFoundTemplateConstant          = "command not found: %s"
	permissionDeniedTemplateConstant         = "permission denied: %s"
	launchFailureTemplateConstant            = "failed to launch command: %s"
	timedOutTemplateConstant                 = "Command timed out after %d seconds"
	executionCancelledMessageConstant        = "command execution cancelled"
	waitFailureTemplateConstant              = "failed while awaiting command: %s"
	zeroTimeoutTreatedUnlimitedWarnConstant  = "zero timeout treated as unlimited"
	destructiveCommandDetectedWarnConstant   = "destructive command pattern detected; execution proceeds (warn-only policy)"
	environmentOverrideMergedDebugConstant   = "environment overrides merged"
	processGroupTerminationFailedWarnMessage = "process group termination reported a failure"
)
