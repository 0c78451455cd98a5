package execshell

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/termrun/internal/auditlog"
	"github.com/temirov/termrun/internal/outputstream"
)

const (
	executionStartingDebugMessageConstant    = "command execution starting"
	executionFinishedInfoMessageConstant     = "command execution finished"
	logFieldCommandConstant                  = "command"
	logFieldWorkingDirectoryConstant         = "working_directory"
	logFieldTimeoutSecondsConstant           = "timeout_seconds"
	logFieldExitCodeConstant                 = "exit_code"
	logFieldDurationSecondsConstant          = "duration_seconds"
	logFieldEnvironmentVariableCountConstant = "environment_variable_count"
	logFieldMatchedPatternsConstant          = "matched_patterns"
	salvageWindowDuration                    = 200 * time.Millisecond
	pipeDrainWaitDuration                    = 2 * time.Second
)

// CommandSafetyScanner reports destructive-shape pattern labels for a command.
type CommandSafetyScanner interface {
	Scan(command string) []string
}

// ExecutionAuditRecorder persists the audit trail for finished executions.
type ExecutionAuditRecorder interface {
	RecordExecution(record auditlog.ExecutionRecord)
}

type noopSafetyScanner struct{}

func (noopSafetyScanner) Scan(string) []string { return nil }

type noopAuditRecorder struct{}

func (noopAuditRecorder) RecordExecution(auditlog.ExecutionRecord) {}

// ExecutionDefaults supplies construction-time fallbacks for requests that
// omit a working directory or timeout.
type ExecutionDefaults struct {
	WorkingDirectory       string
	TimeoutSeconds         int
	TerminationGracePeriod time.Duration
}

// ExecutorDependencies enumerates the collaborators a ShellExecutor requires.
type ExecutorDependencies struct {
	Logger        *zap.Logger
	Launcher      ProcessLauncher
	Terminator    ProcessTerminator
	Streamer      *outputstream.OutputStreamer
	SafetyScanner CommandSafetyScanner
	AuditRecorder ExecutionAuditRecorder
	EventObserver ExecutionEventObserver
	Defaults      ExecutionDefaults
}

// ShellExecutor runs one command end to end. Execution failures never escape
// as errors; every failure becomes a populated CommandResult.
type ShellExecutor struct {
	logger        *zap.Logger
	launcher      ProcessLauncher
	terminator    ProcessTerminator
	streamer      *outputstream.OutputStreamer
	safetyScanner CommandSafetyScanner
	auditRecorder ExecutionAuditRecorder
	eventObserver ExecutionEventObserver
	defaults      ExecutionDefaults
}

// NewShellExecutor validates required collaborators and assembles an executor.
func NewShellExecutor(dependencies ExecutorDependencies) (*ShellExecutor, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Launcher == nil {
		return nil, ErrProcessLauncherNotConfigured
	}
	if dependencies.Terminator == nil {
		return nil, ErrProcessTerminatorNotConfigured
	}
	if dependencies.Streamer == nil {
		return nil, ErrOutputStreamerNotConfigured
	}

	safetyScanner := dependencies.SafetyScanner
	if safetyScanner == nil {
		safetyScanner = noopSafetyScanner{}
	}

	auditRecorder := dependencies.AuditRecorder
	if auditRecorder == nil {
		auditRecorder = noopAuditRecorder{}
	}

	eventObserver := dependencies.EventObserver
	if eventObserver == nil {
		eventObserver = noopExecutionEventObserver{}
	}

	executionDefaults := dependencies.Defaults
	if executionDefaults.TerminationGracePeriod <= 0 {
		executionDefaults.TerminationGracePeriod = DefaultTerminationGracePeriod
	}

	return &ShellExecutor{
		logger:        dependencies.Logger,
		launcher:      dependencies.Launcher,
		terminator:    dependencies.Terminator,
		streamer:      dependencies.Streamer,
		safetyScanner: safetyScanner,
		auditRecorder: auditRecorder,
		eventObserver: eventObserver,
		defaults:      executionDefaults,
	}, nil
}

type waitOutcome struct {
	exitCode  int
	waitError error
}

// Execute runs the command to completion or timeout and returns a fully
// populated result.
func (executor *ShellExecutor) Execute(executionContext context.Context, request CommandRequest) CommandResult {
	startedAt := time.Now()

	resolvedRequest, validationFailure := executor.prepareExecution(request, startedAt)
	if validationFailure != nil {
		executor.finalizeExecution(resolvedRequest, validationFailure)
		return *validationFailure
	}

	process, launchError := executor.launcher.Launch(LaunchSpecification{
		Command:              resolvedRequest.Command,
		WorkingDirectory:     resolvedRequest.WorkingDirectory,
		EnvironmentVariables: resolvedRequest.EnvironmentVariables,
		CapturePipes:         resolvedRequest.CaptureOutput,
	})
	if launchError != nil {
		failureResult := executor.launchFailureResult(resolvedRequest, startedAt, launchError)
		executor.finalizeExecution(resolvedRequest, &failureResult)
		return failureResult
	}

	var standardOutputAccumulator, standardErrorAccumulator *chunkAccumulator
	if resolvedRequest.CaptureOutput {
		standardOutputAccumulator = executor.accumulateChunks(executionContext, process.StandardOutput())
		standardErrorAccumulator = executor.accumulateChunks(executionContext, process.StandardError())
	}

	waitChannel := make(chan waitOutcome, 1)
	go func() {
		exitCode, waitError := process.Wait()
		waitChannel <- waitOutcome{exitCode: exitCode, waitError: waitError}
	}()

	var timeoutChannel <-chan time.Time
	if resolvedRequest.TimeoutSeconds > 0 {
		timeoutTimer := time.NewTimer(time.Duration(resolvedRequest.TimeoutSeconds) * time.Second)
		defer timeoutTimer.Stop()
		timeoutChannel = timeoutTimer.C
	}

	result := CommandResult{Command: resolvedRequest.Command, StartedAt: startedAt}

	select {
	case outcome := <-waitChannel:
		awaitAccumulatorDrain(standardOutputAccumulator, standardErrorAccumulator)
		result.ExitCode = outcome.exitCode
		result.StandardOutput = standardOutputAccumulator.snapshot()
		result.StandardError = standardErrorAccumulator.snapshot()
		if outcome.waitError != nil {
			result.ExitCode = FrameworkFailureExitCode
			result.StandardError = fmt.Sprintf(waitFailureTemplateConstant, outcome.waitError)
		}

	case <-timeoutChannel:
		// One short pause lets the accumulators pull whatever the pipes
		// already buffered before the group goes away.
		time.Sleep(salvageWindowDuration)
		result.StandardOutput = standardOutputAccumulator.snapshot()
		executor.terminateProcessGroup(process.ProcessIdentifier())
		reapProcess(waitChannel)
		result.ExitCode = FrameworkFailureExitCode
		result.StandardError = fmt.Sprintf(timedOutTemplateConstant, resolvedRequest.TimeoutSeconds)

	case <-executionContext.Done():
		time.Sleep(salvageWindowDuration)
		result.StandardOutput = standardOutputAccumulator.snapshot()
		executor.terminateProcessGroup(process.ProcessIdentifier())
		reapProcess(waitChannel)
		result.ExitCode = FrameworkFailureExitCode
		result.StandardError = executionCancelledMessageConstant
	}

	result.CompletedAt = time.Now()
	result.ExecutionDuration = result.CompletedAt.Sub(result.StartedAt)
	executor.finalizeExecution(resolvedRequest, &result)
	return result
}

// prepareExecution applies defaults, validates the request, runs the warn-only
// safety scan, and notifies observers. A non-nil CommandResult reports a
// validation failure that short-circuits the execution.
func (executor *ShellExecutor) prepareExecution(request CommandRequest, startedAt time.Time) (CommandRequest, *CommandResult) {
	resolvedRequest := request

	if len(resolvedRequest.WorkingDirectory) == 0 {
		resolvedRequest.WorkingDirectory = executor.defaults.WorkingDirectory
	}

	if resolvedRequest.TimeoutSeconds < 0 {
		failureResult := frameworkFailureResult(resolvedRequest, startedAt, fmt.Sprintf(negativeTimeoutTemplateConstant, resolvedRequest.TimeoutSeconds))
		return resolvedRequest, &failureResult
	}
	if resolvedRequest.TimeoutSeconds == 0 {
		resolvedRequest.TimeoutSeconds = executor.defaults.TimeoutSeconds
	}
	if resolvedRequest.TimeoutSeconds == 0 {
		executor.logger.Warn(
			zeroTimeoutTreatedUnlimitedWarnConstant,
			zap.String(logFieldCommandConstant, resolvedRequest.Command),
		)
	}

	if len(resolvedRequest.WorkingDirectory) > 0 {
		directoryInformation, statError := os.Stat(resolvedRequest.WorkingDirectory)
		if statError != nil {
			failureResult := frameworkFailureResult(resolvedRequest, startedAt, fmt.Sprintf(workingDirectoryMissingTemplateConstant, resolvedRequest.WorkingDirectory))
			return resolvedRequest, &failureResult
		}
		if !directoryInformation.IsDir() {
			failureResult := frameworkFailureResult(resolvedRequest, startedAt, fmt.Sprintf(workingDirectoryNotDirTemplateConstant, resolvedRequest.WorkingDirectory))
			return resolvedRequest, &failureResult
		}
	}

	if matchedPatternLabels := executor.safetyScanner.Scan(resolvedRequest.Command); len(matchedPatternLabels) > 0 {
		executor.logger.Warn(
			destructiveCommandDetectedWarnConstant,
			zap.String(logFieldCommandConstant, resolvedRequest.Command),
			zap.Strings(logFieldMatchedPatternsConstant, matchedPatternLabels),
		)
	}

	executor.logger.Debug(
		executionStartingDebugMessageConstant,
		zap.String(logFieldCommandConstant, resolvedRequest.Command),
		zap.String(logFieldWorkingDirectoryConstant, resolvedRequest.WorkingDirectory),
		zap.Int(logFieldTimeoutSecondsConstant, resolvedRequest.TimeoutSeconds),
		zap.Int(logFieldEnvironmentVariableCountConstant, len(resolvedRequest.EnvironmentVariables)),
	)
	executor.eventObserver.ExecutionStarted(resolvedRequest)

	return resolvedRequest, nil
}

// finalizeExecution logs, audits, and notifies observers for a finished
// execution. Environment variable values never reach the audit trail.
func (executor *ShellExecutor) finalizeExecution(request CommandRequest, result *CommandResult) {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now()
		result.ExecutionDuration = result.CompletedAt.Sub(result.StartedAt)
	}

	executor.logger.Info(
		executionFinishedInfoMessageConstant,
		zap.String(logFieldCommandConstant, result.Command),
		zap.Int(logFieldExitCodeConstant, result.ExitCode),
		zap.Float64(logFieldDurationSecondsConstant, result.ExecutionSeconds()),
	)

	executor.auditRecorder.RecordExecution(auditlog.ExecutionRecord{
		ExecutionIdentifier:      auditlog.NewExecutionIdentifier(),
		Command:                  request.Command,
		WorkingDirectory:         request.WorkingDirectory,
		EnvironmentVariableCount: len(request.EnvironmentVariables),
		TimeoutSeconds:           request.TimeoutSeconds,
		ExitCode:                 result.ExitCode,
		Duration:                 result.ExecutionDuration,
		StandardOutputByteCount:  len(result.StandardOutput),
		StandardErrorByteCount:   len(result.StandardError),
		Succeeded:                result.Succeeded(),
	})

	executor.eventObserver.ExecutionCompleted(request, *result)
}

// launchFailureResult folds a spawn failure into the framework error taxonomy.
func (executor *ShellExecutor) launchFailureResult(request CommandRequest, startedAt time.Time, launchError error) CommandResult {
	var failureCause string
	switch {
	case errors.Is(launchError, exec.ErrNotFound) || errors.Is(launchError, fs.ErrNotExist):
		failureCause = fmt.Sprintf(commandNotFoundTemplateConstant, request.Command)
	case errors.Is(launchError, fs.ErrPermission):
		failureCause = fmt.Sprintf(permissionDeniedTemplateConstant, request.Command)
	case errors.Is(launchError, context.Canceled) || errors.Is(launchError, context.DeadlineExceeded):
		failureCause = executionCancelledMessageConstant
	default:
		failureCause = fmt.Sprintf(launchFailureTemplateConstant, launchError)
	}
	return frameworkFailureResult(request, startedAt, failureCause)
}

// frameworkFailureResult builds a failure result carrying the sentinel exit code.
func frameworkFailureResult(request CommandRequest, startedAt time.Time, failureCause string) CommandResult {
	completedAt := time.Now()
	return CommandResult{
		Command:           request.Command,
		ExitCode:          FrameworkFailureExitCode,
		StandardError:     failureCause,
		StartedAt:         startedAt,
		CompletedAt:       completedAt,
		ExecutionDuration: completedAt.Sub(startedAt),
	}
}

// terminateProcessGroup escalates SIGTERM to SIGKILL across the grace window.
func (executor *ShellExecutor) terminateProcessGroup(processIdentifier int) {
	terminationError := terminateGracefully(executor.terminator, processIdentifier, executor.defaults.TerminationGracePeriod)
	if terminationError != nil {
		executor.logger.Warn(processGroupTerminationFailedWarnMessage, zap.Error(terminationError))
	}
}

// reapProcess waits briefly for the wait goroutine so killed children do not
// linger as zombies.
func reapProcess(waitChannel <-chan waitOutcome) {
	select {
	case <-waitChannel:
	case <-time.After(pipeDrainWaitDuration):
	}
}

// chunkAccumulator collects streamed chunks behind a mutex so partial output
// can be salvaged at any moment.
type chunkAccumulator struct {
	mutex       sync.Mutex
	builder     strings.Builder
	doneChannel chan struct{}
}

// accumulateChunks drains the pipe through the streamer into an accumulator.
func (executor *ShellExecutor) accumulateChunks(executionContext context.Context, pipe io.Reader) *chunkAccumulator {
	accumulator := &chunkAccumulator{doneChannel: make(chan struct{})}
	if pipe == nil {
		close(accumulator.doneChannel)
		return accumulator
	}

	go func() {
		defer close(accumulator.doneChannel)
		for chunk := range executor.streamer.Stream(executionContext, pipe) {
			accumulator.mutex.Lock()
			accumulator.builder.WriteString(chunk)
			accumulator.mutex.Unlock()
		}
	}()

	return accumulator
}

func (accumulator *chunkAccumulator) snapshot() string {
	if accumulator == nil {
		return ""
	}
	accumulator.mutex.Lock()
	defer accumulator.mutex.Unlock()
	return accumulator.builder.String()
}

// awaitAccumulatorDrain waits for pipe exhaustion, bounded so a grandchild
// holding a pipe open cannot stall a finished execution forever.
func awaitAccumulatorDrain(accumulators ...*chunkAccumulator) {
	deadline := time.After(pipeDrainWaitDuration)
	for _, accumulator := range accumulators {
		if accumulator == nil {
			continue
		}
		select {
		case <-accumulator.doneChannel:
		case <-deadline:
		}
	}
}
