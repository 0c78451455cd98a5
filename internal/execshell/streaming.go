package execshell

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/temirov/termrun/internal/outputstream"
)

// StreamingExecution exposes a live merged-output chunk sequence alongside a
// result cell that a detached completion goroutine finalizes. All access to
// the cell goes through one mutex: the caller may snapshot mid-flight while
// the completion goroutine fills in exit code and timing.
type StreamingExecution struct {
	chunkChannel chan string
	doneChannel  chan struct{}
	forwardDone  chan struct{}
	resultMutex  sync.RWMutex
	result       CommandResult
}

// Chunks returns the live chunk sequence. Consuming it drains the subprocess
// pipe; the sequence is not restartable and closes when output ends.
func (execution *StreamingExecution) Chunks() <-chan string {
	return execution.chunkChannel
}

// Done closes once the result is final.
func (execution *StreamingExecution) Done() <-chan struct{} {
	return execution.doneChannel
}

// Snapshot returns the current state of the shared result, preliminary until
// Done closes. CapturedChunks holds exactly the fragments delivered so far.
func (execution *StreamingExecution) Snapshot() CommandResult {
	execution.resultMutex.RLock()
	defer execution.resultMutex.RUnlock()
	snapshotResult := execution.result
	snapshotResult.CapturedChunks = append([]string{}, execution.result.CapturedChunks...)
	return snapshotResult
}

// Wait blocks until the result is final or the context ends.
func (execution *StreamingExecution) Wait(waitContext context.Context) (CommandResult, error) {
	select {
	case <-execution.doneChannel:
		return execution.Snapshot(), nil
	case <-waitContext.Done():
		return execution.Snapshot(), waitContext.Err()
	}
}

func (execution *StreamingExecution) appendChunk(chunk string) {
	execution.resultMutex.Lock()
	defer execution.resultMutex.Unlock()
	execution.result.CapturedChunks = append(execution.result.CapturedChunks, chunk)
}

func (execution *StreamingExecution) finalize(mutateResult func(result *CommandResult)) {
	execution.resultMutex.Lock()
	mutateResult(&execution.result)
	execution.result.CompletedAt = time.Now()
	execution.result.ExecutionDuration = execution.result.CompletedAt.Sub(execution.result.StartedAt)
	execution.resultMutex.Unlock()
	close(execution.doneChannel)
}

func (execution *StreamingExecution) joinedChunks() string {
	execution.resultMutex.RLock()
	defer execution.resultMutex.RUnlock()
	return strings.Join(execution.result.CapturedChunks, "")
}

// ExecuteWithStreaming spawns the command and returns immediately with a live
// merged stdout/stderr chunk sequence plus the preliminary result. A detached
// completion goroutine races process exit against the timeout, terminates the
// process group on expiry, and finalizes the shared result.
func (executor *ShellExecutor) ExecuteWithStreaming(executionContext context.Context, request CommandRequest) *StreamingExecution {
	startedAt := time.Now()
	execution := &StreamingExecution{
		chunkChannel: make(chan string),
		doneChannel:  make(chan struct{}),
		forwardDone:  make(chan struct{}),
		result:       CommandResult{Command: request.Command, StartedAt: startedAt},
	}

	resolvedRequest, validationFailure := executor.prepareExecution(request, startedAt)
	if validationFailure != nil {
		close(execution.chunkChannel)
		close(execution.forwardDone)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = validationFailure.ExitCode
			result.StandardError = validationFailure.StandardError
		})
		executor.finalizeExecution(resolvedRequest, validationFailure)
		return execution
	}

	process, launchError := executor.launcher.Launch(LaunchSpecification{
		Command:              resolvedRequest.Command,
		WorkingDirectory:     resolvedRequest.WorkingDirectory,
		EnvironmentVariables: resolvedRequest.EnvironmentVariables,
		CapturePipes:         true,
		MergeOutputStreams:   true,
	})
	if launchError != nil {
		failureResult := executor.launchFailureResult(resolvedRequest, startedAt, launchError)
		close(execution.chunkChannel)
		close(execution.forwardDone)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = failureResult.ExitCode
			result.StandardError = failureResult.StandardError
		})
		executor.finalizeExecution(resolvedRequest, &failureResult)
		return execution
	}

	// Forwarder: every fragment lands in the shared buffer before the
	// consumer sees it, so Snapshot always reflects delivered chunks.
	go func() {
		defer close(execution.chunkChannel)
		defer close(execution.forwardDone)
		for chunk := range executor.streamer.Stream(executionContext, process.StandardOutput()) {
			execution.appendChunk(chunk)
			select {
			case execution.chunkChannel <- chunk:
			case <-executionContext.Done():
				return
			}
		}
	}()

	go executor.superviseStreamingCompletion(executionContext, resolvedRequest, process, execution)

	return execution
}

// superviseStreamingCompletion finalizes a streaming execution once the
// process exits, times out, or the context is cancelled.
func (executor *ShellExecutor) superviseStreamingCompletion(executionContext context.Context, request CommandRequest, process RunningProcess, execution *StreamingExecution) {
	waitChannel := make(chan waitOutcome, 1)
	go func() {
		exitCode, waitError := process.Wait()
		waitChannel <- waitOutcome{exitCode: exitCode, waitError: waitError}
	}()

	var timeoutChannel <-chan time.Time
	if request.TimeoutSeconds > 0 {
		timeoutTimer := time.NewTimer(time.Duration(request.TimeoutSeconds) * time.Second)
		defer timeoutTimer.Stop()
		timeoutChannel = timeoutTimer.C
	}

	select {
	case outcome := <-waitChannel:
		awaitForwarder(execution.forwardDone)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = outcome.exitCode
			result.StandardOutput = strings.Join(result.CapturedChunks, "")
			if outcome.waitError != nil {
				result.ExitCode = FrameworkFailureExitCode
				result.StandardError = fmt.Sprintf(waitFailureTemplateConstant, outcome.waitError)
			}
		})

	case <-timeoutChannel:
		time.Sleep(salvageWindowDuration)
		executor.terminateProcessGroup(process.ProcessIdentifier())
		reapProcess(waitChannel)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = FrameworkFailureExitCode
			result.StandardOutput = strings.Join(result.CapturedChunks, "")
			result.StandardError = fmt.Sprintf(timedOutTemplateConstant, request.TimeoutSeconds)
		})

	case <-executionContext.Done():
		executor.terminateProcessGroup(process.ProcessIdentifier())
		reapProcess(waitChannel)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = FrameworkFailureExitCode
			result.StandardOutput = strings.Join(result.CapturedChunks, "")
			result.StandardError = executionCancelledMessageConstant
		})
	}

	finalResult := execution.Snapshot()
	executor.finalizeExecution(request, &finalResult)
}

// awaitForwarder gives the forwarder a bounded window to deliver the tail of
// the stream after process exit.
func awaitForwarder(forwardDone <-chan struct{}) {
	select {
	case <-forwardDone:
	case <-time.After(pipeDrainWaitDuration):
	}
}

// SeparatedStreamingExecution mirrors StreamingExecution for callers that need
// stdout and stderr fragments kept apart. Ordering holds within each channel
// only; pairs interleave with best-effort fairness.
type SeparatedStreamingExecution struct {
	pairChannel           chan outputstream.ChunkPair
	doneChannel           chan struct{}
	forwardDone           chan struct{}
	resultMutex           sync.RWMutex
	result                CommandResult
	standardOutputHistory []string
	standardErrorHistory  []string
}

// Pairs returns the live pair sequence; each pair populates exactly one side.
func (execution *SeparatedStreamingExecution) Pairs() <-chan outputstream.ChunkPair {
	return execution.pairChannel
}

// Done closes once the result is final.
func (execution *SeparatedStreamingExecution) Done() <-chan struct{} {
	return execution.doneChannel
}

// Snapshot returns the current state of the shared result.
func (execution *SeparatedStreamingExecution) Snapshot() CommandResult {
	execution.resultMutex.RLock()
	defer execution.resultMutex.RUnlock()
	snapshotResult := execution.result
	snapshotResult.CapturedChunks = append([]string{}, execution.result.CapturedChunks...)
	return snapshotResult
}

// Wait blocks until the result is final or the context ends.
func (execution *SeparatedStreamingExecution) Wait(waitContext context.Context) (CommandResult, error) {
	select {
	case <-execution.doneChannel:
		return execution.Snapshot(), nil
	case <-waitContext.Done():
		return execution.Snapshot(), waitContext.Err()
	}
}

func (execution *SeparatedStreamingExecution) appendPair(pair outputstream.ChunkPair) {
	execution.resultMutex.Lock()
	defer execution.resultMutex.Unlock()
	if len(pair.StandardOutputChunk) > 0 {
		execution.standardOutputHistory = append(execution.standardOutputHistory, pair.StandardOutputChunk)
		execution.result.CapturedChunks = append(execution.result.CapturedChunks, pair.StandardOutputChunk)
	}
	if len(pair.StandardErrorChunk) > 0 {
		execution.standardErrorHistory = append(execution.standardErrorHistory, pair.StandardErrorChunk)
		execution.result.CapturedChunks = append(execution.result.CapturedChunks, pair.StandardErrorChunk)
	}
}

func (execution *SeparatedStreamingExecution) finalize(mutateResult func(result *CommandResult)) {
	execution.resultMutex.Lock()
	execution.result.StandardOutput = strings.Join(execution.standardOutputHistory, "")
	execution.result.StandardError = strings.Join(execution.standardErrorHistory, "")
	mutateResult(&execution.result)
	execution.result.CompletedAt = time.Now()
	execution.result.ExecutionDuration = execution.result.CompletedAt.Sub(execution.result.StartedAt)
	execution.resultMutex.Unlock()
	close(execution.doneChannel)
}

// ExecuteWithSeparatedStreaming spawns the command and returns immediately
// with a live (stdout, stderr) pair sequence. The completion goroutine
// reconstructs the unified output strings from the pair history.
func (executor *ShellExecutor) ExecuteWithSeparatedStreaming(executionContext context.Context, request CommandRequest) *SeparatedStreamingExecution {
	startedAt := time.Now()
	execution := &SeparatedStreamingExecution{
		pairChannel: make(chan outputstream.ChunkPair),
		doneChannel: make(chan struct{}),
		forwardDone: make(chan struct{}),
		result:      CommandResult{Command: request.Command, StartedAt: startedAt},
	}

	resolvedRequest, validationFailure := executor.prepareExecution(request, startedAt)
	if validationFailure != nil {
		close(execution.pairChannel)
		close(execution.forwardDone)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = validationFailure.ExitCode
			result.StandardError = validationFailure.StandardError
		})
		executor.finalizeExecution(resolvedRequest, validationFailure)
		return execution
	}

	process, launchError := executor.launcher.Launch(LaunchSpecification{
		Command:              resolvedRequest.Command,
		WorkingDirectory:     resolvedRequest.WorkingDirectory,
		EnvironmentVariables: resolvedRequest.EnvironmentVariables,
		CapturePipes:         true,
	})
	if launchError != nil {
		failureResult := executor.launchFailureResult(resolvedRequest, startedAt, launchError)
		close(execution.pairChannel)
		close(execution.forwardDone)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = failureResult.ExitCode
			result.StandardError = failureResult.StandardError
		})
		executor.finalizeExecution(resolvedRequest, &failureResult)
		return execution
	}

	go func() {
		defer close(execution.pairChannel)
		defer close(execution.forwardDone)
		for pair := range executor.streamer.StreamSeparated(executionContext, process.StandardOutput(), process.StandardError()) {
			execution.appendPair(pair)
			select {
			case execution.pairChannel <- pair:
			case <-executionContext.Done():
				return
			}
		}
	}()

	go executor.superviseSeparatedCompletion(executionContext, resolvedRequest, process, execution)

	return execution
}

func (executor *ShellExecutor) superviseSeparatedCompletion(executionContext context.Context, request CommandRequest, process RunningProcess, execution *SeparatedStreamingExecution) {
	waitChannel := make(chan waitOutcome, 1)
	go func() {
		exitCode, waitError := process.Wait()
		waitChannel <- waitOutcome{exitCode: exitCode, waitError: waitError}
	}()

	var timeoutChannel <-chan time.Time
	if request.TimeoutSeconds > 0 {
		timeoutTimer := time.NewTimer(time.Duration(request.TimeoutSeconds) * time.Second)
		defer timeoutTimer.Stop()
		timeoutChannel = timeoutTimer.C
	}

	select {
	case outcome := <-waitChannel:
		awaitForwarder(execution.forwardDone)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = outcome.exitCode
			if outcome.waitError != nil {
				result.ExitCode = FrameworkFailureExitCode
				result.StandardError = fmt.Sprintf(waitFailureTemplateConstant, outcome.waitError)
			}
		})

	case <-timeoutChannel:
		time.Sleep(salvageWindowDuration)
		executor.terminateProcessGroup(process.ProcessIdentifier())
		reapProcess(waitChannel)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = FrameworkFailureExitCode
			result.StandardError = fmt.Sprintf(timedOutTemplateConstant, request.TimeoutSeconds)
		})

	case <-executionContext.Done():
		executor.terminateProcessGroup(process.ProcessIdentifier())
		reapProcess(waitChannel)
		execution.finalize(func(result *CommandResult) {
			result.ExitCode = FrameworkFailureExitCode
			result.StandardError = executionCancelledMessageConstant
		})
	}

	finalResult := execution.Snapshot()
	executor.finalizeExecution(request, &finalResult)
}
