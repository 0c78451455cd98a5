package procregistry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/termrun/internal/execshell"
	"github.com/temirov/termrun/internal/outputstream"
)

const (
	processIdentifierTemplateConstant         = "proc_%s_%d"
	processIdentifierUUIDLengthConstant       = 8
	processStartedInfoMessageConstant         = "background process started"
	processKilledInfoMessageConstant          = "background process killed"
	processRestartedInfoMessageConstant       = "background process restarted"
	processCleanedUpInfoMessageConstant       = "aged-out process records removed"
	registryShutdownInfoMessageConstant       = "process registry shut down"
	killSignalFailureWarnMessageConstant      = "kill signal delivery failed"
	logFieldProcessIdentifierConstant         = "process_id"
	logFieldNewProcessIdentifierConstant      = "new_process_id"
	logFieldOSProcessIdentifierConstant       = "pid"
	logFieldCommandConstant                   = "command"
	logFieldRemovedRecordCountConstant        = "removed_record_count"
	logFieldKilledProcessCountConstant        = "killed_process_count"
	processNotFoundTemplateConstant           = "process %s not found"
	outputNotCapturedTemplateConstant         = "no output captured for process %s"
	defaultKillGracePeriodDurationForRegistry = 2 * time.Second
	killProbeIntervalConstant                 = 50 * time.Millisecond
)

// Sentinel errors surfaced by registry lookups.
var (
	ErrProcessNotFound   = errors.New("process not found")
	ErrOutputNotCaptured = errors.New("process output not captured")
)

// Construction-time configuration failures.
var (
	ErrLoggerNotConfigured            = errors.New("process registry logger not configured")
	ErrProcessLauncherNotConfigured   = errors.New("process registry launcher not configured")
	ErrProcessTerminatorNotConfigured = errors.New("process registry terminator not configured")
	ErrOutputStreamerNotConfigured    = errors.New("process registry output streamer not configured")
)

// trackedProcess pairs the public record with the live handle and the
// accumulating output buffers. Buffers are guarded by the owning registry's
// mutex for record state and by their own mutex for appends.
type trackedProcess struct {
	record           ProcessRecord
	process          execshell.RunningProcess
	captureRequested bool

	outputMutex           sync.Mutex
	standardOutputBuilder strings.Builder
	standardErrorBuilder  strings.Builder

	exitObserved bool
	exitCode     int
	waitDone     chan struct{}
}

func (tracked *trackedProcess) appendStandardOutput(chunk string) {
	tracked.outputMutex.Lock()
	defer tracked.outputMutex.Unlock()
	tracked.standardOutputBuilder.WriteString(chunk)
}

func (tracked *trackedProcess) appendStandardError(chunk string) {
	tracked.outputMutex.Lock()
	defer tracked.outputMutex.Unlock()
	tracked.standardErrorBuilder.WriteString(chunk)
}

func (tracked *trackedProcess) outputSnapshot() (string, string) {
	tracked.outputMutex.Lock()
	defer tracked.outputMutex.Unlock()
	return tracked.standardOutputBuilder.String(), tracked.standardErrorBuilder.String()
}

// RegistryDependencies enumerates the collaborators a ProcessRegistry requires.
// Launcher and terminator are the same primitives the shell executor uses.
type RegistryDependencies struct {
	Logger     *zap.Logger
	Launcher   execshell.ProcessLauncher
	Terminator execshell.ProcessTerminator
	Streamer   *outputstream.OutputStreamer
	// KillGracePeriod bounds how long SIGTERM gets before SIGKILL.
	KillGracePeriod time.Duration
}

// ProcessRegistry supervises zero or more detached background processes. All
// record-map mutation happens under one mutex; concurrent Start, Kill, and
// List calls are safe.
type ProcessRegistry struct {
	logger          *zap.Logger
	launcher        execshell.ProcessLauncher
	terminator      execshell.ProcessTerminator
	streamer        *outputstream.OutputStreamer
	killGracePeriod time.Duration

	stateMutex       sync.Mutex
	trackedProcesses map[string]*trackedProcess
}

// NewProcessRegistry validates required collaborators and assembles a registry.
func NewProcessRegistry(dependencies RegistryDependencies) (*ProcessRegistry, error) {
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

	killGracePeriod := dependencies.KillGracePeriod
	if killGracePeriod <= 0 {
		killGracePeriod = defaultKillGracePeriodDurationForRegistry
	}

	return &ProcessRegistry{
		logger:           dependencies.Logger,
		launcher:         dependencies.Launcher,
		terminator:       dependencies.Terminator,
		streamer:         dependencies.Streamer,
		killGracePeriod:  killGracePeriod,
		trackedProcesses: make(map[string]*trackedProcess),
	}, nil
}

// NewProcessIdentifier generates an opaque handle distinct from the OS pid.
func NewProcessIdentifier() string {
	return fmt.Sprintf(
		processIdentifierTemplateConstant,
		strings.ReplaceAll(uuid.NewString(), "-", "")[:processIdentifierUUIDLengthConstant],
		time.Now().Unix(),
	)
}

// Start spawns a detached process in its own process group and begins
// tracking it. When captureOutput is set, detached drains fill the record's
// buffers until exit.
func (registry *ProcessRegistry) Start(startContext context.Context, command string, workingDirectory string, environmentVariables map[string]string, captureOutput bool) (ProcessRecord, error) {
	process, launchError := registry.launcher.Launch(execshell.LaunchSpecification{
		Command:              command,
		WorkingDirectory:     workingDirectory,
		EnvironmentVariables: environmentVariables,
		CapturePipes:         captureOutput,
	})
	if launchError != nil {
		return ProcessRecord{}, launchError
	}

	tracked := &trackedProcess{
		record: ProcessRecord{
			ProcessIdentifier:    NewProcessIdentifier(),
			PID:                  process.ProcessIdentifier(),
			Command:              command,
			Status:               ProcessStatusRunning,
			StartedAt:            time.Now(),
			WorkingDirectory:     workingDirectory,
			EnvironmentVariables: cloneEnvironment(environmentVariables),
		},
		process:          process,
		captureRequested: captureOutput,
		waitDone:         make(chan struct{}),
	}

	registry.stateMutex.Lock()
	registry.trackedProcesses[tracked.record.ProcessIdentifier] = tracked
	registry.stateMutex.Unlock()

	if captureOutput {
		go registry.drainIntoBuffer(startContext, process.StandardOutput(), tracked.appendStandardOutput)
		go registry.drainIntoBuffer(startContext, process.StandardError(), tracked.appendStandardError)
	}

	go registry.awaitProcessExit(tracked)

	registry.logger.Info(
		processStartedInfoMessageConstant,
		zap.String(logFieldProcessIdentifierConstant, tracked.record.ProcessIdentifier),
		zap.Int(logFieldOSProcessIdentifierConstant, tracked.record.PID),
		zap.String(logFieldCommandConstant, command),
	)

	return tracked.record, nil
}

func (registry *ProcessRegistry) drainIntoBuffer(drainContext context.Context, pipe io.Reader, appendChunk func(string)) {
	if pipe == nil {
		return
	}
	for chunk := range registry.streamer.Stream(drainContext, pipe) {
		appendChunk(chunk)
	}
}

// awaitProcessExit reaps the child and flips the record to its terminal
// status unless an explicit kill already claimed it.
func (registry *ProcessRegistry) awaitProcessExit(tracked *trackedProcess) {
	exitCode, _ := tracked.process.Wait()

	registry.stateMutex.Lock()
	defer registry.stateMutex.Unlock()

	tracked.exitObserved = true
	tracked.exitCode = exitCode
	close(tracked.waitDone)

	if tracked.record.Status == ProcessStatusKilled {
		return
	}
	if exitCode == 0 {
		tracked.record.Status = ProcessStatusCompleted
	} else {
		tracked.record.Status = ProcessStatusFailed
	}
}

// List refreshes every record's status and returns the current snapshot.
func (registry *ProcessRegistry) List(listContext context.Context) []ProcessRecord {
	registry.stateMutex.Lock()
	defer registry.stateMutex.Unlock()

	records := make([]ProcessRecord, 0, len(registry.trackedProcesses))
	for _, tracked := range registry.trackedProcesses {
		registry.refreshStatusLocked(tracked)
		records = append(records, tracked.record)
	}
	return records
}

// Status refreshes and returns one record; unknown identifiers report
// ErrProcessNotFound.
func (registry *ProcessRegistry) Status(statusContext context.Context, processIdentifier string) (ProcessRecord, error) {
	registry.stateMutex.Lock()
	defer registry.stateMutex.Unlock()

	tracked, recordExists := registry.trackedProcesses[processIdentifier]
	if !recordExists {
		return ProcessRecord{}, fmt.Errorf(processNotFoundTemplateConstant+": %w", processIdentifier, ErrProcessNotFound)
	}

	registry.refreshStatusLocked(tracked)
	return tracked.record, nil
}

// refreshStatusLocked probes liveness for records not yet terminal. Killed is
// sticky; an unreachable pid without an observed exit reports Failed.
func (registry *ProcessRegistry) refreshStatusLocked(tracked *trackedProcess) {
	if tracked.record.Status.Terminal() {
		return
	}

	if tracked.exitObserved {
		if tracked.exitCode == 0 {
			tracked.record.Status = ProcessStatusCompleted
		} else {
			tracked.record.Status = ProcessStatusFailed
		}
		return
	}

	if registry.terminator.Alive(tracked.record.PID) {
		tracked.record.Status = ProcessStatusRunning
		return
	}
	tracked.record.Status = ProcessStatusFailed
}

// Kill terminates a running process group: SIGTERM, grace window, then
// SIGKILL. It is idempotent: killing an unknown, already-killed, or
// already-exited process returns false and never fails.
func (registry *ProcessRegistry) Kill(killContext context.Context, processIdentifier string) bool {
	registry.stateMutex.Lock()
	tracked, recordExists := registry.trackedProcesses[processIdentifier]
	if recordExists {
		registry.refreshStatusLocked(tracked)
	}
	if !recordExists || tracked.record.Status != ProcessStatusRunning {
		registry.stateMutex.Unlock()
		return false
	}
	tracked.record.Status = ProcessStatusKilled
	processToSignal := tracked.record.PID
	registry.stateMutex.Unlock()

	if terminationError := registry.terminator.TerminateGroup(processToSignal); terminationError != nil {
		registry.logger.Warn(killSignalFailureWarnMessageConstant, zap.Error(terminationError))
	}

	graceDeadline := time.Now().Add(registry.killGracePeriod)
	for time.Now().Before(graceDeadline) {
		if !registry.terminator.Alive(processToSignal) {
			break
		}
		time.Sleep(killProbeIntervalConstant)
	}
	if registry.terminator.Alive(processToSignal) {
		if killError := registry.terminator.KillGroup(processToSignal); killError != nil {
			registry.logger.Warn(killSignalFailureWarnMessageConstant, zap.Error(killError))
		}
	}

	registry.logger.Info(
		processKilledInfoMessageConstant,
		zap.String(logFieldProcessIdentifierConstant, processIdentifier),
		zap.Int(logFieldOSProcessIdentifierConstant, processToSignal),
	)
	return true
}

// Restart kills the identified process if still running and starts a fresh
// record with the same command, directory, environment, and capture choice.
// The new record carries a new identifier; the old record stays queryable in
// its terminal state.
func (registry *ProcessRegistry) Restart(restartContext context.Context, processIdentifier string) (ProcessRecord, error) {
	registry.stateMutex.Lock()
	tracked, recordExists := registry.trackedProcesses[processIdentifier]
	if !recordExists {
		registry.stateMutex.Unlock()
		return ProcessRecord{}, fmt.Errorf(processNotFoundTemplateConstant+": %w", processIdentifier, ErrProcessNotFound)
	}
	originalRecord := tracked.record
	captureRequested := tracked.captureRequested
	registry.stateMutex.Unlock()

	if originalRecord.Status == ProcessStatusRunning {
		registry.Kill(restartContext, processIdentifier)
	}

	newRecord, startError := registry.Start(
		restartContext,
		originalRecord.Command,
		originalRecord.WorkingDirectory,
		originalRecord.EnvironmentVariables,
		captureRequested,
	)
	if startError != nil {
		return ProcessRecord{}, startError
	}

	registry.logger.Info(
		processRestartedInfoMessageConstant,
		zap.String(logFieldProcessIdentifierConstant, processIdentifier),
		zap.String(logFieldNewProcessIdentifierConstant, newRecord.ProcessIdentifier),
	)
	return newRecord, nil
}

// Output snapshots whatever has been captured so far. Processes started
// without capture report ErrOutputNotCaptured; unknown identifiers report
// ErrProcessNotFound.
func (registry *ProcessRegistry) Output(outputContext context.Context, processIdentifier string) (string, string, error) {
	registry.stateMutex.Lock()
	tracked, recordExists := registry.trackedProcesses[processIdentifier]
	registry.stateMutex.Unlock()

	if !recordExists {
		return "", "", fmt.Errorf(processNotFoundTemplateConstant+": %w", processIdentifier, ErrProcessNotFound)
	}
	if !tracked.captureRequested {
		return "", "", fmt.Errorf(outputNotCapturedTemplateConstant+": %w", processIdentifier, ErrOutputNotCaptured)
	}

	standardOutput, standardError := tracked.outputSnapshot()
	return standardOutput, standardError, nil
}

// Cleanup removes terminal-state records older than maxAge and returns how
// many were dropped.
func (registry *ProcessRegistry) Cleanup(maxAge time.Duration) int {
	registry.stateMutex.Lock()
	defer registry.stateMutex.Unlock()

	removedRecordCount := 0
	for processIdentifier, tracked := range registry.trackedProcesses {
		registry.refreshStatusLocked(tracked)
		if tracked.record.Status.Terminal() && time.Since(tracked.record.StartedAt) > maxAge {
			delete(registry.trackedProcesses, processIdentifier)
			removedRecordCount++
		}
	}

	if removedRecordCount > 0 {
		registry.logger.Info(
			processCleanedUpInfoMessageConstant,
			zap.Int(logFieldRemovedRecordCountConstant, removedRecordCount),
		)
	}
	return removedRecordCount
}

// Shutdown kills every running process and clears all tracking state. Used
// once at process teardown.
func (registry *ProcessRegistry) Shutdown(shutdownContext context.Context) {
	registry.stateMutex.Lock()
	runningIdentifiers := make([]string, 0, len(registry.trackedProcesses))
	for processIdentifier, tracked := range registry.trackedProcesses {
		registry.refreshStatusLocked(tracked)
		if tracked.record.Status == ProcessStatusRunning {
			runningIdentifiers = append(runningIdentifiers, processIdentifier)
		}
	}
	registry.stateMutex.Unlock()

	for _, processIdentifier := range runningIdentifiers {
		registry.Kill(shutdownContext, processIdentifier)
	}

	registry.stateMutex.Lock()
	registry.trackedProcesses = make(map[string]*trackedProcess)
	registry.stateMutex.Unlock()

	registry.logger.Info(
		registryShutdownInfoMessageConstant,
		zap.Int(logFieldKilledProcessCountConstant, len(runningIdentifiers)),
	)
}

func cloneEnvironment(environmentVariables map[string]string) map[string]string {
	if environmentVariables == nil {
		return map[string]string{}
	}
	cloned := make(map[string]string, len(environmentVariables))
	for environmentKey, environmentValue := range environmentVariables {
		cloned[environmentKey] = environmentValue
	}
	return cloned
}
