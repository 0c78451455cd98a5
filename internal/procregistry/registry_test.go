package procregistry_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/temirov/termrun/internal/execshell"
	"github.com/temirov/termrun/internal/outputstream"
	"github.com/temirov/termrun/internal/procregistry"
)

const (
	testLoggerValidationCaseNameConstant     = "logger_validation"
	testLauncherValidationCaseNameConstant   = "launcher_validation"
	testTerminatorValidationCaseNameConstant = "terminator_validation"
	testStreamerValidationCaseNameConstant   = "streamer_validation"
	testSuccessfulValidationCaseNameConstant = "successful_initialization"
	testShortLivedCommandConstant            = "echo done"
	testFailingCommandConstant               = "exit 3"
	testLongRunningCommandConstant           = "sleep 5"
	testEarlyOutputCommandConstant           = "echo early; sleep 5"
	testProcessIdentifierPrefixConstant      = "proc_"
	testStatusPollTimeoutConstant            = 5 * time.Second
	testStatusPollIntervalConstant           = 50 * time.Millisecond
)

func newTestRegistry(testInstance *testing.T) *procregistry.ProcessRegistry {
	testInstance.Helper()

	streamer, streamerError := outputstream.NewOutputStreamer(zap.NewNop(), outputstream.DefaultBufferSizeBytes, outputstream.DefaultMaximumOutputSizeBytes)
	require.NoError(testInstance, streamerError)

	registry, registryError := procregistry.NewProcessRegistry(procregistry.RegistryDependencies{
		Logger:          zap.NewNop(),
		Launcher:        execshell.NewOSProcessLauncher(),
		Terminator:      execshell.NewProcessTerminator(),
		Streamer:        streamer,
		KillGracePeriod: time.Second,
	})
	require.NoError(testInstance, registryError)

	testInstance.Cleanup(func() {
		registry.Shutdown(context.Background())
	})

	return registry
}

func awaitProcessStatus(testInstance *testing.T, registry *procregistry.ProcessRegistry, processIdentifier string, expectedStatus procregistry.ProcessStatus) procregistry.ProcessRecord {
	testInstance.Helper()

	var latestRecord procregistry.ProcessRecord
	require.Eventually(testInstance, func() bool {
		record, statusError := registry.Status(context.Background(), processIdentifier)
		if statusError != nil {
			return false
		}
		latestRecord = record
		return record.Status == expectedStatus
	}, testStatusPollTimeoutConstant, testStatusPollIntervalConstant)

	return latestRecord
}

func TestNewProcessRegistryInitializationValidation(testInstance *testing.T) {
	streamer, streamerError := outputstream.NewOutputStreamer(zap.NewNop(), outputstream.DefaultBufferSizeBytes, outputstream.DefaultMaximumOutputSizeBytes)
	require.NoError(testInstance, streamerError)

	completeDependencies := func() procregistry.RegistryDependencies {
		return procregistry.RegistryDependencies{
			Logger:     zap.NewNop(),
			Launcher:   execshell.NewOSProcessLauncher(),
			Terminator: execshell.NewProcessTerminator(),
			Streamer:   streamer,
		}
	}

	testCases := []struct {
		name          string
		mutate        func(*procregistry.RegistryDependencies)
		expectedError error
	}{
		{
			name:          testLoggerValidationCaseNameConstant,
			mutate:        func(dependencies *procregistry.RegistryDependencies) { dependencies.Logger = nil },
			expectedError: procregistry.ErrLoggerNotConfigured,
		},
		{
			name:          testLauncherValidationCaseNameConstant,
			mutate:        func(dependencies *procregistry.RegistryDependencies) { dependencies.Launcher = nil },
			expectedError: procregistry.ErrProcessLauncherNotConfigured,
		},
		{
			name:          testTerminatorValidationCaseNameConstant,
			mutate:        func(dependencies *procregistry.RegistryDependencies) { dependencies.Terminator = nil },
			expectedError: procregistry.ErrProcessTerminatorNotConfigured,
		},
		{
			name:          testStreamerValidationCaseNameConstant,
			mutate:        func(dependencies *procregistry.RegistryDependencies) { dependencies.Streamer = nil },
			expectedError: procregistry.ErrOutputStreamerNotConfigured,
		},
		{
			name:   testSuccessfulValidationCaseNameConstant,
			mutate: func(*procregistry.RegistryDependencies) {},
		},
	}

	for _, testCase := range testCases {
		testInstance.Run(testCase.name, func(testInstance *testing.T) {
			dependencies := completeDependencies()
			testCase.mutate(&dependencies)

			registry, creationError := procregistry.NewProcessRegistry(dependencies)
			if testCase.expectedError != nil {
				require.ErrorIs(testInstance, creationError, testCase.expectedError)
				require.Nil(testInstance, registry)
				return
			}
			require.NoError(testInstance, creationError)
			require.NotNil(testInstance, registry)
		})
	}
}

func TestNewProcessIdentifierShape(testInstance *testing.T) {
	firstIdentifier := procregistry.NewProcessIdentifier()
	secondIdentifier := procregistry.NewProcessIdentifier()

	require.True(testInstance, strings.HasPrefix(firstIdentifier, testProcessIdentifierPrefixConstant))
	require.Len(testInstance, strings.Split(firstIdentifier, "_"), 3)
	require.NotEqual(testInstance, firstIdentifier, secondIdentifier)
}

func TestStartTracksAndCompletesProcess(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	record, startError := registry.Start(context.Background(), testShortLivedCommandConstant, "", nil, true)
	require.NoError(testInstance, startError)
	require.NotEmpty(testInstance, record.ProcessIdentifier)
	require.Positive(testInstance, record.PID)
	require.Equal(testInstance, procregistry.ProcessStatusRunning, record.Status)

	finalRecord := awaitProcessStatus(testInstance, registry, record.ProcessIdentifier, procregistry.ProcessStatusCompleted)
	require.Equal(testInstance, testShortLivedCommandConstant, finalRecord.Command)

	standardOutput, standardError, outputError := registry.Output(context.Background(), record.ProcessIdentifier)
	require.NoError(testInstance, outputError)
	require.Equal(testInstance, "done\n", standardOutput)
	require.Empty(testInstance, standardError)
}

func TestStartReportsFailedForNonZeroExit(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	record, startError := registry.Start(context.Background(), testFailingCommandConstant, "", nil, false)
	require.NoError(testInstance, startError)

	awaitProcessStatus(testInstance, registry, record.ProcessIdentifier, procregistry.ProcessStatusFailed)
}

func TestKillIsIdempotent(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	record, startError := registry.Start(context.Background(), testLongRunningCommandConstant, "", nil, false)
	require.NoError(testInstance, startError)

	require.True(testInstance, registry.Kill(context.Background(), record.ProcessIdentifier))
	require.False(testInstance, registry.Kill(context.Background(), record.ProcessIdentifier))

	killedRecord, statusError := registry.Status(context.Background(), record.ProcessIdentifier)
	require.NoError(testInstance, statusError)
	require.Equal(testInstance, procregistry.ProcessStatusKilled, killedRecord.Status)
}

func TestKillUnknownProcessReturnsFalse(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)
	require.False(testInstance, registry.Kill(context.Background(), "proc_missing_0"))
}

func TestRestartIssuesFreshIdentifierAndKeepsOldRecord(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	originalRecord, startError := registry.Start(context.Background(), testLongRunningCommandConstant, "", nil, false)
	require.NoError(testInstance, startError)

	restartedRecord, restartError := registry.Restart(context.Background(), originalRecord.ProcessIdentifier)
	require.NoError(testInstance, restartError)
	require.NotEqual(testInstance, originalRecord.ProcessIdentifier, restartedRecord.ProcessIdentifier)
	require.Equal(testInstance, originalRecord.Command, restartedRecord.Command)
	require.Equal(testInstance, procregistry.ProcessStatusRunning, restartedRecord.Status)

	oldRecord, statusError := registry.Status(context.Background(), originalRecord.ProcessIdentifier)
	require.NoError(testInstance, statusError)
	require.Equal(testInstance, procregistry.ProcessStatusKilled, oldRecord.Status)
}

func TestRestartUnknownProcessFails(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	_, restartError := registry.Restart(context.Background(), "proc_missing_0")
	require.ErrorIs(testInstance, restartError, procregistry.ErrProcessNotFound)
}

func TestOutputAfterKillMidRun(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	record, startError := registry.Start(context.Background(), testEarlyOutputCommandConstant, "", nil, true)
	require.NoError(testInstance, startError)

	require.Eventually(testInstance, func() bool {
		standardOutput, _, outputError := registry.Output(context.Background(), record.ProcessIdentifier)
		return outputError == nil && strings.Contains(standardOutput, "early")
	}, testStatusPollTimeoutConstant, testStatusPollIntervalConstant)

	require.True(testInstance, registry.Kill(context.Background(), record.ProcessIdentifier))

	standardOutput, _, outputError := registry.Output(context.Background(), record.ProcessIdentifier)
	require.NoError(testInstance, outputError)
	require.Contains(testInstance, standardOutput, "early")
}

func TestOutputErrors(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	_, _, unknownError := registry.Output(context.Background(), "proc_missing_0")
	require.ErrorIs(testInstance, unknownError, procregistry.ErrProcessNotFound)

	record, startError := registry.Start(context.Background(), testShortLivedCommandConstant, "", nil, false)
	require.NoError(testInstance, startError)

	_, _, notCapturedError := registry.Output(context.Background(), record.ProcessIdentifier)
	require.ErrorIs(testInstance, notCapturedError, procregistry.ErrOutputNotCaptured)
}

func TestStatusUnknownProcessFails(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	_, statusError := registry.Status(context.Background(), "proc_missing_0")
	require.ErrorIs(testInstance, statusError, procregistry.ErrProcessNotFound)
}

func TestListReflectsTrackedProcesses(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)
	require.Empty(testInstance, registry.List(context.Background()))

	firstRecord, firstStartError := registry.Start(context.Background(), testShortLivedCommandConstant, "", nil, false)
	require.NoError(testInstance, firstStartError)
	secondRecord, secondStartError := registry.Start(context.Background(), testLongRunningCommandConstant, "", nil, false)
	require.NoError(testInstance, secondStartError)

	listedIdentifiers := map[string]bool{}
	for _, record := range registry.List(context.Background()) {
		listedIdentifiers[record.ProcessIdentifier] = true
	}
	require.True(testInstance, listedIdentifiers[firstRecord.ProcessIdentifier])
	require.True(testInstance, listedIdentifiers[secondRecord.ProcessIdentifier])
}

func TestCleanupRemovesAgedTerminalRecords(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	finishedRecord, finishedStartError := registry.Start(context.Background(), testShortLivedCommandConstant, "", nil, false)
	require.NoError(testInstance, finishedStartError)
	runningRecord, runningStartError := registry.Start(context.Background(), testLongRunningCommandConstant, "", nil, false)
	require.NoError(testInstance, runningStartError)

	awaitProcessStatus(testInstance, registry, finishedRecord.ProcessIdentifier, procregistry.ProcessStatusCompleted)

	removedRecordCount := registry.Cleanup(0)
	require.Equal(testInstance, 1, removedRecordCount)

	_, removedStatusError := registry.Status(context.Background(), finishedRecord.ProcessIdentifier)
	require.ErrorIs(testInstance, removedStatusError, procregistry.ErrProcessNotFound)

	_, runningStatusError := registry.Status(context.Background(), runningRecord.ProcessIdentifier)
	require.NoError(testInstance, runningStatusError)
}

func TestShutdownKillsRunningProcesses(testInstance *testing.T) {
	registry := newTestRegistry(testInstance)

	_, startError := registry.Start(context.Background(), testLongRunningCommandConstant, "", nil, false)
	require.NoError(testInstance, startError)

	registry.Shutdown(context.Background())
	require.Empty(testInstance, registry.List(context.Background()))
}
