package processes

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/termrun/internal/procregistry"
)

func newTestCommandBuilder(testInstance *testing.T) *CommandBuilder {
	testInstance.Helper()

	builder := &CommandBuilder{
		ConfigurationProvider: func() Configuration {
			configuration := DefaultConfiguration()
			configuration.KillGracePeriod = 500 * time.Millisecond
			return configuration
		},
	}

	testInstance.Cleanup(func() {
		registry, registryError := builder.registry()
		if registryError == nil && registry != nil {
			registry.Shutdown(context.Background())
		}
	})

	return builder
}

func executeProcessesCommand(testInstance *testing.T, builder *CommandBuilder, arguments ...string) (string, error) {
	testInstance.Helper()

	command, buildError := builder.Build()
	require.NoError(testInstance, buildError)

	outputBuffer := &bytes.Buffer{}
	command.SetOut(outputBuffer)
	command.SetErr(&bytes.Buffer{})
	command.SetContext(context.Background())
	command.SetArgs(arguments)

	executionError := command.Execute()
	return outputBuffer.String(), executionError
}

func decodeLeadingProcessRecord(testInstance *testing.T, commandOutput string) processRecordPayload {
	testInstance.Helper()

	payload := processRecordPayload{}
	decoder := json.NewDecoder(bytes.NewBufferString(commandOutput))
	require.NoError(testInstance, decoder.Decode(&payload))
	return payload
}

func TestStartPrintsTrackingRecord(testInstance *testing.T) {
	builder := newTestCommandBuilder(testInstance)

	commandOutput, executionError := executeProcessesCommand(testInstance, builder, "start", "sleep 5")
	require.NoError(testInstance, executionError)

	record := decodeLeadingProcessRecord(testInstance, commandOutput)
	require.Contains(testInstance, record.ProcessIdentifier, "proc_")
	require.Greater(testInstance, record.PID, 0)
	require.Equal(testInstance, "sleep 5", record.Command)
	require.Equal(testInstance, string(procregistry.ProcessStatusRunning), record.Status)
}

func TestStartWaitPrintsFinalRecordAndCapturedOutput(testInstance *testing.T) {
	builder := newTestCommandBuilder(testInstance)

	commandOutput, executionError := executeProcessesCommand(testInstance, builder, "start", "--wait", "echo wait-test")
	require.NoError(testInstance, executionError)

	record := decodeLeadingProcessRecord(testInstance, commandOutput)
	require.Equal(testInstance, string(procregistry.ProcessStatusCompleted), record.Status)
	require.Contains(testInstance, commandOutput, capturedOutputHeaderConstant)
	require.Contains(testInstance, commandOutput, "wait-test")
}

func TestStartRequiresCommandArguments(testInstance *testing.T) {
	builder := newTestCommandBuilder(testInstance)

	_, executionError := executeProcessesCommand(testInstance, builder, "start")
	require.EqualError(testInstance, executionError, commandArgumentsRequiredMessage)
}

func TestProcessLifecycleAcrossSubcommands(testInstance *testing.T) {
	builder := newTestCommandBuilder(testInstance)

	startOutput, startError := executeProcessesCommand(testInstance, builder, "start", "sleep 5")
	require.NoError(testInstance, startError)
	record := decodeLeadingProcessRecord(testInstance, startOutput)

	listOutput, listError := executeProcessesCommand(testInstance, builder, "list")
	require.NoError(testInstance, listError)
	require.Contains(testInstance, listOutput, record.ProcessIdentifier)

	statusOutput, statusError := executeProcessesCommand(testInstance, builder, "status", record.ProcessIdentifier)
	require.NoError(testInstance, statusError)
	statusRecord := decodeLeadingProcessRecord(testInstance, statusOutput)
	require.Equal(testInstance, string(procregistry.ProcessStatusRunning), statusRecord.Status)

	killOutput, killError := executeProcessesCommand(testInstance, builder, "kill", record.ProcessIdentifier)
	require.NoError(testInstance, killError)
	require.Equal(testInstance, "killed: true\n", killOutput)

	killedStatusOutput, killedStatusError := executeProcessesCommand(testInstance, builder, "status", record.ProcessIdentifier)
	require.NoError(testInstance, killedStatusError)
	killedRecord := decodeLeadingProcessRecord(testInstance, killedStatusOutput)
	require.Equal(testInstance, string(procregistry.ProcessStatusKilled), killedRecord.Status)

	repeatKillOutput, repeatKillError := executeProcessesCommand(testInstance, builder, "kill", record.ProcessIdentifier)
	require.NoError(testInstance, repeatKillError)
	require.Equal(testInstance, "killed: false\n", repeatKillOutput)
}

func TestOutputPrintsCapturedSections(testInstance *testing.T) {
	builder := newTestCommandBuilder(testInstance)

	startOutput, startError := executeProcessesCommand(testInstance, builder, "start", "--wait", "echo out-line; echo err-line 1>&2")
	require.NoError(testInstance, startError)
	record := decodeLeadingProcessRecord(testInstance, startOutput)

	commandOutput, outputError := executeProcessesCommand(testInstance, builder, "output", record.ProcessIdentifier)
	require.NoError(testInstance, outputError)
	require.Contains(testInstance, commandOutput, standardOutputSectionHeaderConstant)
	require.Contains(testInstance, commandOutput, "out-line")
	require.Contains(testInstance, commandOutput, standardErrorSectionHeaderConstant)
	require.Contains(testInstance, commandOutput, "err-line")
}

func TestRestartAssignsNewIdentifier(testInstance *testing.T) {
	builder := newTestCommandBuilder(testInstance)

	startOutput, startError := executeProcessesCommand(testInstance, builder, "start", "sleep 5")
	require.NoError(testInstance, startError)
	originalRecord := decodeLeadingProcessRecord(testInstance, startOutput)

	restartOutput, restartError := executeProcessesCommand(testInstance, builder, "restart", originalRecord.ProcessIdentifier)
	require.NoError(testInstance, restartError)
	restartedRecord := decodeLeadingProcessRecord(testInstance, restartOutput)

	require.NotEqual(testInstance, originalRecord.ProcessIdentifier, restartedRecord.ProcessIdentifier)
	require.Equal(testInstance, originalRecord.Command, restartedRecord.Command)
	require.Equal(testInstance, string(procregistry.ProcessStatusRunning), restartedRecord.Status)
}

func TestCleanupRemovesFinishedRecords(testInstance *testing.T) {
	builder := newTestCommandBuilder(testInstance)

	startOutput, startError := executeProcessesCommand(testInstance, builder, "start", "--wait", "true")
	require.NoError(testInstance, startError)
	record := decodeLeadingProcessRecord(testInstance, startOutput)
	require.Equal(testInstance, string(procregistry.ProcessStatusCompleted), record.Status)

	cleanupOutput, cleanupError := executeProcessesCommand(testInstance, builder, "cleanup", "--max-age", "0s")
	require.NoError(testInstance, cleanupError)
	require.Equal(testInstance, "removed: 1\n", cleanupOutput)

	listOutput, listError := executeProcessesCommand(testInstance, builder, "list")
	require.NoError(testInstance, listError)
	require.NotContains(testInstance, listOutput, record.ProcessIdentifier)
}

func TestStatusUnknownProcessReturnsError(testInstance *testing.T) {
	builder := newTestCommandBuilder(testInstance)

	_, statusError := executeProcessesCommand(testInstance, builder, "status", "proc_missing_0")
	require.ErrorIs(testInstance, statusError, procregistry.ErrProcessNotFound)
}
