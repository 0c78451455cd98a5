package execshell_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/temirov/termrun/internal/execshell"
)

const (
	testStreamingCommandConstant          = "printf first; sleep 1; printf second"
	testStreamingTimeoutCommandConstant   = "printf partial; sleep 5"
	testStreamingTimeoutStderrConstant    = "Command timed out after 1 seconds"
	testStreamingFirstFragmentConstant    = "first"
	testStreamingJoinedOutputConstant     = "firstsecond"
	testStreamingPartialFragmentConstant  = "partial"
)

func TestExecuteWithStreamingDeliversChunksBeforeCompletion(testInstance *testing.T) {
	executor := newTestExecutor(testInstance, execshell.ExecutionDefaults{TimeoutSeconds: 10}, nil)

	execution := executor.ExecuteWithStreaming(context.Background(), execshell.CommandRequest{
		Command: testStreamingCommandConstant,
	})

	collectedChunks := []string{}
	firstChunkObserved := false
	for chunk := range execution.Chunks() {
		collectedChunks = append(collectedChunks, chunk)

		if !firstChunkObserved && strings.Contains(chunk, testStreamingFirstFragmentConstant) {
			firstChunkObserved = true

			// The process is still sleeping; the result must not be final yet
			// and the snapshot must already contain the delivered fragment.
			select {
			case <-execution.Done():
				testInstance.Fatal("result finalized while the process was still running")
			default:
			}

			snapshot := execution.Snapshot()
			require.Contains(testInstance, strings.Join(snapshot.CapturedChunks, ""), testStreamingFirstFragmentConstant)
		}
	}
	require.True(testInstance, firstChunkObserved)

	result, waitError := execution.Wait(context.Background())
	require.NoError(testInstance, waitError)
	require.Equal(testInstance, 0, result.ExitCode)
	require.Equal(testInstance, testStreamingJoinedOutputConstant, result.StandardOutput)
	require.Equal(testInstance, testStreamingJoinedOutputConstant, strings.Join(collectedChunks, ""))
}

func TestExecuteWithStreamingTimeoutPreservesPartialOutput(testInstance *testing.T) {
	executor := newTestExecutor(testInstance, execshell.ExecutionDefaults{TimeoutSeconds: 10}, nil)

	executionStart := time.Now()
	execution := executor.ExecuteWithStreaming(context.Background(), execshell.CommandRequest{
		Command:        testStreamingTimeoutCommandConstant,
		TimeoutSeconds: 1,
	})

	collectedChunks := []string{}
	for chunk := range execution.Chunks() {
		collectedChunks = append(collectedChunks, chunk)
	}

	result, waitError := execution.Wait(context.Background())
	observedDuration := time.Since(executionStart)

	require.NoError(testInstance, waitError)
	require.Equal(testInstance, execshell.FrameworkFailureExitCode, result.ExitCode)
	require.Equal(testInstance, testStreamingTimeoutStderrConstant, result.StandardError)
	require.Contains(testInstance, result.StandardOutput, testStreamingPartialFragmentConstant)
	require.Contains(testInstance, strings.Join(collectedChunks, ""), testStreamingPartialFragmentConstant)
	require.Less(testInstance, observedDuration, 4*time.Second)
}

func TestExecuteWithStreamingValidationFailureFinalizesImmediately(testInstance *testing.T) {
	executor := newTestExecutor(testInstance, execshell.ExecutionDefaults{TimeoutSeconds: 10}, nil)

	execution := executor.ExecuteWithStreaming(context.Background(), execshell.CommandRequest{
		Command:        "echo never",
		TimeoutSeconds: -1,
	})

	for range execution.Chunks() {
		testInstance.Fatal("no chunks expected for a rejected request")
	}

	result, waitError := execution.Wait(context.Background())
	require.NoError(testInstance, waitError)
	require.Equal(testInstance, execshell.FrameworkFailureExitCode, result.ExitCode)
	require.Contains(testInstance, result.StandardError, "timeout must not be negative")
}

func TestExecuteWithSeparatedStreamingKeepsSidesApart(testInstance *testing.T) {
	executor := newTestExecutor(testInstance, execshell.ExecutionDefaults{TimeoutSeconds: 10}, nil)

	execution := executor.ExecuteWithSeparatedStreaming(context.Background(), execshell.CommandRequest{
		Command: testSeparatedOutputCommandConstant,
	})

	var standardOutputBuilder strings.Builder
	var standardErrorBuilder strings.Builder
	for pair := range execution.Pairs() {
		standardOutputBuilder.WriteString(pair.StandardOutputChunk)
		standardErrorBuilder.WriteString(pair.StandardErrorChunk)
	}

	result, waitError := execution.Wait(context.Background())
	require.NoError(testInstance, waitError)
	require.Equal(testInstance, 0, result.ExitCode)
	require.Equal(testInstance, "out\n", result.StandardOutput)
	require.Equal(testInstance, "err\n", result.StandardError)
	require.Equal(testInstance, "out\n", standardOutputBuilder.String())
	require.Equal(testInstance, "err\n", standardErrorBuilder.String())
}
