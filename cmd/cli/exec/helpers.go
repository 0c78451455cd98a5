package exec

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/termrun/internal/auditlog"
	"github.com/temirov/termrun/internal/execshell"
	"github.com/temirov/termrun/internal/outputstream"
	"github.com/temirov/termrun/internal/safety"
	"github.com/temirov/termrun/internal/utils/flags"
	pathutils "github.com/temirov/termrun/internal/utils/path"
)

const (
	commandArgumentSeparatorConstant          = " "
	executorConstructionErrorTemplateConstant = "unable to construct executor: %w"
	streamerConstructionErrorTemplateConstant = "unable to construct output streamer: %w"
	environmentFlagParseErrorTemplateConstant = "unable to parse environment assignments: %w"
	resultEncodeErrorTemplateConstant         = "unable to encode execution result: %w"
	commandFailedErrorTemplateConstant        = "command exited with code %d"
	resultJSONIndentConstant                  = "  "
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func resolveHumanReadableLogging(provider func() bool) func() bool {
	if provider == nil {
		return func() bool { return false }
	}
	return provider
}

// joinCommandArguments recombines the positional arguments after "--" into
// the shell command line handed to the interpreter.
func joinCommandArguments(arguments []string) string {
	return strings.TrimSpace(strings.Join(arguments, commandArgumentSeparatorConstant))
}

// assembleExecutor builds a fully wired ShellExecutor from configuration and
// optional injected collaborators.
func assembleExecutor(
	logger *zap.Logger,
	humanReadableLoggingProvider func() bool,
	configuration CommandConfiguration,
	launcher execshell.ProcessLauncher,
	terminator execshell.ProcessTerminator,
) (*execshell.ShellExecutor, error) {
	streamer, streamerError := outputstream.NewOutputStreamer(logger, configuration.BufferSizeBytes, configuration.MaximumOutputSizeBytes)
	if streamerError != nil {
		return nil, fmt.Errorf(streamerConstructionErrorTemplateConstant, streamerError)
	}

	if launcher == nil {
		launcher = execshell.NewOSProcessLauncher()
	}
	if terminator == nil {
		terminator = execshell.NewProcessTerminator()
	}

	executor, executorError := execshell.NewShellExecutor(execshell.ExecutorDependencies{
		Logger:        logger,
		Launcher:      launcher,
		Terminator:    terminator,
		Streamer:      streamer,
		SafetyScanner: safety.NewCommandScanner(logger),
		AuditRecorder: auditlog.NewRecorder(logger, humanReadableLoggingProvider),
		Defaults: execshell.ExecutionDefaults{
			WorkingDirectory: pathutils.NewWorkingDirectoryResolver().Resolve(configuration.WorkingDirectory),
			TimeoutSeconds:   configuration.TimeoutSeconds,
		},
	})
	if executorError != nil {
		return nil, fmt.Errorf(executorConstructionErrorTemplateConstant, executorError)
	}

	return executor, nil
}

// buildCommandRequest merges flag values over the configured defaults.
func buildCommandRequest(command *cobra.Command, arguments []string, configuration CommandConfiguration, captureOutput bool) (execshell.CommandRequest, error) {
	environmentAssignments, _ := command.Flags().GetStringArray(environmentFlagNameConstant)
	environmentVariables, environmentParseError := flags.ParseEnvironmentAssignments(environmentAssignments)
	if environmentParseError != nil {
		return execshell.CommandRequest{}, fmt.Errorf(environmentFlagParseErrorTemplateConstant, environmentParseError)
	}

	workingDirectory := configuration.WorkingDirectory
	if command.Flags().Changed(workingDirectoryFlagNameConstant) {
		workingDirectory, _ = command.Flags().GetString(workingDirectoryFlagNameConstant)
	}

	timeoutSeconds := configuration.TimeoutSeconds
	if command.Flags().Changed(timeoutFlagNameConstant) {
		timeoutSeconds, _ = command.Flags().GetInt(timeoutFlagNameConstant)
	}

	return execshell.CommandRequest{
		Command:              joinCommandArguments(arguments),
		WorkingDirectory:     pathutils.NewWorkingDirectoryResolver().Resolve(workingDirectory),
		EnvironmentVariables: environmentVariables,
		TimeoutSeconds:       timeoutSeconds,
		CaptureOutput:        captureOutput,
	}, nil
}

// executionResultPayload is the JSON wire shape printed by the run command.
type executionResultPayload struct {
	Command           string  `json:"command"`
	ExitCode          int     `json:"exit_code"`
	StandardOutput    string  `json:"stdout"`
	StandardError     string  `json:"stderr"`
	StartedAt         string  `json:"started_at"`
	CompletedAt       string  `json:"completed_at"`
	ExecutionSeconds  float64 `json:"execution_seconds"`
	Success           bool    `json:"success"`
}

func renderExecutionResult(output io.Writer, result execshell.CommandResult) error {
	payload := executionResultPayload{
		Command:          result.Command,
		ExitCode:         result.ExitCode,
		StandardOutput:   result.StandardOutput,
		StandardError:    result.StandardError,
		StartedAt:        result.StartedAt.Format(time.RFC3339Nano),
		CompletedAt:      result.CompletedAt.Format(time.RFC3339Nano),
		ExecutionSeconds: result.ExecutionSeconds(),
		Success:          result.Succeeded(),
	}

	encoder := json.NewEncoder(output)
	encoder.SetIndent("", resultJSONIndentConstant)
	if encodeError := encoder.Encode(payload); encodeError != nil {
		return fmt.Errorf(resultEncodeErrorTemplateConstant, encodeError)
	}
	return nil
}

func commandFailureError(result execshell.CommandResult) error {
	if result.Succeeded() {
		return nil
	}
	return fmt.Errorf(commandFailedErrorTemplateConstant, result.ExitCode)
}

func displayCommandHelp(command *cobra.Command) error {
	if command == nil {
		return nil
	}
	return command.Help()
}
