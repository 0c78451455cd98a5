package exec

import (
	"errors"
	"io"

	"github.com/spf13/cobra"

	"github.com/temirov/termrun/internal/execshell"
	"github.com/temirov/termrun/internal/utils"
	"github.com/temirov/termrun/internal/utils/flags"
)

const (
	streamCommandUseConstant              = "stream -- <command> [arguments...]"
	streamCommandShortDescriptionConstant = "Execute a shell command and print output chunks as they arrive"
	streamCommandLongDescriptionConstant  = "stream executes a command through the configured shell and writes output chunks the moment they are read, without waiting for completion. With --separated, stdout chunks go to standard output and stderr chunks to standard error."
	separatedFlagNameConstant             = "separated"
	separatedFlagUsageConstant            = "Keep stdout and stderr chunks on their own descriptors"
)

// StreamCommandBuilder assembles the stream command.
type StreamCommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	Launcher                     execshell.ProcessLauncher
	Terminator                   execshell.ProcessTerminator
}

// Build constructs the stream command.
func (builder *StreamCommandBuilder) Build() (*cobra.Command, error) {
	separatedStreams := false

	command := &cobra.Command{
		Use:   streamCommandUseConstant,
		Short: streamCommandShortDescriptionConstant,
		Long:  streamCommandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, separatedStreams)
		},
	}

	command.Flags().String(workingDirectoryFlagNameConstant, "", workingDirectoryFlagUsageConstant)
	command.Flags().StringArray(environmentFlagNameConstant, nil, environmentFlagUsageConstant)
	command.Flags().Int(timeoutFlagNameConstant, 0, timeoutFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), &separatedStreams, separatedFlagNameConstant, "", false, separatedFlagUsageConstant)

	return command, nil
}

func (builder *StreamCommandBuilder) run(command *cobra.Command, arguments []string, separatedStreams bool) error {
	if len(arguments) == 0 {
		if helpError := displayCommandHelp(command); helpError != nil {
			return helpError
		}
		return errors.New(commandArgumentsRequiredMessage)
	}

	configuration := builder.resolveConfiguration()
	logger := resolveLogger(builder.LoggerProvider)

	executor, executorError := assembleExecutor(
		logger,
		resolveHumanReadableLogging(builder.HumanReadableLoggingProvider),
		configuration,
		builder.Launcher,
		builder.Terminator,
	)
	if executorError != nil {
		return executorError
	}

	request, requestError := buildCommandRequest(command, arguments, configuration, true)
	if requestError != nil {
		return requestError
	}

	standardOutputWriter := utils.NewFlushingWriter(command.OutOrStdout())
	standardErrorWriter := utils.NewFlushingWriter(command.ErrOrStderr())

	if separatedStreams {
		return builder.streamSeparated(command, executor, request, standardOutputWriter, standardErrorWriter)
	}
	return builder.streamMerged(command, executor, request, standardOutputWriter)
}

func (builder *StreamCommandBuilder) streamMerged(command *cobra.Command, executor *execshell.ShellExecutor, request execshell.CommandRequest, output io.Writer) error {
	execution := executor.ExecuteWithStreaming(command.Context(), request)
	for chunk := range execution.Chunks() {
		if _, writeError := io.WriteString(output, chunk); writeError != nil {
			return writeError
		}
	}

	result, waitError := execution.Wait(command.Context())
	if waitError != nil {
		return waitError
	}
	return commandFailureError(result)
}

func (builder *StreamCommandBuilder) streamSeparated(command *cobra.Command, executor *execshell.ShellExecutor, request execshell.CommandRequest, standardOutput io.Writer, standardError io.Writer) error {
	execution := executor.ExecuteWithSeparatedStreaming(command.Context(), request)
	for pair := range execution.Pairs() {
		if len(pair.StandardOutputChunk) > 0 {
			if _, writeError := io.WriteString(standardOutput, pair.StandardOutputChunk); writeError != nil {
				return writeError
			}
		}
		if len(pair.StandardErrorChunk) > 0 {
			if _, writeError := io.WriteString(standardError, pair.StandardErrorChunk); writeError != nil {
				return writeError
			}
		}
	}

	result, waitError := execution.Wait(command.Context())
	if waitError != nil {
		return waitError
	}
	return commandFailureError(result)
}

func (builder *StreamCommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().sanitize()
}
