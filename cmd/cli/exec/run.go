package exec

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/temirov/termrun/internal/execshell"
	"github.com/temirov/termrun/internal/utils"
	"github.com/temirov/termrun/internal/utils/flags"
)

const (
	runCommandUseConstant              = "run -- <command> [arguments...]"
	runCommandShortDescriptionConstant = "Execute a shell command and print its captured result"
	runCommandLongDescriptionConstant  = "run executes a command through the configured shell, waits for completion, and prints the captured result as JSON. Failures never abort the command; they are reported inside the result."
	workingDirectoryFlagNameConstant   = "cwd"
	workingDirectoryFlagUsageConstant  = "Working directory for the command"
	environmentFlagNameConstant        = "env"
	environmentFlagUsageConstant       = "Environment variable override as KEY=VALUE (repeatable)"
	timeoutFlagNameConstant            = "timeout"
	timeoutFlagUsageConstant           = "Timeout in seconds; 0 disables the timeout"
	captureFlagNameConstant            = "capture"
	captureFlagUsageConstant           = "Capture command output"
	commandArgumentsRequiredMessage    = "command required; pass it after --"
)

// RunCommandBuilder assembles the run command.
type RunCommandBuilder struct {
	LoggerProvider               LoggerProvider
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() CommandConfiguration
	Launcher                     execshell.ProcessLauncher
	Terminator                   execshell.ProcessTerminator
}

// Build constructs the run command.
func (builder *RunCommandBuilder) Build() (*cobra.Command, error) {
	captureOutput := true

	command := &cobra.Command{
		Use:   runCommandUseConstant,
		Short: runCommandShortDescriptionConstant,
		Long:  runCommandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.run(command, arguments, captureOutput)
		},
	}

	command.Flags().String(workingDirectoryFlagNameConstant, "", workingDirectoryFlagUsageConstant)
	command.Flags().StringArray(environmentFlagNameConstant, nil, environmentFlagUsageConstant)
	command.Flags().Int(timeoutFlagNameConstant, 0, timeoutFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), &captureOutput, captureFlagNameConstant, "", true, captureFlagUsageConstant)

	return command, nil
}

func (builder *RunCommandBuilder) run(command *cobra.Command, arguments []string, captureOutput bool) error {
	if len(arguments) == 0 {
		if helpError := displayCommandHelp(command); helpError != nil {
			return helpError
		}
		return errors.New(commandArgumentsRequiredMessage)
	}

	configuration := builder.resolveConfiguration()
	if !command.Flags().Changed(captureFlagNameConstant) {
		captureOutput = configuration.CaptureOutput
	}
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

	request, requestError := buildCommandRequest(command, arguments, configuration, captureOutput)
	if requestError != nil {
		return requestError
	}

	result := executor.Execute(command.Context(), request)

	output := utils.NewFlushingWriter(command.OutOrStdout())
	if renderError := renderExecutionResult(output, result); renderError != nil {
		return renderError
	}

	return commandFailureError(result)
}

func (builder *RunCommandBuilder) resolveConfiguration() CommandConfiguration {
	if builder.ConfigurationProvider == nil {
		return DefaultCommandConfiguration()
	}
	return builder.ConfigurationProvider().sanitize()
}
