package processes

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/temirov/termrun/internal/procregistry"
	"github.com/temirov/termrun/internal/utils"
	"github.com/temirov/termrun/internal/utils/flags"
	pathutils "github.com/temirov/termrun/internal/utils/path"
)

const (
	startCommandUseConstant              = "start -- <command> [arguments...]"
	startCommandShortDescriptionConstant = "Start a detached background process"
	startCommandLongDescriptionConstant  = "start spawns a command in its own process group and prints the tracking record. With --wait the command blocks until the process exits and prints the final record and any captured output."
	workingDirectoryFlagNameConstant     = "cwd"
	workingDirectoryFlagUsageConstant    = "Working directory for the process"
	environmentFlagNameConstant          = "env"
	environmentFlagUsageConstant         = "Environment variable override as KEY=VALUE (repeatable)"
	captureFlagNameConstant              = "capture"
	captureFlagUsageConstant             = "Capture process output for later retrieval"
	waitFlagNameConstant                 = "wait"
	waitFlagUsageConstant                = "Block until the process reaches a terminal state"
	commandArgumentsRequiredMessage      = "command required; pass it after --"
	environmentParseErrorTemplate        = "unable to parse environment assignments: %w"
	startFailureErrorTemplate            = "unable to start process: %w"
	statusPollInterval                   = 100 * time.Millisecond
	capturedOutputHeaderConstant         = "--- captured stdout ---"
	capturedErrorHeaderConstant          = "--- captured stderr ---"
	trailingNewlineConstant              = "\n"
)

func (builder *CommandBuilder) buildStartCommand() *cobra.Command {
	waitForExit := false
	captureOutput := true

	command := &cobra.Command{
		Use:   startCommandUseConstant,
		Short: startCommandShortDescriptionConstant,
		Long:  startCommandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return builder.runStart(command, arguments, captureOutput, waitForExit)
		},
	}

	command.Flags().String(workingDirectoryFlagNameConstant, "", workingDirectoryFlagUsageConstant)
	command.Flags().StringArray(environmentFlagNameConstant, nil, environmentFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), &captureOutput, captureFlagNameConstant, "", true, captureFlagUsageConstant)
	flags.AddToggleFlag(command.Flags(), &waitForExit, waitFlagNameConstant, "", false, waitFlagUsageConstant)

	return command
}

func (builder *CommandBuilder) runStart(command *cobra.Command, arguments []string, captureOutput bool, waitForExit bool) error {
	if len(arguments) == 0 {
		if helpError := displayCommandHelp(command); helpError != nil {
			return helpError
		}
		return errors.New(commandArgumentsRequiredMessage)
	}

	registry, registryError := builder.registry()
	if registryError != nil {
		return registryError
	}

	if !command.Flags().Changed(captureFlagNameConstant) {
		captureOutput = builder.resolveConfiguration().CaptureOutput
	}

	environmentAssignments, _ := command.Flags().GetStringArray(environmentFlagNameConstant)
	environmentVariables, environmentParseError := flags.ParseEnvironmentAssignments(environmentAssignments)
	if environmentParseError != nil {
		return fmt.Errorf(environmentParseErrorTemplate, environmentParseError)
	}

	workingDirectory, _ := command.Flags().GetString(workingDirectoryFlagNameConstant)
	resolvedWorkingDirectory := pathutils.NewWorkingDirectoryResolver().Resolve(workingDirectory)

	commandLine := strings.TrimSpace(strings.Join(arguments, " "))
	record, startError := registry.Start(command.Context(), commandLine, resolvedWorkingDirectory, environmentVariables, captureOutput)
	if startError != nil {
		return fmt.Errorf(startFailureErrorTemplate, startError)
	}

	output := utils.NewFlushingWriter(command.OutOrStdout())

	if !waitForExit {
		return renderProcessRecord(output, record)
	}

	finalRecord, waitError := builder.awaitTerminalState(command, registry, record.ProcessIdentifier)
	if waitError != nil {
		return waitError
	}
	if renderError := renderProcessRecord(output, finalRecord); renderError != nil {
		return renderError
	}

	if captureOutput {
		return builder.printCapturedOutput(command, registry, output, record.ProcessIdentifier)
	}
	return nil
}

func (builder *CommandBuilder) awaitTerminalState(command *cobra.Command, registry *procregistry.ProcessRegistry, processIdentifier string) (procregistry.ProcessRecord, error) {
	for {
		record, statusError := registry.Status(command.Context(), processIdentifier)
		if statusError != nil {
			return procregistry.ProcessRecord{}, statusError
		}
		if record.Status.Terminal() {
			return record, nil
		}

		select {
		case <-command.Context().Done():
			return procregistry.ProcessRecord{}, command.Context().Err()
		case <-time.After(statusPollInterval):
		}
	}
}

func (builder *CommandBuilder) printCapturedOutput(command *cobra.Command, registry *procregistry.ProcessRegistry, output io.Writer, processIdentifier string) error {
	standardOutput, standardError, outputError := registry.Output(command.Context(), processIdentifier)
	if outputError != nil {
		return outputError
	}

	if len(standardOutput) > 0 {
		fmt.Fprintln(output, capturedOutputHeaderConstant)
		io.WriteString(output, standardOutput)
		if !strings.HasSuffix(standardOutput, trailingNewlineConstant) {
			io.WriteString(output, trailingNewlineConstant)
		}
	}
	if len(standardError) > 0 {
		fmt.Fprintln(output, capturedErrorHeaderConstant)
		io.WriteString(output, standardError)
		if !strings.HasSuffix(standardError, trailingNewlineConstant) {
			io.WriteString(output, trailingNewlineConstant)
		}
	}
	return nil
}
