package processes

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/termrun/internal/utils"
)

const (
	listCommandUseConstant                 = "list"
	listCommandShortDescriptionConstant    = "List tracked processes with refreshed statuses"
	statusCommandUseConstant               = "status <process-id>"
	statusCommandShortDescriptionConstant  = "Show the refreshed record for one process"
	outputCommandUseConstant               = "output <process-id>"
	outputCommandShortDescriptionConstant  = "Print the output captured so far for one process"
	processIdentifierArgumentCountConstant = 1
	standardOutputSectionHeaderConstant    = "--- stdout ---"
	standardErrorSectionHeaderConstant     = "--- stderr ---"
)

func (builder *CommandBuilder) buildListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   listCommandUseConstant,
		Short: listCommandShortDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			registry, registryError := builder.registry()
			if registryError != nil {
				return registryError
			}

			records := registry.List(command.Context())
			return renderProcessRecords(utils.NewFlushingWriter(command.OutOrStdout()), records)
		},
	}
}

func (builder *CommandBuilder) buildStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   statusCommandUseConstant,
		Short: statusCommandShortDescriptionConstant,
		Args:  cobra.ExactArgs(processIdentifierArgumentCountConstant),
		RunE: func(command *cobra.Command, arguments []string) error {
			registry, registryError := builder.registry()
			if registryError != nil {
				return registryError
			}

			record, statusError := registry.Status(command.Context(), strings.TrimSpace(arguments[0]))
			if statusError != nil {
				return statusError
			}
			return renderProcessRecord(utils.NewFlushingWriter(command.OutOrStdout()), record)
		},
	}
}

func (builder *CommandBuilder) buildOutputCommand() *cobra.Command {
	return &cobra.Command{
		Use:   outputCommandUseConstant,
		Short: outputCommandShortDescriptionConstant,
		Args:  cobra.ExactArgs(processIdentifierArgumentCountConstant),
		RunE: func(command *cobra.Command, arguments []string) error {
			registry, registryError := builder.registry()
			if registryError != nil {
				return registryError
			}

			standardOutput, standardError, outputError := registry.Output(command.Context(), strings.TrimSpace(arguments[0]))
			if outputError != nil {
				return outputError
			}

			output := utils.NewFlushingWriter(command.OutOrStdout())
			fmt.Fprintln(output, standardOutputSectionHeaderConstant)
			writeSection(output, standardOutput)
			fmt.Fprintln(output, standardErrorSectionHeaderConstant)
			writeSection(output, standardError)
			return nil
		},
	}
}

func writeSection(output io.Writer, content string) {
	if len(content) == 0 {
		return
	}
	io.WriteString(output, content)
	if !strings.HasSuffix(content, trailingNewlineConstant) {
		io.WriteString(output, trailingNewlineConstant)
	}
}
