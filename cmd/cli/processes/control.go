package processes

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/temirov/termrun/internal/utils"
)

const (
	killCommandUseConstant                 = "kill <process-id>"
	killCommandShortDescriptionConstant    = "Terminate a running process group"
	restartCommandUseConstant              = "restart <process-id>"
	restartCommandShortDescriptionConstant = "Kill a process if running and start it again under a new identifier"
	cleanupCommandUseConstant              = "cleanup"
	cleanupCommandShortDescriptionConstant = "Drop terminal-state records older than the retention window"
	maxAgeFlagNameConstant                 = "max-age"
	maxAgeFlagUsageConstant                = "Retention window for finished process records"
	killedOutputTemplateConstant           = "killed: %t\n"
	removedOutputTemplateConstant          = "removed: %d\n"
)

func (builder *CommandBuilder) buildKillCommand() *cobra.Command {
	return &cobra.Command{
		Use:   killCommandUseConstant,
		Short: killCommandShortDescriptionConstant,
		Args:  cobra.ExactArgs(processIdentifierArgumentCountConstant),
		RunE: func(command *cobra.Command, arguments []string) error {
			registry, registryError := builder.registry()
			if registryError != nil {
				return registryError
			}

			killed := registry.Kill(command.Context(), strings.TrimSpace(arguments[0]))
			fmt.Fprintf(utils.NewFlushingWriter(command.OutOrStdout()), killedOutputTemplateConstant, killed)
			return nil
		},
	}
}

func (builder *CommandBuilder) buildRestartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   restartCommandUseConstant,
		Short: restartCommandShortDescriptionConstant,
		Args:  cobra.ExactArgs(processIdentifierArgumentCountConstant),
		RunE: func(command *cobra.Command, arguments []string) error {
			registry, registryError := builder.registry()
			if registryError != nil {
				return registryError
			}

			newRecord, restartError := registry.Restart(command.Context(), strings.TrimSpace(arguments[0]))
			if restartError != nil {
				return restartError
			}
			return renderProcessRecord(utils.NewFlushingWriter(command.OutOrStdout()), newRecord)
		},
	}
}

func (builder *CommandBuilder) buildCleanupCommand() *cobra.Command {
	var maxAge time.Duration

	command := &cobra.Command{
		Use:   cleanupCommandUseConstant,
		Short: cleanupCommandShortDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			registry, registryError := builder.registry()
			if registryError != nil {
				return registryError
			}

			retentionWindow := maxAge
			if !command.Flags().Changed(maxAgeFlagNameConstant) {
				retentionWindow = builder.resolveConfiguration().CleanupMaxAge
			}

			removedRecordCount := registry.Cleanup(retentionWindow)
			fmt.Fprintf(utils.NewFlushingWriter(command.OutOrStdout()), removedOutputTemplateConstant, removedRecordCount)
			return nil
		},
	}

	command.Flags().DurationVar(&maxAge, maxAgeFlagNameConstant, 0, maxAgeFlagUsageConstant)

	return command
}
