package processes

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/termrun/internal/execshell"
	"github.com/temirov/termrun/internal/outputstream"
	"github.com/temirov/termrun/internal/procregistry"
)

const (
	groupCommandUseConstant              = "ps"
	groupCommandShortDescriptionConstant = "Manage tracked background processes"
	groupCommandLongDescriptionConstant  = "ps starts and supervises detached background processes. The registry lives for the duration of one invocation; long-lived hosts embed the registry package directly."
	registryConstructionErrorTemplate    = "unable to construct process registry: %w"
	streamerConstructionErrorTemplate    = "unable to construct output streamer: %w"
)

// RegistryProvider constructs the process registry used by the subcommands.
type RegistryProvider func(*zap.Logger, Configuration) (*procregistry.ProcessRegistry, error)

// CommandBuilder assembles the ps command group.
type CommandBuilder struct {
	LoggerProvider        LoggerProvider
	ConfigurationProvider func() Configuration
	RegistryProvider      RegistryProvider

	registryOnce     sync.Once
	registryInstance *procregistry.ProcessRegistry
	registryError    error
}

// Build constructs the ps command and its subcommands.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	groupCommand := &cobra.Command{
		Use:   groupCommandUseConstant,
		Short: groupCommandShortDescriptionConstant,
		Long:  groupCommandLongDescriptionConstant,
		RunE: func(command *cobra.Command, arguments []string) error {
			return displayCommandHelp(command)
		},
	}

	groupCommand.AddCommand(
		builder.buildStartCommand(),
		builder.buildListCommand(),
		builder.buildStatusCommand(),
		builder.buildOutputCommand(),
		builder.buildKillCommand(),
		builder.buildRestartCommand(),
		builder.buildCleanupCommand(),
	)

	return groupCommand, nil
}

func (builder *CommandBuilder) resolveConfiguration() Configuration {
	if builder.ConfigurationProvider == nil {
		return DefaultConfiguration()
	}
	return builder.ConfigurationProvider().sanitize()
}

// registry lazily constructs a single registry shared by every subcommand of
// one invocation.
func (builder *CommandBuilder) registry() (*procregistry.ProcessRegistry, error) {
	builder.registryOnce.Do(func() {
		logger := resolveLogger(builder.LoggerProvider)
		configuration := builder.resolveConfiguration()

		provider := builder.RegistryProvider
		if provider == nil {
			provider = defaultRegistryProvider
		}

		registryInstance, providerError := provider(logger, configuration)
		if providerError != nil {
			builder.registryError = fmt.Errorf(registryConstructionErrorTemplate, providerError)
			return
		}
		builder.registryInstance = registryInstance
	})

	return builder.registryInstance, builder.registryError
}

func defaultRegistryProvider(logger *zap.Logger, configuration Configuration) (*procregistry.ProcessRegistry, error) {
	streamer, streamerError := outputstream.NewOutputStreamer(logger, configuration.BufferSizeBytes, configuration.MaximumOutputSizeBytes)
	if streamerError != nil {
		return nil, fmt.Errorf(streamerConstructionErrorTemplate, streamerError)
	}

	return procregistry.NewProcessRegistry(procregistry.RegistryDependencies{
		Logger:          logger,
		Launcher:        execshell.NewOSProcessLauncher(),
		Terminator:      execshell.NewProcessTerminator(),
		Streamer:        streamer,
		KillGracePeriod: configuration.KillGracePeriod,
	})
}
