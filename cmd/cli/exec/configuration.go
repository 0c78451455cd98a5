package exec

import (
	"strings"

	"github.com/temirov/termrun/internal/outputstream"
)

const (
	workingDirectoryConfigKeySuffixConstant   = ".working_directory"
	timeoutSecondsConfigKeySuffixConstant     = ".timeout_seconds"
	captureOutputConfigKeySuffixConstant      = ".capture_output"
	bufferSizeBytesConfigKeySuffixConstant    = ".buffer_size_bytes"
	maximumOutputBytesConfigKeySuffixConstant = ".max_output_size_bytes"
	defaultTimeoutSecondsConstant             = 30
)

// CommandConfiguration captures configuration values shared by the run and
// stream commands.
type CommandConfiguration struct {
	WorkingDirectory       string `mapstructure:"working_directory"`
	TimeoutSeconds         int    `mapstructure:"timeout_seconds"`
	CaptureOutput          bool   `mapstructure:"capture_output"`
	BufferSizeBytes        int    `mapstructure:"buffer_size_bytes"`
	MaximumOutputSizeBytes int    `mapstructure:"max_output_size_bytes"`
}

// DefaultCommandConfiguration provides default execution settings.
func DefaultCommandConfiguration() CommandConfiguration {
	return CommandConfiguration{
		WorkingDirectory:       "",
		TimeoutSeconds:         defaultTimeoutSecondsConstant,
		CaptureOutput:          true,
		BufferSizeBytes:        outputstream.DefaultBufferSizeBytes,
		MaximumOutputSizeBytes: outputstream.DefaultMaximumOutputSizeBytes,
	}
}

// DefaultConfigurationValues exposes configuration defaults keyed under the provided prefix.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	defaults := DefaultCommandConfiguration()
	return map[string]any{
		configurationKeyPrefix + workingDirectoryConfigKeySuffixConstant:   defaults.WorkingDirectory,
		configurationKeyPrefix + timeoutSecondsConfigKeySuffixConstant:     defaults.TimeoutSeconds,
		configurationKeyPrefix + captureOutputConfigKeySuffixConstant:      defaults.CaptureOutput,
		configurationKeyPrefix + bufferSizeBytesConfigKeySuffixConstant:    defaults.BufferSizeBytes,
		configurationKeyPrefix + maximumOutputBytesConfigKeySuffixConstant: defaults.MaximumOutputSizeBytes,
	}
}

// sanitize normalizes configuration values, replacing unusable entries with defaults.
func (configuration CommandConfiguration) sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.WorkingDirectory = strings.TrimSpace(configuration.WorkingDirectory)
	if sanitized.TimeoutSeconds < 0 {
		sanitized.TimeoutSeconds = defaultTimeoutSecondsConstant
	}
	if sanitized.BufferSizeBytes <= 0 {
		sanitized.BufferSizeBytes = outputstream.DefaultBufferSizeBytes
	}
	if sanitized.MaximumOutputSizeBytes <= 0 {
		sanitized.MaximumOutputSizeBytes = outputstream.DefaultMaximumOutputSizeBytes
	}
	return sanitized
}
