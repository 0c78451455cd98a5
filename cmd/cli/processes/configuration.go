package processes

import (
	"time"

	"github.com/temirov/termrun/internal/outputstream"
)

const (
	captureOutputConfigKeySuffixConstant      = ".capture_output"
	killGracePeriodConfigKeySuffixConstant    = ".kill_grace_period"
	cleanupMaxAgeConfigKeySuffixConstant      = ".cleanup_max_age"
	bufferSizeBytesConfigKeySuffixConstant    = ".buffer_size_bytes"
	maximumOutputBytesConfigKeySuffixConstant = ".max_output_size_bytes"
	defaultKillGracePeriodConstant            = 2 * time.Second
	defaultCleanupMaxAgeConstant              = time.Hour
)

// Configuration captures configuration values for the process commands.
type Configuration struct {
	CaptureOutput          bool          `mapstructure:"capture_output"`
	KillGracePeriod        time.Duration `mapstructure:"kill_grace_period"`
	CleanupMaxAge          time.Duration `mapstructure:"cleanup_max_age"`
	BufferSizeBytes        int           `mapstructure:"buffer_size_bytes"`
	MaximumOutputSizeBytes int           `mapstructure:"max_output_size_bytes"`
}

// DefaultConfiguration provides default process command settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		CaptureOutput:          true,
		KillGracePeriod:        defaultKillGracePeriodConstant,
		CleanupMaxAge:          defaultCleanupMaxAgeConstant,
		BufferSizeBytes:        outputstream.DefaultBufferSizeBytes,
		MaximumOutputSizeBytes: outputstream.DefaultMaximumOutputSizeBytes,
	}
}

// DefaultConfigurationValues exposes configuration defaults keyed under the provided prefix.
func DefaultConfigurationValues(configurationKeyPrefix string) map[string]any {
	defaults := DefaultConfiguration()
	return map[string]any{
		configurationKeyPrefix + captureOutputConfigKeySuffixConstant:      defaults.CaptureOutput,
		configurationKeyPrefix + killGracePeriodConfigKeySuffixConstant:    defaults.KillGracePeriod.String(),
		configurationKeyPrefix + cleanupMaxAgeConfigKeySuffixConstant:      defaults.CleanupMaxAge.String(),
		configurationKeyPrefix + bufferSizeBytesConfigKeySuffixConstant:    defaults.BufferSizeBytes,
		configurationKeyPrefix + maximumOutputBytesConfigKeySuffixConstant: defaults.MaximumOutputSizeBytes,
	}
}

// sanitize normalizes configuration values, replacing unusable entries with defaults.
func (configuration Configuration) sanitize() Configuration {
	sanitized := configuration
	if sanitized.KillGracePeriod <= 0 {
		sanitized.KillGracePeriod = defaultKillGracePeriodConstant
	}
	if sanitized.CleanupMaxAge <= 0 {
		sanitized.CleanupMaxAge = defaultCleanupMaxAgeConstant
	}
	if sanitized.BufferSizeBytes <= 0 {
		sanitized.BufferSizeBytes = outputstream.DefaultBufferSizeBytes
	}
	if sanitized.MaximumOutputSizeBytes <= 0 {
		sanitized.MaximumOutputSizeBytes = outputstream.DefaultMaximumOutputSizeBytes
	}
	return sanitized
}
