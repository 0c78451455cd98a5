package utils

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	logLevelDebugStringConstant          = "debug"
	logLevelInfoStringConstant           = "info"
	logLevelWarnStringConstant           = "warn"
	logLevelErrorStringConstant          = "error"
	logFormatStructuredStringConstant    = "structured"
	logFormatConsoleStringConstant       = "console"
	jsonZapEncodingStringConstant        = "json"
	consoleZapEncodingStringConstant     = "console"
	unsupportedLogLevelTemplateConstant  = "unsupported log level: %s"
	unsupportedLogFormatTemplateConstant = "unsupported log format: %s"
)

// LogLevel enumerates supported logging granularities.
type LogLevel string

// Exported log level constants for reuse across packages.
const (
	LogLevelDebug LogLevel = LogLevel(logLevelDebugStringConstant)
	LogLevelInfo  LogLevel = LogLevel(logLevelInfoStringConstant)
	LogLevelWarn  LogLevel = LogLevel(logLevelWarnStringConstant)
	LogLevelError LogLevel = LogLevel(logLevelErrorStringConstant)
)

// LogFormat enumerates supported logger output encodings.
type LogFormat string

// Exported log format constants for reuse across packages.
const (
	LogFormatStructured LogFormat = LogFormat(logFormatStructuredStringConstant)
	LogFormatConsole    LogFormat = LogFormat(logFormatConsoleStringConstant)
)

// Default logging configuration applied when no override is provided.
const (
	DefaultLogLevel  = LogLevelInfo
	DefaultLogFormat = LogFormatStructured
)

var logLevelMapping = map[LogLevel]zapcore.Level{
	LogLevelDebug: zapcore.DebugLevel,
	LogLevelInfo:  zapcore.InfoLevel,
	LogLevelWarn:  zapcore.WarnLevel,
	LogLevelError: zapcore.ErrorLevel,
}

var logFormatEncodingMapping = map[LogFormat]string{
	LogFormatStructured: jsonZapEncodingStringConstant,
	LogFormatConsole:    consoleZapEncodingStringConstant,
}

// SupportedLogLevelNames lists the accepted log level strings in display order.
func SupportedLogLevelNames() []string {
	return []string{
		logLevelDebugStringConstant,
		logLevelInfoStringConstant,
		logLevelWarnStringConstant,
		logLevelErrorStringConstant,
	}
}

// SupportedLogFormatNames lists the accepted log format strings in display order.
func SupportedLogFormatNames() []string {
	return []string{
		logFormatStructuredStringConstant,
		logFormatConsoleStringConstant,
	}
}

// ParseLogLevel normalizes and validates a user-supplied log level string.
// Empty input selects DefaultLogLevel.
func ParseLogLevel(candidateLogLevel string) (LogLevel, error) {
	normalizedLogLevel := LogLevel(strings.ToLower(strings.TrimSpace(candidateLogLevel)))
	if len(normalizedLogLevel) == 0 {
		return DefaultLogLevel, nil
	}
	if _, levelExists := logLevelMapping[normalizedLogLevel]; !levelExists {
		return "", fmt.Errorf(unsupportedLogLevelTemplateConstant, candidateLogLevel)
	}
	return normalizedLogLevel, nil
}

// ParseLogFormat normalizes and validates a user-supplied log format string.
// Empty input selects DefaultLogFormat.
func ParseLogFormat(candidateLogFormat string) (LogFormat, error) {
	normalizedLogFormat := LogFormat(strings.ToLower(strings.TrimSpace(candidateLogFormat)))
	if len(normalizedLogFormat) == 0 {
		return DefaultLogFormat, nil
	}
	if _, formatExists := logFormatEncodingMapping[normalizedLogFormat]; !formatExists {
		return "", fmt.Errorf(unsupportedLogFormatTemplateConstant, candidateLogFormat)
	}
	return normalizedLogFormat, nil
}

// LoggerFactory builds zap.Logger instances with consistent configuration.
type LoggerFactory struct{}

// NewLoggerFactory constructs a new logger factory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLogger produces a zap.Logger honoring the requested log level and format.
// Console output carries ISO 8601 timestamps and capitalized levels; the
// structured format keeps zap's production JSON encoding.
func (factory *LoggerFactory) CreateLogger(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (*zap.Logger, error) {
	zapLogLevel, levelExists := logLevelMapping[requestedLogLevel]
	if !levelExists {
		return nil, fmt.Errorf(unsupportedLogLevelTemplateConstant, requestedLogLevel)
	}

	encoding, formatExists := logFormatEncodingMapping[requestedLogFormat]
	if !formatExists {
		return nil, fmt.Errorf(unsupportedLogFormatTemplateConstant, requestedLogFormat)
	}

	configuration := zap.NewProductionConfig()
	configuration.Level = zap.NewAtomicLevelAt(zapLogLevel)
	configuration.Encoding = encoding
	configuration.DisableStacktrace = true

	if requestedLogFormat == LogFormatConsole {
		configuration.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		configuration.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	logger, buildError := configuration.Build()
	if buildError != nil {
		return nil, buildError
	}

	return logger, nil
}
