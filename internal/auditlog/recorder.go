package auditlog

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	executionAuditedMessageConstant           = "command execution audited"
	executionSummaryTemplateConstant          = "%s exited %d in %.3fs (stdout %dB, stderr %dB)"
	executionIdentifierTemplateConstant       = "exec_%s"
	logFieldExecutionIdentifierConstant       = "execution_id"
	logFieldCommandConstant                   = "command"
	logFieldWorkingDirectoryConstant          = "working_directory"
	logFieldEnvironmentVariableCountConstant  = "environment_variable_count"
	logFieldTimeoutSecondsConstant            = "timeout_seconds"
	logFieldExitCodeConstant                  = "exit_code"
	logFieldDurationSecondsConstant           = "duration_seconds"
	logFieldStandardOutputByteCountConstant   = "stdout_bytes"
	logFieldStandardErrorByteCountConstant    = "stderr_bytes"
	logFieldSucceededConstant                 = "succeeded"
	logFieldSummaryConstant                   = "summary"
	executionIdentifierShortLengthConstant    = 12
	durationToSecondsDivisorConstant          = float64(time.Second)
)

// ExecutionRecord captures the auditable facts of one command execution.
// Environment variable values are intentionally absent from this shape.
type ExecutionRecord struct {
	ExecutionIdentifier      string
	Command                  string
	WorkingDirectory         string
	EnvironmentVariableCount int
	TimeoutSeconds           int
	ExitCode                 int
	Duration                 time.Duration
	StandardOutputByteCount  int
	StandardErrorByteCount   int
	Succeeded                bool
}

// Recorder writes structured audit records through a zap logger and adds a
// human-readable summary when console logging is enabled.
type Recorder struct {
	logger                       *zap.Logger
	humanReadableLoggingProvider func() bool
}

// NewRecorder constructs a Recorder around the supplied logger. A nil logger
// yields a no-op recorder; a nil provider disables summary lines.
func NewRecorder(logger *zap.Logger, humanReadableLoggingProvider func() bool) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		logger:                       logger,
		humanReadableLoggingProvider: humanReadableLoggingProvider,
	}
}

// NewExecutionIdentifier produces an opaque identifier for one execution.
func NewExecutionIdentifier() string {
	return fmt.Sprintf(executionIdentifierTemplateConstant, uuid.NewString()[:executionIdentifierShortLengthConstant])
}

// RecordExecution logs the structured audit record plus an optional summary line.
func (recorder *Recorder) RecordExecution(record ExecutionRecord) {
	durationSeconds := float64(record.Duration) / durationToSecondsDivisorConstant

	auditFields := []zap.Field{
		zap.String(logFieldExecutionIdentifierConstant, record.ExecutionIdentifier),
		zap.String(logFieldCommandConstant, record.Command),
		zap.String(logFieldWorkingDirectoryConstant, record.WorkingDirectory),
		zap.Int(logFieldEnvironmentVariableCountConstant, record.EnvironmentVariableCount),
		zap.Int(logFieldTimeoutSecondsConstant, record.TimeoutSeconds),
		zap.Int(logFieldExitCodeConstant, record.ExitCode),
		zap.Float64(logFieldDurationSecondsConstant, durationSeconds),
		zap.Int(logFieldStandardOutputByteCountConstant, record.StandardOutputByteCount),
		zap.Int(logFieldStandardErrorByteCountConstant, record.StandardErrorByteCount),
		zap.Bool(logFieldSucceededConstant, record.Succeeded),
	}

	if recorder.humanReadableLoggingProvider != nil && recorder.humanReadableLoggingProvider() {
		summaryLine := fmt.Sprintf(
			executionSummaryTemplateConstant,
			record.Command,
			record.ExitCode,
			durationSeconds,
			record.StandardOutputByteCount,
			record.StandardErrorByteCount,
		)
		auditFields = append(auditFields, zap.String(logFieldSummaryConstant, summaryLine))
	}

	recorder.logger.Info(executionAuditedMessageConstant, auditFields...)
}
