package processes

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/termrun/internal/procregistry"
)

const (
	recordEncodeErrorTemplateConstant = "unable to encode process record: %w"
	recordJSONIndentConstant          = "  "
)

// LoggerProvider yields a zap logger for command execution.
type LoggerProvider func() *zap.Logger

func resolveLogger(provider LoggerProvider) *zap.Logger {
	if provider == nil {
		return zap.NewNop()
	}
	logger := provider()
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func displayCommandHelp(command *cobra.Command) error {
	if command == nil {
		return nil
	}
	return command.Help()
}

// processRecordPayload is the JSON wire shape printed by the process commands.
type processRecordPayload struct {
	ProcessIdentifier string `json:"process_id"`
	PID               int    `json:"pid"`
	Command           string `json:"command"`
	Status            string `json:"status"`
	StartedAt         string `json:"started_at"`
	WorkingDirectory  string `json:"cwd,omitempty"`
}

func recordPayload(record procregistry.ProcessRecord) processRecordPayload {
	return processRecordPayload{
		ProcessIdentifier: record.ProcessIdentifier,
		PID:               record.PID,
		Command:           record.Command,
		Status:            string(record.Status),
		StartedAt:         record.StartedAt.Format(time.RFC3339Nano),
		WorkingDirectory:  record.WorkingDirectory,
	}
}

func renderProcessRecord(output io.Writer, record procregistry.ProcessRecord) error {
	return encodeJSON(output, recordPayload(record))
}

func renderProcessRecords(output io.Writer, records []procregistry.ProcessRecord) error {
	payloads := make([]processRecordPayload, 0, len(records))
	for _, record := range records {
		payloads = append(payloads, recordPayload(record))
	}
	return encodeJSON(output, payloads)
}

func encodeJSON(output io.Writer, payload any) error {
	encoder := json.NewEncoder(output)
	encoder.SetIndent("", recordJSONIndentConstant)
	if encodeError := encoder.Encode(payload); encodeError != nil {
		return fmt.Errorf(recordEncodeErrorTemplateConstant, encodeError)
	}
	return nil
}
