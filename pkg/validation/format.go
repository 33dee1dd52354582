// Package validation provides common validation utilities.
package validation

import (
	"fmt"

	"github.com/iwvelando/equity-snapshot/pkg/constants"
)

// ValidateOutputFormat checks if the output format is one of the supported formats.
func ValidateOutputFormat(format string) error {
	switch format {
	case constants.OutputFormatPretty, constants.OutputFormatCSV, constants.OutputFormatJSON:
		return nil
	}
	return fmt.Errorf("expected output format of %s, %s or %s, got %s",
		constants.OutputFormatPretty, constants.OutputFormatCSV, constants.OutputFormatJSON, format)
}

// ValidateSinkType checks if the submission sink type is supported.
func ValidateSinkType(sinkType string) error {
	switch sinkType {
	case constants.SinkTypeNone, constants.SinkTypeLog, constants.SinkTypePostgres,
		constants.SinkTypeRedis, constants.SinkTypeFirestore:
		return nil
	}
	return fmt.Errorf("unsupported sink type %q (expected one of %s, %s, %s, %s, %s)", sinkType,
		constants.SinkTypeNone, constants.SinkTypeLog, constants.SinkTypePostgres,
		constants.SinkTypeRedis, constants.SinkTypeFirestore)
}

// ValidateLogLevel checks if the log level is one the logger understands.
func ValidateLogLevel(level string) error {
	switch level {
	case "", "debug", "info", "warn", "warning", "error":
		return nil
	}
	return fmt.Errorf("invalid log level: %s", level)
}

// ValidateLogFormat checks if the log format is json or console.
func ValidateLogFormat(format string) error {
	switch format {
	case "", "json", "console":
		return nil
	}
	return fmt.Errorf("invalid log format: %s", format)
}
