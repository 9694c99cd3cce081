package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"golang-reservation-import-service/pkg/errors"
	"golang-reservation-import-service/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if summary, ok := err.(*errors.ErrorSummary); ok {
		return h.handleSummary(summary)
	}
	if importErr, ok := errors.AsImportError(err); ok {
		return h.handleImportError(importErr)
	}
	return h.handleGenericError(err)
}

// handleImportError prints an ImportError with its context and suggestion
func (h *CLIErrorHandler) handleImportError(err *errors.ImportError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key, value := range err.Context {
			if value == nil || value == "" {
				continue
			}
			keys = append(keys, key)
		}
		sort.Strings(keys)

		if len(keys) > 0 {
			fmt.Fprintf(h.out, "\nContext:\n")
			for _, key := range keys {
				fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
			}
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleSummary prints the row errors that made a strict import fail
func (h *CLIErrorHandler) handleSummary(summary *errors.ErrorSummary) int {
	messages := make([]error, len(summary.Errors))
	for i, err := range summary.Errors {
		messages[i] = err
	}
	fmt.Fprintf(h.out, "%s\n", FormatRowErrors(messages))
	return summary.GetExitCode()
}

// handleGenericError handles errors that carry no category
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	if !h.verbose {
		fmt.Fprintf(h.out, "\nRun with --verbose for more detail\n")
	}
	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Export the CSV again as UTF-8 if it was saved from a spreadsheet
• Ensure you have proper permissions to access the file`

	case errors.CategoryParse:
		return `Parse error help:
• Compare the header row with the layouts in 'importer import --help'
• Pass --schema explicitly when auto-detection fails
• Check the delimiter with --delimiter`

	case errors.CategoryValidation:
		return `Validation error help:
• Every reservation needs a guest name, booking date, check-in and check-out
• Use --date-order MDY for month-first dates
• Check-in must fall between the booking date and the check-out date`

	case errors.CategoryPersistence:
		return `Storage error help:
• Check IMPORTER_DATABASE_DRIVER and IMPORTER_DATABASE_DSN
• Make sure the database is reachable and migrated
• Re-running an import is safe; existing reservations are updated`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and IMPORTER_* environment variables
• Verify configuration file syntax if using --config
• Use 'importer import --help' to see all available options`

	default:
		return `For more help:
• Use 'importer --help' for general help
• Use 'importer <command> --help' for command-specific help`
	}
}

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}

// FormatRowErrors formats rejected rows, showing at most ten
func FormatRowErrors(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	if len(errs) == 1 {
		return fmt.Sprintf("1 row was not imported: %v", errs[0])
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("%d rows were not imported:", len(errs)))

	for i, err := range errs {
		if i >= 10 {
			lines = append(lines, fmt.Sprintf("  ... and %d more errors", len(errs)-10))
			break
		}
		lines = append(lines, fmt.Sprintf("  %d. %v", i+1, err))
	}

	return strings.Join(lines, "\n")
}

func configError(setting string, err error) error {
	if importErr, ok := errors.AsImportError(err); ok {
		return importErr
	}
	return errors.ConfigurationError(errors.CodeInvalidConfig, setting, err.Error(), err)
}

func storageError(operation string, err error) error {
	return errors.Wrap(err, errors.CategoryPersistence, errors.CodeStorageFailure,
		fmt.Sprintf("storage failure during %s", operation)).
		WithSuggestion("check database connectivity and try again").
		WithContext("operation", operation)
}
