package errors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategoryValidation    ErrorCategory = "validation"
	CategoryPersistence   ErrorCategory = "persistence"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound   ErrorCode = "file_not_found"
	CodeFilePermission ErrorCode = "file_permission"
	CodeFileCorrupted  ErrorCode = "file_corrupted"
	CodeEncodingError  ErrorCode = "encoding_error"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeMissingColumn ErrorCode = "missing_column"
	CodeUnknownSchema ErrorCode = "unknown_schema"

	// Validation errors
	CodeMissingField ErrorCode = "missing_field"
	CodeInvalidDate  ErrorCode = "invalid_date"
	CodeDateOrder    ErrorCode = "date_order"
	CodeInvalidValue ErrorCode = "invalid_value"

	// Stay transition errors
	CodeReservationNotFound ErrorCode = "reservation_not_found"
	CodeInvalidTransition   ErrorCode = "invalid_transition"

	// Persistence errors
	CodeDuplicateKey   ErrorCode = "duplicate_key"
	CodeStorageFailure ErrorCode = "storage_failure"
	CodeCodeExhausted  ErrorCode = "code_exhausted"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// ImportError is the base error type for all application errors
type ImportError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *ImportError) Error() string {
	if e.Cause != nil && e.Category != CategoryFile {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *ImportError) Unwrap() error {
	return e.Cause
}

// IsBatchLevel reports whether the error aborts a whole import run.
// Everything else is confined to a single row.
func (e *ImportError) IsBatchLevel() bool {
	switch e.Category {
	case CategoryFile, CategoryConfiguration, CategoryInternal:
		return true
	case CategoryParse:
		return e.Code == CodeUnknownSchema || e.Code == CodeMissingColumn || e.Code == CodeInvalidFormat
	default:
		return false
	}
}

// GetExitCode returns an appropriate exit code for the error
func (e *ImportError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategoryValidation:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryPersistence, CategoryInternal:
		return 5
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *ImportError) WithContext(key string, value interface{}) *ImportError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *ImportError) WithSuggestion(suggestion string) *ImportError {
	e.Suggestion = suggestion
	return e
}

// New creates a new ImportError
func New(category ErrorCategory, code ErrorCode, message string) *ImportError {
	return &ImportError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with ImportError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err == nil {
		return nil
	}

	return &ImportError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// BatchIOError creates a file-level error. It aborts the whole import with
// zero rows processed.
func BatchIOError(code ErrorCode, path string, err error) *ImportError {
	var message string
	var suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeEncodingError:
		message = fmt.Sprintf("file is not valid UTF-8: %s", path)
		suggestion = "export the CSV again as UTF-8 (a byte-order mark is accepted)"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file could not be read: %s", path)
		suggestion = "verify the file integrity and try using a fresh export"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(err, CategoryFile, code, message).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error for a file or header problem
func ParseError(code ErrorCode, file string, line int, column string, value string, err error) *ImportError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("invalid CSV format in %s at line %d", file, line)
		suggestion = "check the delimiter and quoting of the file"
	case CodeMissingColumn:
		message = fmt.Sprintf("missing required column(s) %s in %s", column, file)
		suggestion = "verify the file has all required columns with correct headers"
	case CodeUnknownSchema:
		message = fmt.Sprintf("could not recognise the CSV layout of %s", file)
		suggestion = "pass --schema pending|historical|airbnb_export explicitly"
	default:
		message = fmt.Sprintf("parse error in %s at line %d", file, line)
		suggestion = "check the file format and data integrity"
	}

	return build(err, CategoryParse, code, message).
		WithSuggestion(suggestion).
		WithContext("file", file).
		WithContext("line", line).
		WithContext("column", column).
		WithContext("value", value)
}

// RowValidationError creates an error for a row with missing or unparseable
// required data. Only that row is skipped.
func RowValidationError(code ErrorCode, line int, field string, value interface{}, err error) *ImportError {
	var message string
	var suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("line %d: required field '%s' is missing or empty", line, field)
		suggestion = "provide a value for this required field"
	case CodeInvalidDate:
		message = fmt.Sprintf("line %d: invalid date in field '%s': %v", line, field, value)
		suggestion = "use DD/MM/YYYY, MM/DD/YYYY or YYYY-MM-DD"
	case CodeDateOrder:
		message = fmt.Sprintf("line %d: inconsistent dates: %v", line, value)
		suggestion = "check-in must not precede the booking date nor follow the check-out date"
	default:
		message = fmt.Sprintf("line %d: invalid value in field '%s': %v", line, field, value)
		suggestion = "check the field value and format"
	}

	return build(err, CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("line", line).
		WithContext("field", field).
		WithContext("value", value)
}

// RowPersistenceError creates an error for a constraint violation or storage
// failure while persisting one row.
func RowPersistenceError(code ErrorCode, line int, operation string, err error) *ImportError {
	var message string
	var suggestion string

	switch code {
	case CodeDuplicateKey:
		message = fmt.Sprintf("line %d: duplicate key during %s", line, operation)
		suggestion = "another import may be writing the same confirmation code; re-run the file"
	case CodeCodeExhausted:
		message = fmt.Sprintf("line %d: could not allocate a unique confirmation code", line)
		suggestion = "provide confirmation codes in the file or change the code prefix"
	default:
		message = fmt.Sprintf("line %d: storage failure during %s", line, operation)
		suggestion = "check database connectivity and try again"
	}

	return build(err, CategoryPersistence, code, message).
		WithSuggestion(suggestion).
		WithContext("line", line).
		WithContext("operation", operation)
}

// StayTransitionError creates an error for a check-in or check-out that
// could not be applied to a reservation
func StayTransitionError(code ErrorCode, reservationCode, transition string, err error) *ImportError {
	var message string
	var suggestion string

	switch code {
	case CodeReservationNotFound:
		message = fmt.Sprintf("reservation %s not found", reservationCode)
		suggestion = "check the confirmation code or import the reservation first"
	default:
		message = fmt.Sprintf("cannot %s reservation %s", transition, reservationCode)
		suggestion = "check-in requires a confirmed reservation; check-out requires a prior check-in"
	}

	return build(err, CategoryValidation, code, message).
		WithSuggestion(suggestion).
		WithContext("confirmation_code", reservationCode).
		WithContext("transition", transition)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *ImportError {
	var message string
	var suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(err, CategoryConfiguration, code, message).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *ImportError {
	message := fmt.Sprintf("unexpected error during %s", operation)
	return build(err, CategoryInternal, code, message).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*ImportError        `json:"errors"`
	SampleErrors []*ImportError        `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*ImportError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*ImportError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// GetExitCode returns the highest exit code among the summarised errors
func (es *ErrorSummary) GetExitCode() int {
	code := 0
	for _, err := range es.Errors {
		if c := err.GetExitCode(); c > code {
			code = c
		}
	}
	return code
}

// HasCode checks if the summary contains errors with the given code
func (es *ErrorSummary) HasCode(code ErrorCode) bool {
	return es.ByCode[code] > 0
}

// IsImportError checks if an error is an ImportError
func IsImportError(err error) bool {
	_, ok := AsImportError(err)
	return ok
}

// AsImportError extracts an ImportError from an error chain
func AsImportError(err error) (*ImportError, bool) {
	var importErr *ImportError
	if errors.As(err, &importErr) {
		return importErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already an ImportError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *ImportError {
	if err == nil {
		return nil
	}

	if importErr, ok := AsImportError(err); ok {
		return importErr
	}

	return Wrap(err, category, code, message)
}
