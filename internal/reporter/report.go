package reporter

import (
	"fmt"
	"time"

	"golang-reservation-import-service/pkg/errors"
)

// Outcome is what happened to a single CSV row
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
	OutcomeFailed  Outcome = "failed"
)

// RowResult is the recorded outcome of one row
type RowResult struct {
	Line    int     `json:"line"`
	Code    string  `json:"confirmation_code,omitempty"`
	Outcome Outcome `json:"outcome"`
	Message string  `json:"message"`
}

// ImportReport accumulates the outcome of every row in one import run.
// It is owned by a single session and is not safe for concurrent use.
type ImportReport struct {
	RunID      string    `json:"run_id"`
	Source     string    `json:"source"`
	Schema     string    `json:"schema,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Attempted int `json:"attempted"`
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	Successes []string    `json:"successes"`
	Errors    []string    `json:"errors"`
	Warnings  []string    `json:"warnings"`
	Rows      []RowResult `json:"rows"`

	rowErrors []*errors.ImportError
}

// Result is the compact outcome returned to callers of an import
type Result struct {
	Success  bool     `json:"success"`
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

// NewImportReport starts an empty report
func NewImportReport(runID, source string, startedAt time.Time) *ImportReport {
	return &ImportReport{
		RunID:     runID,
		Source:    source,
		StartedAt: startedAt,
		Successes: []string{},
		Errors:    []string{},
		Warnings:  []string{},
		Rows:      []RowResult{},
	}
}

// RecordCreated records a newly created reservation
func (r *ImportReport) RecordCreated(line int, code string) {
	r.Attempted++
	r.Created++
	r.addSuccess(line, code, OutcomeCreated, fmt.Sprintf("reservation %s created", code))
}

// RecordUpdated records an update of an existing reservation
func (r *ImportReport) RecordUpdated(line int, code string) {
	r.Attempted++
	r.Updated++
	r.addSuccess(line, code, OutcomeUpdated, fmt.Sprintf("reservation %s updated", code))
}

func (r *ImportReport) addSuccess(line int, code string, outcome Outcome, message string) {
	r.Successes = append(r.Successes, message)
	r.Rows = append(r.Rows, RowResult{Line: line, Code: code, Outcome: outcome, Message: message})
}

// RecordSkipped records a row the schema does not import
func (r *ImportReport) RecordSkipped(line int, reason string) {
	r.Skipped++
	r.Rows = append(r.Rows, RowResult{Line: line, Outcome: OutcomeSkipped, Message: reason})
}

// RecordFailure records a row that was not persisted
func (r *ImportReport) RecordFailure(line int, err error) {
	r.Attempted++
	r.Failed++

	message := err.Error()
	r.Errors = append(r.Errors, message)
	r.Rows = append(r.Rows, RowResult{Line: line, Outcome: OutcomeFailed, Message: message})

	if ie, ok := errors.AsImportError(err); ok {
		r.rowErrors = append(r.rowErrors, ie)
	}
}

// RecordWarning records a non-fatal problem. A line of zero means the
// warning concerns the whole file.
func (r *ImportReport) RecordWarning(line int, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)
	if line > 0 {
		message = fmt.Sprintf("line %d: %s", line, message)
	}
	r.Warnings = append(r.Warnings, message)
}

// Finish stamps the end of the run
func (r *ImportReport) Finish(at time.Time) {
	r.FinishedAt = at
}

// Duration returns how long the run took
func (r *ImportReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Imported returns the number of reservations created or updated
func (r *ImportReport) Imported() int {
	return r.Created + r.Updated
}

// Success reports whether every attempted row was imported
func (r *ImportReport) Success() bool {
	return len(r.Errors) == 0
}

// Result returns the compact outcome of the run
func (r *ImportReport) Result() Result {
	errs := make([]string, len(r.Errors))
	copy(errs, r.Errors)
	return Result{
		Success:  r.Success(),
		Imported: r.Imported(),
		Errors:   errs,
	}
}

// ErrorSummary groups the categorized row errors, or returns nil when the
// run had none.
func (r *ImportReport) ErrorSummary() *errors.ErrorSummary {
	if len(r.rowErrors) == 0 {
		return nil
	}
	return errors.NewErrorSummary(r.rowErrors)
}
