// Package importer reconciles booking CSV exports with stored reservations.
//
// A Session imports one batch. Rows are processed strictly in order, each
// inside its own transaction, and every outcome lands in the session's
// ImportReport. Row problems never abort the batch; only file-level
// problems are returned as errors.
//
// Example usage:
//
//	session, err := importer.NewSession(gateway, importer.DefaultConfig())
//	report, err := session.ImportFile(ctx, "reservations.csv")
//	fmt.Println(report.Result())
package importer

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"golang-reservation-import-service/internal/models"
	"golang-reservation-import-service/internal/parsers"
	"golang-reservation-import-service/internal/reporter"
	"golang-reservation-import-service/internal/store"
	"golang-reservation-import-service/pkg/errors"
	"golang-reservation-import-service/pkg/logger"
)

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// Option customizes a Session
type Option func(*Session)

// WithClock replaces the clock used for "today" and report timestamps
func WithClock(clock Clock) Option {
	return func(s *Session) {
		s.clock = clock
	}
}

// WithLogger replaces the session logger
func WithLogger(log logger.Logger) Option {
	return func(s *Session) {
		s.logger = log
	}
}

// WithRunID sets the run identifier instead of a generated one
func WithRunID(id string) Option {
	return func(s *Session) {
		s.runID = id
	}
}

// Session holds the state of a single import batch
type Session struct {
	gateway store.Gateway
	config  *Config
	clock   Clock
	logger  logger.Logger
	runID   string

	schema     *parsers.SchemaConfig
	platform   *models.Platform
	codeSeq    int
	codeSeeded bool
	report     *reporter.ImportReport
}

// NewSession creates a session bound to a gateway
func NewSession(gateway store.Gateway, config *Config, opts ...Option) (*Session, error) {
	if gateway == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "new_session", fmt.Errorf("gateway cannot be nil"))
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "import", err.Error(), err)
	}
	if config.Location == nil {
		config.Location = time.Local
	}

	s := &Session{
		gateway: gateway,
		config:  config,
		clock:   SystemClock,
		logger:  logger.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	s.logger = s.logger.WithComponent("importer").WithField("run_id", s.runID)

	if kind, _ := parsers.ParseSchemaKind(string(config.Schema)); kind != parsers.SchemaAuto {
		s.schema = parsers.GetSchemaConfig(kind).WithAliases(config.ColumnAliases)
	}

	s.report = reporter.NewImportReport(s.runID, "", s.clock.Now())
	return s, nil
}

// RunID returns the identifier of this import run
func (s *Session) RunID() string {
	return s.runID
}

// Report returns the report accumulated so far
func (s *Session) Report() *reporter.ImportReport {
	return s.report
}

// ImportFile imports a CSV file from disk. The file is closed on every path.
func (s *Session) ImportFile(ctx context.Context, path string) (*reporter.ImportReport, error) {
	bp := parsers.NewBaseParser(s.config.parseConfig())

	file, err := bp.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return s.ImportReader(ctx, path, file)
}

// ImportReader imports CSV content from r. name identifies the source in
// the report and in errors.
func (s *Session) ImportReader(ctx context.Context, name string, r io.Reader) (*reporter.ImportReport, error) {
	opLogger := logger.NewOperationLogger("import", s.logger).WithField("source", name)
	opLogger.Step("reading headers")

	s.report.Source = name

	bp := parsers.NewBaseParser(s.config.parseConfig())
	rows, err := bp.NewRowReader(name, r)
	if err != nil {
		opLogger.Error(err, "Import aborted")
		return nil, err
	}

	if rows.Empty() {
		s.report.RecordWarning(0, "file %s is empty", name)
		s.report.Finish(s.clock.Now())
		opLogger.Warning("No rows to import")
		return s.report, nil
	}

	if err := s.selectSchema(name, rows); err != nil {
		opLogger.Error(err, "Import aborted")
		return nil, err
	}
	s.report.Schema = string(s.schema.Kind)

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation:   "import " + name,
		LogInterval: s.config.ProgressInterval,
		Logger:      s.logger,
		Now:         s.clock.Now,
	})

	opLogger.Step("processing rows")
	for {
		if err := ctx.Err(); err != nil {
			tracker.CompleteWithError(err)
			return nil, errors.InternalError(errors.CodeUnexpectedError, "import", err).
				WithSuggestion("the import was cancelled; rows already processed were kept").
				WithContext("processed", s.report.Attempted)
		}

		line, row, err := rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if recErr, ok := err.(*parsers.RecordError); ok {
				s.report.RecordFailure(recErr.Line, errors.RowValidationError(
					errors.CodeInvalidValue, recErr.Line, "record", recErr.Message, recErr.Err))
				tracker.Increment(true)
				continue
			}
			tracker.CompleteWithError(err)
			opLogger.Error(err, "Import aborted")
			return nil, err
		}

		outcome := s.ProcessRow(ctx, line, row)
		tracker.Increment(outcome == reporter.OutcomeFailed)
	}

	tracker.Complete()
	s.report.Finish(s.clock.Now())

	s.logger.WithFields(logger.Fields{
		"source":   name,
		"schema":   s.schema.Kind,
		"created":  s.report.Created,
		"updated":  s.report.Updated,
		"skipped":  s.report.Skipped,
		"failed":   s.report.Failed,
		"warnings": len(s.report.Warnings),
		"stats":    rows.Stats.String(),
	}).Info("Import finished")

	return s.report, nil
}

// selectSchema picks the configured or detected layout and checks that
// every required header is present
func (s *Session) selectSchema(name string, rows *parsers.RowReader) error {
	if s.schema == nil {
		detected := parsers.AutoDetectSchema(rows.Headers)
		if detected == nil {
			return errors.ParseError(errors.CodeUnknownSchema, name, 1, "", strings.Join(rows.Headers, ","), nil)
		}
		s.schema = detected.WithAliases(s.config.ColumnAliases)
		s.logger.WithField("schema", detected.Kind).Info("Detected CSV layout")
	}

	if missing := rows.MissingHeaders(s.schema.RequiredHeaders()); len(missing) > 0 {
		return errors.ParseError(errors.CodeMissingColumn, name, 1, strings.Join(missing, ", "), "", nil).
			WithContext("schema", s.schema.Kind)
	}
	return nil
}
