// Package parsers reads booking CSV exports into schema-independent rows.
//
// It handles the parts of real-world exports that vary between versions:
//   - UTF-8 with or without a byte-order mark
//   - three observed header layouts (pending, historical, full export)
//   - day-first and month-first dates, decimal comma and decimal point
//   - currency symbols and accounting negatives in amounts
//
// Example usage:
//
//	bp := NewBaseParser(nil)
//	file, err := bp.OpenFile("reservations.csv")
//	defer file.Close()
//	rows, err := bp.NewRowReader("reservations.csv", file)
//	schema := AutoDetectSchema(rows.Headers)
//	for {
//		line, row, err := rows.Next()
//		...
//		intent, skip := schema.MapRow(row)
//	}
package parsers

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"golang-reservation-import-service/pkg/errors"
	"golang-reservation-import-service/pkg/logger"
)

const readBufferSize = 64 * 1024

// RecordError is a problem confined to a single CSV record
type RecordError struct {
	Line    int
	Message string
	Err     error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Message, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	Delimiter        rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	ValidateEncoding bool
	LazyQuotes       bool
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
		LazyQuotes:       true,
	}
}

// BaseParser provides common CSV parsing functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}

	log := logger.GetGlobalLogger().WithComponent("base_parser")
	log.WithFields(logger.Fields{
		"delimiter":         string(config.Delimiter),
		"validate_encoding": config.ValidateEncoding,
	}).Debug("Created base parser")

	return &BaseParser{
		config: config,
		logger: log,
	}
}

// OpenFile opens a CSV file for reading. The caller closes it.
func (bp *BaseParser) OpenFile(filePath string) (*os.File, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening CSV file")

	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open CSV file")

		if os.IsNotExist(err) {
			return nil, errors.BatchIOError(errors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, errors.BatchIOError(errors.CodeFilePermission, filePath, err)
		}
		return nil, errors.BatchIOError(errors.CodeFileCorrupted, filePath, err)
	}

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		file.Close()
		if err == nil {
			err = fmt.Errorf("%s is a directory", filePath)
		}
		return nil, errors.BatchIOError(errors.CodeFileCorrupted, filePath, err)
	}

	return file, nil
}

// NewRowReader wraps r, strips a byte-order mark, checks the encoding and
// reads the header row. An empty input yields a reader with no headers.
// With encoding validation on, the whole input is checked before the header
// is read, so no row is handed out from an undecodable file.
func (bp *BaseParser) NewRowReader(name string, r io.Reader) (*RowReader, error) {
	if bp.config.ValidateEncoding {
		checked, err := bp.checkEncoding(r, name)
		if err != nil {
			bp.logger.WithError(err).WithField("file", name).Error("File encoding validation failed")
			return nil, err
		}
		r = checked
	}

	decoded := transform.NewReader(r, unicode.BOMOverride(transform.Nop))
	reader := csv.NewReader(bufio.NewReaderSize(decoded, readBufferSize))
	bp.configureReader(reader)

	rr := &RowReader{
		name:      name,
		csv:       reader,
		config:    bp.config,
		logger:    bp.logger,
		HeaderMap: make(map[string]int),
		Stats:     NewParseStats(),
	}

	headers, err := reader.Read()
	if err == io.EOF {
		bp.logger.WithField("file", name).Warn("File is empty")
		rr.empty = true
		return rr, nil
	}
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, name, 1, "headers", "", err)
	}

	rr.Headers = cleanHeaders(headers)
	for i, header := range rr.Headers {
		rr.HeaderMap[normalizeHeader(header)] = i
	}
	rr.Stats.TotalLines++

	bp.logger.WithField("headers", rr.Headers).Debug("Successfully read headers")
	return rr, nil
}

func (bp *BaseParser) configureReader(reader *csv.Reader) {
	reader.Comma = bp.config.Delimiter
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	reader.LazyQuotes = bp.config.LazyQuotes
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = false
}

// checkEncoding scans all of r for invalid UTF-8 and returns a reader
// positioned at the start of the input. Seekable inputs are rewound; other
// inputs are buffered while they are scanned.
func (bp *BaseParser) checkEncoding(r io.Reader, name string) (io.Reader, error) {
	seeker, seekable := r.(io.Seeker)

	var buffered *bytes.Buffer
	src := r
	if !seekable {
		buffered = new(bytes.Buffer)
		src = io.TeeReader(r, buffered)
	}

	if err := validateEncoding(src, name); err != nil {
		return nil, err
	}

	if !seekable {
		return buffered, nil
	}
	if _, err := seeker.Seek(0, io.SeekStart); err != nil {
		return nil, errors.BatchIOError(errors.CodeFileCorrupted, name, err)
	}
	return r, nil
}

// validateEncoding reports the first line that is not valid UTF-8
func validateEncoding(r io.Reader, name string) error {
	br := bufio.NewReaderSize(r, readBufferSize)
	for lineNum := 1; ; lineNum++ {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && !utf8.Valid(line) {
			return errors.BatchIOError(
				errors.CodeEncodingError,
				name,
				fmt.Errorf("invalid UTF-8 encoding detected at line %d", lineNum),
			).WithContext("line", lineNum)
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.BatchIOError(errors.CodeFileCorrupted, name, err)
		}
	}
}

// cleanHeaders removes whitespace and a stray byte-order mark
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}
	return cleaned
}

// RowReader streams CSV records as header-keyed rows
type RowReader struct {
	Headers   []string
	HeaderMap map[string]int
	Stats     *ParseStats

	name   string
	csv    *csv.Reader
	config *ParseConfig
	logger logger.Logger
	empty  bool
}

// Empty reports whether the input had no header row at all
func (rr *RowReader) Empty() bool {
	return rr.empty
}

// GetColumnIndex returns the index of a column by name, or -1 if not found.
// The lookup is case-insensitive.
func (rr *RowReader) GetColumnIndex(name string) int {
	if index, exists := rr.HeaderMap[normalizeHeader(name)]; exists {
		return index
	}
	return -1
}

// MissingHeaders returns the required headers that are not present
func (rr *RowReader) MissingHeaders(required []string) []string {
	var missing []string
	for _, header := range required {
		if rr.GetColumnIndex(header) == -1 {
			missing = append(missing, header)
		}
	}
	return missing
}

// Next returns the next non-empty record keyed by header. It returns io.EOF
// at the end of input and a *RecordError for a malformed record, after
// which reading can continue.
func (rr *RowReader) Next() (int, map[string]string, error) {
	if rr.empty {
		return 0, nil, io.EOF
	}

	for {
		record, err := rr.csv.Read()
		if err == io.EOF {
			return 0, nil, io.EOF
		}

		line, _ := rr.csv.FieldPos(0)
		if err != nil {
			if pe, ok := err.(*csv.ParseError); ok {
				rr.Stats.TotalLines++
				rr.Stats.Malformed++
				rr.logger.WithError(err).WithField("line_number", pe.StartLine).Warn("Failed to read CSV record")
				return pe.StartLine, nil, &RecordError{Line: pe.StartLine, Message: "malformed CSV record", Err: pe.Err}
			}
			return 0, nil, errors.BatchIOError(errors.CodeFileCorrupted, rr.name, err)
		}

		rr.Stats.TotalLines++

		if rr.config.SkipEmptyRows && isEmptyRecord(record) {
			rr.Stats.EmptySkipped++
			rr.logger.WithField("line_number", line).Debug("Skipping empty record")
			continue
		}

		for _, field := range record {
			if !utf8.ValidString(field) {
				rr.Stats.Malformed++
				return line, nil, &RecordError{Line: line, Message: "invalid UTF-8 encoding"}
			}
		}

		row := make(map[string]string, len(rr.Headers))
		for i, header := range rr.Headers {
			if header == "" {
				continue
			}
			if i < len(record) {
				row[header] = strings.TrimSpace(record[i])
			} else {
				row[header] = ""
			}
		}

		rr.Stats.RecordsRead++
		return line, row, nil
	}
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// ParseStats holds statistics about a parsing operation
type ParseStats struct {
	TotalLines   int
	RecordsRead  int
	EmptySkipped int
	Malformed    int
}

// NewParseStats creates a new ParseStats instance
func NewParseStats() *ParseStats {
	return &ParseStats{}
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Read %d lines, %d records, %d empty, %d malformed",
		ps.TotalLines, ps.RecordsRead, ps.EmptySkipped, ps.Malformed)
}
