// Package reporter records and renders the outcome of reservation imports.
//
// An ImportReport is filled row by row while a file is imported and can be
// rendered in several formats:
//   - Console: human-readable summary for terminal display
//   - JSON: the compact result plus row details for programmatic use
//   - CSV: one line per row outcome for spreadsheet applications
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{
//		Format:         reporter.FormatJSON,
//		IncludeDetails: true,
//	})
//	err = generator.GenerateReport(report, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"golang-reservation-import-service/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// IncludeDetails adds successes, warnings and per-row outcomes
	IncludeDetails bool `json:"include_details"`

	// MaxItems caps each console list; zero means no limit
	MaxItems int `json:"max_items"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:       FormatConsole,
		MaxItems:     20,
		CSVDelimiter: ',',
		CSVHeaders:   true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxItems < 0 {
		return fmt.Errorf("max items cannot be negative, got %d", c.MaxItems)
	}
	return nil
}

// ReportGenerator renders import reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if config.CSVDelimiter == 0 {
		config.CSVDelimiter = ','
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport writes the report to the provided writer
func (rg *ReportGenerator) GenerateReport(report *ImportReport, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("import report cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

func (rg *ReportGenerator) generateConsoleReport(report *ImportReport, writer io.Writer) error {
	w := &errWriter{w: writer}

	w.printf("IMPORT REPORT\n")
	w.printf("Run:      %s\n", report.RunID)
	w.printf("Source:   %s\n", report.Source)
	if report.Schema != "" {
		w.printf("Schema:   %s\n", report.Schema)
	}
	w.printf("Started:  %s\n", report.StartedAt.Format(time.RFC3339))
	w.printf("Duration: %v\n\n", report.Duration())

	w.printf("=== SUMMARY ===\n")
	w.printf("Status:    %s\n", statusText(report.Success()))
	w.printf("Attempted: %d\n", report.Attempted)
	w.printf("Imported:  %d (%.1f%%)\n", report.Imported(), percentage(report.Imported(), report.Attempted))
	w.printf("  Created: %d\n", report.Created)
	w.printf("  Updated: %d\n", report.Updated)
	w.printf("Skipped:   %d\n", report.Skipped)
	w.printf("Failed:    %d\n", report.Failed)

	if summary := report.ErrorSummary(); summary != nil {
		w.printf("\n=== ERRORS BY CATEGORY ===\n")
		categories := make([]errors.ErrorCategory, 0, len(summary.ByCategory))
		for category := range summary.ByCategory {
			categories = append(categories, category)
		}
		sort.Slice(categories, func(i, j int) bool { return categories[i] < categories[j] })
		for _, category := range categories {
			w.printf("  %-12s %d\n", string(category)+":", summary.ByCategory[category])
		}
	}

	rg.printList(w, "ERRORS", report.Errors)
	if rg.config.IncludeDetails {
		rg.printList(w, "WARNINGS", report.Warnings)
		rg.printList(w, "IMPORTED", report.Successes)
	} else if len(report.Warnings) > 0 {
		w.printf("\nWarnings: %d (use detailed output to list them)\n", len(report.Warnings))
	}

	return w.err
}

func (rg *ReportGenerator) printList(w *errWriter, title string, items []string) {
	if len(items) == 0 {
		return
	}

	w.printf("\n=== %s (%d) ===\n", title, len(items))
	for i, item := range items {
		if rg.config.MaxItems > 0 && i >= rg.config.MaxItems {
			w.printf("  ... and %d more\n", len(items)-rg.config.MaxItems)
			break
		}
		w.printf("  %d. %s\n", i+1, item)
	}
}

func (rg *ReportGenerator) generateJSONReport(report *ImportReport, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterReportForOutput(report))
}

func (rg *ReportGenerator) filterReportForOutput(report *ImportReport) map[string]interface{} {
	result := report.Result()
	output := map[string]interface{}{
		"success":  result.Success,
		"imported": result.Imported,
		"errors":   result.Errors,
		"run_id":   report.RunID,
		"source":   report.Source,
		"summary": map[string]int{
			"attempted": report.Attempted,
			"created":   report.Created,
			"updated":   report.Updated,
			"skipped":   report.Skipped,
			"failed":    report.Failed,
		},
	}

	if rg.config.IncludeDetails {
		output["schema"] = report.Schema
		output["started_at"] = report.StartedAt
		output["finished_at"] = report.FinishedAt
		output["successes"] = report.Successes
		output["warnings"] = report.Warnings
		output["rows"] = report.Rows
		if summary := report.ErrorSummary(); summary != nil {
			output["error_summary"] = map[string]interface{}{
				"by_category": summary.ByCategory,
				"by_code":     summary.ByCode,
			}
		}
	}

	return output
}

func (rg *ReportGenerator) generateCSVReport(report *ImportReport, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write([]string{"Line", "Confirmation_Code", "Outcome", "Message"}); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, row := range report.Rows {
		record := []string{
			strconv.Itoa(row.Line),
			row.Code,
			string(row.Outcome),
			row.Message,
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write row outcome for line %d: %w", row.Line, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}

func statusText(success bool) string {
	if success {
		return "SUCCESS"
	}
	return "COMPLETED WITH ERRORS"
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

// errWriter keeps the first write error so formatting code stays linear
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
