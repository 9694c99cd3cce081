package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-reservation-import-service/cmd/importer/config"
	"golang-reservation-import-service/internal/importer"
	"golang-reservation-import-service/internal/reporter"
	"golang-reservation-import-service/internal/store"
	"golang-reservation-import-service/pkg/errors"
	"golang-reservation-import-service/pkg/logger"
)

// Flags for the import command
var (
	outputFormat string
	outputFile   string
	showDetails  bool
	dryRun       bool
	strict       bool
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import FILE [FILE...]",
	Short: "Import reservation CSV exports",
	Long: `Import reads one or more booking CSV exports and creates or updates the
reservations they describe. Each file is imported as its own run; each row
is saved in its own transaction, so a bad row never blocks the others.

Three layouts are recognised automatically: the pending reservations
export, the transaction history (only rows of type Reserva are imported)
and the full reservations export with status and contact columns.

Examples:
  # Import with auto-detected layout
  importer import reservations.csv

  # Month-first dates and a JSON report
  importer import export.csv --date-order MDY --output-format json

  # Check a file without touching the database
  importer import export.csv --dry-run --details

  # Fail with a non-zero exit code when any row was rejected
  importer import export.csv --strict`,

	Args:    cobra.MinimumNArgs(1),
	PreRunE: validateImportFlags,
	RunE:    runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().String("schema", "", "CSV layout: auto, pending, historical, airbnb_export")
	importCmd.Flags().String("date-order", "", "order of day and month in dates: DMY or MDY")
	importCmd.Flags().String("delimiter", "", "field delimiter (default ',')")
	importCmd.Flags().String("platform", "", "booking platform name recorded on reservations")
	importCmd.Flags().String("status-policy", "", "status on re-import: never_regress or overwrite")
	importCmd.Flags().String("code-prefix", "", "prefix of generated confirmation codes")

	importCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	importCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	importCmd.Flags().BoolVar(&showDetails, "details", false, "include imported rows and warnings in the report")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "import into an in-memory store and discard the result")
	importCmd.Flags().BoolVar(&strict, "strict", false, "exit with an error when any row fails")

	viper.BindPFlag(config.KeyImportSchema, importCmd.Flags().Lookup("schema"))
	viper.BindPFlag(config.KeyImportDateOrder, importCmd.Flags().Lookup("date-order"))
	viper.BindPFlag(config.KeyImportDelimiter, importCmd.Flags().Lookup("delimiter"))
	viper.BindPFlag(config.KeyImportPlatform, importCmd.Flags().Lookup("platform"))
	viper.BindPFlag(config.KeyImportStatusPolicy, importCmd.Flags().Lookup("status-policy"))
	viper.BindPFlag(config.KeyImportCodePrefix, importCmd.Flags().Lookup("code-prefix"))
}

func validateImportFlags(cmd *cobra.Command, args []string) error {
	if _, err := config.CreateReportConfig(outputFormat, showDetails); err != nil {
		return configError("output-format", err)
	}

	for _, path := range args {
		if err := validateFileExists(path, "import file"); err != nil {
			return err
		}
	}

	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return configError("output-file", fmt.Errorf("output directory does not exist: %s", dir))
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.BatchIOError(errors.CodeFileNotFound, filePath, fmt.Errorf("%s path cannot be empty", description))
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.BatchIOError(errors.CodeFileNotFound, filePath, err)
	}
	if os.IsPermission(err) {
		return errors.BatchIOError(errors.CodeFilePermission, filePath, err)
	}
	if err != nil {
		return errors.BatchIOError(errors.CodeFileCorrupted, filePath, err)
	}
	if info.IsDir() {
		return errors.BatchIOError(errors.CodeFileCorrupted, filePath,
			fmt.Errorf("%s is a directory, expected a file: %s", description, filePath))
	}

	return nil
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	importConfig, err := config.CreateImportConfig(viper.GetViper())
	if err != nil {
		return configError("import", err)
	}
	reportConfig, err := config.CreateReportConfig(outputFormat, showDetails)
	if err != nil {
		return configError("output-format", err)
	}

	var gw store.Gateway
	if dryRun {
		gw = store.NewMemoryGateway()
	} else if gw, err = gatewayFromConfig(); err != nil {
		return err
	}
	defer gw.Close()

	log := logger.GetGlobalLogger()
	generator, err := reporter.NewSafeReportGenerator(reportConfig, log)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return errors.BatchIOError(errors.CodeFilePermission, outputFile, err)
		}
		defer file.Close()
		out = file
	}

	var failed []*errors.ImportError
	for _, path := range args {
		report, err := importOne(ctx, gw, importConfig, path, log)
		if err != nil {
			return err
		}
		if err := generator.GenerateReportSafely(report, out); err != nil {
			return err
		}
		if summary := report.ErrorSummary(); summary != nil {
			failed = append(failed, summary.Errors...)
		}
	}

	if verbose && dryRun {
		fmt.Fprintln(cmd.ErrOrStderr(), "Dry run: nothing was written to the database.")
	}
	if strict && len(failed) > 0 {
		return errors.NewErrorSummary(failed)
	}
	return nil
}

// importOne runs a single file through its own session
func importOne(ctx context.Context, gw store.Gateway, cfg *importer.Config, path string, log logger.Logger) (*reporter.ImportReport, error) {
	fileConfig := *cfg
	session, err := importer.NewSession(gw, &fileConfig,
		importer.WithLogger(log),
		importer.WithClock(importer.ClockFunc(now)),
	)
	if err != nil {
		return nil, err
	}
	return session.ImportFile(ctx, path)
}
