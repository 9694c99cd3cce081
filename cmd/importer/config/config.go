// Package config turns viper settings into validated component
// configurations for the importer commands.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"golang-reservation-import-service/internal/importer"
	"golang-reservation-import-service/internal/parsers"
	"golang-reservation-import-service/internal/reporter"
	"golang-reservation-import-service/internal/status"
	"golang-reservation-import-service/internal/store"
	"golang-reservation-import-service/internal/web"
	"golang-reservation-import-service/pkg/logger"
)

// EnvPrefix is prepended to every environment variable, e.g. IMPORTER_DATABASE_DSN
const EnvPrefix = "IMPORTER"

// Setting keys
const (
	KeyDatabaseDriver      = "database.driver"
	KeyDatabaseDSN         = "database.dsn"
	KeyDatabaseAutoMigrate = "database.auto_migrate"
	KeyDatabaseLogQueries  = "database.log_queries"

	KeyImportSchema              = "import.schema"
	KeyImportDateOrder           = "import.date_order"
	KeyImportDelimiter           = "import.delimiter"
	KeyImportPlatform            = "import.platform"
	KeyImportUnconfirmedPlatform = "import.unconfirmed_platform"
	KeyImportDefaultCountryCode  = "import.default_country_code"
	KeyImportCurrency            = "import.currency"
	KeyImportCodePrefix          = "import.code_prefix"
	KeyImportMaxCodeAttempts     = "import.max_code_attempts"
	KeyImportStatusPolicy        = "import.status_policy"
	KeyImportTimezone            = "import.timezone"
	KeyImportColumnAliases       = "import.column_aliases"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
	KeyLogOutput = "log.output"
	KeyLogFile   = "log.file"

	KeyServerAddr           = "server.addr"
	KeyServerMaxUploadBytes = "server.max_upload_bytes"
	KeyServerRequestTimeout = "server.request_timeout"
)

// SetDefaults registers the default value of every setting on v
func SetDefaults(v *viper.Viper) {
	storeDefaults := store.DefaultConfig()
	v.SetDefault(KeyDatabaseDriver, string(storeDefaults.Driver))
	v.SetDefault(KeyDatabaseDSN, "")
	v.SetDefault(KeyDatabaseAutoMigrate, storeDefaults.AutoMigrate)
	v.SetDefault(KeyDatabaseLogQueries, false)

	importDefaults := importer.DefaultConfig()
	v.SetDefault(KeyImportSchema, string(importDefaults.Schema))
	v.SetDefault(KeyImportDateOrder, string(importDefaults.DateOrder))
	v.SetDefault(KeyImportDelimiter, string(importDefaults.Delimiter))
	v.SetDefault(KeyImportPlatform, importDefaults.Platform)
	v.SetDefault(KeyImportUnconfirmedPlatform, importDefaults.UnconfirmedPlatform)
	v.SetDefault(KeyImportDefaultCountryCode, importDefaults.DefaultCountryCode)
	v.SetDefault(KeyImportCurrency, importDefaults.Currency)
	v.SetDefault(KeyImportCodePrefix, importDefaults.CodePrefix)
	v.SetDefault(KeyImportMaxCodeAttempts, importDefaults.MaxCodeAttempts)
	v.SetDefault(KeyImportStatusPolicy, string(importDefaults.StatusPolicy))
	v.SetDefault(KeyImportTimezone, "Local")

	logDefaults := logger.DefaultConfig()
	v.SetDefault(KeyLogLevel, string(logDefaults.Level))
	v.SetDefault(KeyLogFormat, string(logDefaults.Format))
	v.SetDefault(KeyLogOutput, string(logDefaults.Output))

	serverDefaults := web.DefaultConfig()
	v.SetDefault(KeyServerAddr, serverDefaults.Addr)
	v.SetDefault(KeyServerMaxUploadBytes, serverDefaults.MaxUploadBytes)
	v.SetDefault(KeyServerRequestTimeout, serverDefaults.RequestTimeout)
}

// NewViper returns a viper instance with defaults and environment binding
func NewViper() *viper.Viper {
	v := viper.New()
	Bind(v)
	return v
}

// Bind applies defaults and environment lookup to v
func Bind(v *viper.Viper) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are ignored; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// CreateStoreConfig builds the storage configuration
func CreateStoreConfig(v *viper.Viper) (*store.Config, error) {
	cfg := &store.Config{
		Driver:      store.Driver(strings.ToLower(strings.TrimSpace(v.GetString(KeyDatabaseDriver)))),
		DSN:         v.GetString(KeyDatabaseDSN),
		AutoMigrate: v.GetBool(KeyDatabaseAutoMigrate),
		LogQueries:  v.GetBool(KeyDatabaseLogQueries),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateImportConfig builds the import configuration
func CreateImportConfig(v *viper.Viper) (*importer.Config, error) {
	cfg := importer.DefaultConfig()

	schema, err := parsers.ParseSchemaKind(v.GetString(KeyImportSchema))
	if err != nil {
		return nil, err
	}
	cfg.Schema = schema

	order, err := parsers.ParseDateOrder(v.GetString(KeyImportDateOrder))
	if err != nil {
		return nil, err
	}
	cfg.DateOrder = order

	delimiter, err := ParseDelimiter(v.GetString(KeyImportDelimiter))
	if err != nil {
		return nil, err
	}
	cfg.Delimiter = delimiter

	policy, err := status.ParsePolicy(v.GetString(KeyImportStatusPolicy))
	if err != nil {
		return nil, err
	}
	cfg.StatusPolicy = policy

	location, err := time.LoadLocation(v.GetString(KeyImportTimezone))
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", v.GetString(KeyImportTimezone), err)
	}
	cfg.Location = location

	cfg.Platform = strings.TrimSpace(v.GetString(KeyImportPlatform))
	cfg.UnconfirmedPlatform = v.GetBool(KeyImportUnconfirmedPlatform)
	cfg.DefaultCountryCode = strings.TrimSpace(v.GetString(KeyImportDefaultCountryCode))
	cfg.Currency = strings.ToUpper(strings.TrimSpace(v.GetString(KeyImportCurrency)))
	cfg.CodePrefix = strings.TrimSpace(v.GetString(KeyImportCodePrefix))
	cfg.MaxCodeAttempts = v.GetInt(KeyImportMaxCodeAttempts)
	if aliases := v.GetStringMapString(KeyImportColumnAliases); len(aliases) > 0 {
		cfg.ColumnAliases = aliases
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ParseDelimiter accepts a single character or the names "tab" and "semicolon"
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", ",", "comma":
		return ',', nil
	case "\\t", "\t", "tab":
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	}
	runes := []rune(s)
	if len(runes) != 1 || runes[0] == '"' || runes[0] == '\n' || runes[0] == '\r' {
		return 0, fmt.Errorf("invalid delimiter '%s': must be a single character", s)
	}
	return runes[0], nil
}

// CreateLoggerConfig builds the logger configuration. verbose forces debug level.
func CreateLoggerConfig(v *viper.Viper, verbose bool) (*logger.Config, error) {
	cfg := &logger.Config{
		Level:  logger.Level(strings.ToLower(v.GetString(KeyLogLevel))),
		Format: logger.Format(strings.ToLower(v.GetString(KeyLogFormat))),
		Output: logger.Output(strings.ToLower(v.GetString(KeyLogOutput))),
		File:   v.GetString(KeyLogFile),
	}
	if cfg.Level == "warning" {
		cfg.Level = logger.WarnLevel
	}
	if verbose {
		cfg.Level = logger.DebugLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateServerConfig builds the HTTP server configuration
func CreateServerConfig(v *viper.Viper) (*web.Config, error) {
	cfg := web.DefaultConfig()
	cfg.Addr = v.GetString(KeyServerAddr)
	cfg.MaxUploadBytes = v.GetInt64(KeyServerMaxUploadBytes)
	cfg.RequestTimeout = v.GetDuration(KeyServerRequestTimeout)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateReportConfig creates a report configuration for the specified output format
func CreateReportConfig(format string, details bool) (*reporter.ReportConfig, error) {
	cfg := reporter.DefaultReportConfig()
	cfg.Format = reporter.OutputFormat(strings.ToLower(format))
	cfg.IncludeDetails = details

	switch cfg.Format {
	case reporter.FormatJSON:
		cfg.MaxItems = 0
	case reporter.FormatCSV:
		cfg.CSVHeaders = true
		cfg.CSVDelimiter = ','
		cfg.MaxItems = 0
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
