package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-reservation-import-service/cmd/importer/config"
	"golang-reservation-import-service/internal/store"
	"golang-reservation-import-service/pkg/logger"
)

var (
	cfgFile string
	envFile string
	verbose bool
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// openGateway and now are replaced in tests
var (
	openGateway = store.Open
	now         = time.Now
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "importer",
	Short: "Booking CSV reservation importer",
	Long: `Importer loads reservation exports from booking platforms into the
guest database. Re-importing a file updates the reservations it already
created instead of duplicating them.

Examples:
  importer import reservations.csv
  importer import pending.csv historical.csv --output-format json
  importer import export.csv --schema airbnb_export --dry-run
  importer serve --addr :8080
  importer checkin --code HMABC123
  importer version

Settings come from flags, IMPORTER_* environment variables, a .env file
and an optional config file, e.g. IMPORTER_DATABASE_DRIVER=postgres and
IMPORTER_DATABASE_DSN="host=localhost user=app dbname=stays".`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (optional)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().String("database-driver", "", "storage backend: postgres, mysql or memory")
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text or json")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag(config.KeyDatabaseDriver, rootCmd.PersistentFlags().Lookup("database-driver"))
	viper.BindPFlag(config.KeyDatabaseDSN, rootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag(config.KeyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag(config.KeyLogFormat, rootCmd.PersistentFlags().Lookup("log-format"))
}

// initConfig reads in the .env file, config file and ENV variables.
func initConfig() {
	if err := config.LoadDotEnv(envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading env file: %s\n", err)
		os.Exit(4)
	}

	config.Bind(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)

		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %s\n", err)
			os.Exit(4)
		}

		if viper.GetBool("verbose") {
			fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
		}
	}
}

// setupLogging replaces the global logger according to the log settings
func setupLogging(cmd *cobra.Command, args []string) error {
	logConfig, err := config.CreateLoggerConfig(viper.GetViper(), viper.GetBool("verbose"))
	if err != nil {
		return configError("log", err)
	}

	log, err := logger.NewLogger(logConfig)
	if err != nil {
		return configError("log", err)
	}
	logger.SetGlobalLogger(log)
	return nil
}

// gatewayFromConfig opens the storage backend named by the database settings
func gatewayFromConfig() (store.Gateway, error) {
	storeConfig, err := config.CreateStoreConfig(viper.GetViper())
	if err != nil {
		return nil, configError("database", err)
	}

	logger.WithFields(logger.Fields{
		"driver":       storeConfig.Driver,
		"auto_migrate": storeConfig.AutoMigrate,
	}).Debug("Opening store")

	gw, err := openGateway(storeConfig)
	if err != nil {
		return nil, storageError("open_store", err)
	}
	return gw, nil
}

// SetVersionInfo sets the version information for the CLI
func SetVersionInfo(v, c, d string) {
	version = v
	commit = c
	date = d
	rootCmd.Version = getVersionString()
}

func getVersionString() string {
	if version == "dev" {
		return fmt.Sprintf("%s (commit %s, built %s)", version, commit, date)
	}
	return version
}
