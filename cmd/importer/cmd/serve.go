package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-reservation-import-service/cmd/importer/config"
	"golang-reservation-import-service/internal/importer"
	"golang-reservation-import-service/internal/web"
	"golang-reservation-import-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP upload endpoint",
	Long: `Serve starts an HTTP server that imports CSV uploads.

  POST /imports   multipart form with the CSV in the "file" field;
                  optional fields "schema" and "date_order"
  GET  /healthz   store health

Example:
  importer serve --addr :8080 --database-driver postgres --dsn "$DATABASE_URL"
  curl -F file=@reservations.csv http://localhost:8080/imports`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	serveCmd.Flags().Int64("max-upload-bytes", 0, "largest accepted upload in bytes")

	viper.BindPFlag(config.KeyServerAddr, serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag(config.KeyServerMaxUploadBytes, serveCmd.Flags().Lookup("max-upload-bytes"))
}

func runServe(cmd *cobra.Command, args []string) error {
	v := viper.GetViper()

	serverConfig, err := config.CreateServerConfig(v)
	if err != nil {
		return configError("server", err)
	}
	importConfig, err := config.CreateImportConfig(v)
	if err != nil {
		return configError("import", err)
	}

	gw, err := gatewayFromConfig()
	if err != nil {
		return err
	}
	defer gw.Close()

	log := logger.GetGlobalLogger()
	server, err := web.NewServer(serverConfig, gw, importConfig, log, importer.WithClock(importer.ClockFunc(now)))
	if err != nil {
		return configError("server", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
