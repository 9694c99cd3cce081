// Package web exposes the importer over HTTP.
//
// POST /imports accepts a multipart CSV upload in the "file" field and
// answers with the import result as JSON. GET /healthz reports whether the
// store is reachable.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"golang-reservation-import-service/internal/importer"
	"golang-reservation-import-service/internal/store"
	"golang-reservation-import-service/pkg/logger"
)

// Config holds the HTTP server settings
type Config struct {
	Addr           string        `mapstructure:"addr"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// DefaultConfig returns the server defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:           ":8080",
		MaxUploadBytes: 10 << 20,
		ReadTimeout:    15 * time.Second,
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 5 * time.Minute,
	}
}

// Validate checks the server settings
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("request timeout cannot be negative")
	}
	return nil
}

// Server is the HTTP front end of the importer
type Server struct {
	cfg       *Config
	gateway   store.Gateway
	importCfg importer.Config
	opts      []importer.Option
	logger    logger.Logger
	router    *chi.Mux
	server    *http.Server
}

// NewServer creates a server that imports uploads through gateway. opts are
// applied to every import session.
func NewServer(cfg *Config, gateway store.Gateway, importCfg *importer.Config, log logger.Logger, opts ...importer.Option) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if gateway == nil {
		return nil, fmt.Errorf("gateway cannot be nil")
	}
	if importCfg == nil {
		importCfg = importer.DefaultConfig()
	}
	if err := importCfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	s := &Server{
		cfg:       cfg,
		gateway:   gateway,
		importCfg: *importCfg,
		opts:      opts,
		logger:    log.WithComponent("web"),
		router:    chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	if s.cfg.RequestTimeout > 0 {
		s.router.Use(middleware.Timeout(s.cfg.RequestTimeout))
	}
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/imports", s.handleImport)
}

// Start listens on the configured address until Shutdown is called
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:        s.cfg.Addr,
		Handler:     s.router,
		ReadTimeout: s.cfg.ReadTimeout,
		IdleTimeout: s.cfg.IdleTimeout,
	}

	s.logger.WithField("addr", s.cfg.Addr).Info("Starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
