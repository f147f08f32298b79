package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amaumene/seenarr/internal/api/handlers"
	"github.com/amaumene/seenarr/internal/api/middleware"
	"github.com/amaumene/seenarr/internal/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server represents the HTTP server
type Server struct {
	server   *http.Server
	library  handlers.Library
	auth     handlers.Authenticator
	exporter handlers.BackupExporter
	logger   *logrus.Logger
}

// NewServer creates a new HTTP server; exporter may be nil when backups are disabled
func NewServer(cfg *config.Config, library handlers.Library, auth handlers.Authenticator, exporter handlers.BackupExporter, logger *logrus.Logger) *Server {
	s := &Server{
		library:  library,
		auth:     auth,
		exporter: exporter,
		logger:   logger,
	}

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // resync and sweep run inside the request
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in the logging middleware
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.setupRoutes(mux)
	return middleware.Logging(mux, s.logger)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.Handle("/health", handlers.NewHealthHandler(s.logger))
	mux.Handle("/status", handlers.NewStatusHandler(s.library, s.logger))
	mux.Handle("/metrics", promhttp.Handler())

	library := handlers.NewLibraryHandler(s.library, s.logger)
	mux.HandleFunc("/api/library", library.List)
	mux.HandleFunc("/api/watchlist/toggle", library.ToggleWatchlist)
	mux.HandleFunc("/api/watched/toggle", library.ToggleWatched)

	sync := handlers.NewSyncHandler(s.library, s.exporter, s.logger)
	mux.HandleFunc("/api/sync", sync.Resync)
	mux.HandleFunc("/api/sweep", sync.Sweep)
	mux.HandleFunc("/api/backup", sync.Backup)
	mux.HandleFunc("/api/logout", sync.Logout)

	if s.auth != nil {
		auth := handlers.NewAuthHandler(s.auth, s.library, s.logger)
		mux.HandleFunc("/api/auth/start", auth.Start)
		mux.HandleFunc("/api/auth/complete", auth.Complete)
	}
}

// Start starts the HTTP server and blocks until ctx is done
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
