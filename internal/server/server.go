package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"genienews/internal/core"
	"genienews/internal/server/handlers"
)

const shutdownTimeout = 30 * time.Second

// Server hosts the HTTP routes of every enabled feature
type Server struct {
	config   *core.Config
	logger   *core.Logger
	db       *core.Database
	registry *core.Registry
	server   *http.Server
}

// New creates a server for the features in registry
func New(config *core.Config, logger *core.Logger, db *core.Database, registry *core.Registry) *Server {
	srv := &Server{
		config:   config,
		logger:   logger,
		db:       db,
		registry: registry,
	}

	srv.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port),
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv
}

func (s *Server) routes() http.Handler {
	portalHandler := handlers.NewPortalHandler(s.logger, s.registry, s.db)

	mux := chi.NewRouter()

	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(middleware.Logger)

	mux.Get("/health", portalHandler.HealthCheckHandler)
	mux.Get("/api/features", portalHandler.FeaturesHandler)

	// Feature routes
	for _, route := range s.registry.GetAllRoutes() {
		mux.Method(route.Method, route.Path, route.Handler)
	}

	return mux
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Run initializes the features and serves until ctx is cancelled, then
// shuts everything down
func (s *Server) Run(ctx context.Context) error {
	if err := s.registry.InitAll(ctx); err != nil {
		s.logger.Error("Failed to initialize features", "error", err)
		s.registry.ShutdownAll(context.Background())
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", "host", s.config.Server.Host, "port", s.config.Server.Port)
		errCh <- s.server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.registry.ShutdownAll(context.Background())
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops accepting requests, then stops the features
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.registry.ShutdownAll(ctx)
	return nil
}
