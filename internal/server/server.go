// Package server wires the router, middleware and handlers into one HTTP server.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/quarry-io/quarry/internal/config"
	"github.com/quarry-io/quarry/internal/handler"
	"github.com/quarry-io/quarry/internal/health"
	"github.com/quarry-io/quarry/internal/middleware"
)

// Server represents the HTTP server.
type Server struct {
	router      *mux.Router
	httpServer  *http.Server
	handlers    *handler.Handlers
	healthCheck *health.HealthCheck
	errorWriter *handler.ErrorWriter
	logger      *zap.Logger
	cfg         *config.Config
}

// NewServer creates a new HTTP server over the dataset API.
func NewServer(cfg *config.Config, datasets handler.DatasetAPI, checks map[string]health.Check, logger *zap.Logger) *Server {
	router := mux.NewRouter()
	errorWriter := handler.NewErrorWriter(logger)
	handlers := handler.NewHandlers(datasets, errorWriter, logger, cfg.Server.WriteTimeout)
	healthCheck := health.NewHealthCheck(checks, logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		router:      router,
		httpServer:  httpServer,
		handlers:    handlers,
		healthCheck: healthCheck,
		errorWriter: errorWriter,
		logger:      logger,
		cfg:         cfg,
	}
}

// SetupRoutes configures all HTTP routes.
func (s *Server) SetupRoutes() {
	middlewareChain := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID,
		middleware.Logging(s.logger),
	}

	if s.cfg.RateLimiter.Enabled {
		rateLimiter := middleware.NewRateLimiter(
			s.cfg.RateLimiter.RequestsPerSecond,
			s.cfg.RateLimiter.BurstSize,
			s.logger,
		)
		middlewareChain = append(middlewareChain, rateLimiter.Limit)
	}

	chain := middleware.Chain(middlewareChain...)
	s.router.Use(func(next http.Handler) http.Handler {
		return chain(next)
	})

	// Operational endpoints
	s.router.HandleFunc("/health", s.healthCheck.LivenessHandler).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.healthCheck.ReadinessHandler).Methods(http.MethodGet)
	if s.cfg.Metrics.Enabled {
		s.router.Handle(s.cfg.Metrics.Path, promhttp.Handler()).Methods(http.MethodGet)
	}

	// API v1 routes
	v1 := s.router.PathPrefix("/v1").Subrouter()

	v1.HandleFunc("/datasets", s.handlers.CreateDataset).Methods(http.MethodPost)
	v1.HandleFunc("/datasets/{dataset_id}", s.handlers.GetDataset).Methods(http.MethodGet)
	v1.HandleFunc("/datasets/{dataset_id}", s.handlers.DeleteDataset).Methods(http.MethodDelete)

	v1.HandleFunc("/datasets/{dataset_id}/versions", s.handlers.CreateVersion).Methods(http.MethodPost)
	v1.HandleFunc("/datasets/{dataset_id}/versions", s.handlers.ListVersions).Methods(http.MethodGet)
	v1.HandleFunc("/datasets/{dataset_id}/versions/{tag}/tree", s.handlers.GetFileTree).Methods(http.MethodGet)
	v1.HandleFunc("/datasets/{dataset_id}/versions/{tag}/files", s.handlers.BrowseDirectory).Methods(http.MethodGet)

	v1.HandleFunc("/datasets/{dataset_id}/history", s.handlers.GetHistory).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorWriter.WriteErrorResponse(w, http.StatusNotFound, handler.ErrorCodeInvalidRequest,
			"endpoint not found", r.Header.Get("X-Request-ID"))
	})

	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.errorWriter.WriteErrorResponse(w, http.StatusMethodNotAllowed, handler.ErrorCodeInvalidRequest,
			"method not allowed", r.Header.Get("X-Request-ID"))
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server",
		zap.Int("port", s.cfg.Server.Port),
	)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

// GetHandler returns the http.Handler for the server.
func (s *Server) GetHandler() http.Handler {
	return s.router
}
