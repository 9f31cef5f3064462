// Package server exposes the analysis engines over HTTP and WebSocket.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"regimefolio/internal/config"
	"regimefolio/internal/database"
	"regimefolio/internal/events"
	"regimefolio/internal/frontier"
	"regimefolio/internal/marketdata"
	"regimefolio/internal/progress"
	"regimefolio/internal/rates"
	"regimefolio/internal/scheduler"
	"regimefolio/internal/simulation"
)

// Config holds server configuration
type Config struct {
	Port    int
	DevMode bool
	Log     zerolog.Logger
	Cfg     *config.Config
	DB      *database.DB

	Prices      marketdata.Provider
	Rates       *rates.Provider
	Simulator   *simulation.Engine
	Frontier    *frontier.Optimizer
	Broadcaster *progress.Broadcaster
	Events      *events.Manager

	Scheduler      *scheduler.Scheduler
	PriceSyncJob   scheduler.Job
	RateRefreshJob scheduler.Job
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
	cfg    *config.Config
	db     *database.DB

	prices      marketdata.Provider
	rates       *rates.Provider
	simulator   *simulation.Engine
	frontier    *frontier.Optimizer
	broadcaster *progress.Broadcaster
	events      *events.Manager

	scheduler      *scheduler.Scheduler
	priceSyncJob   scheduler.Job
	rateRefreshJob scheduler.Job

	startupTime time.Time
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:         chi.NewRouter(),
		log:            cfg.Log.With().Str("component", "server").Logger(),
		cfg:            cfg.Cfg,
		db:             cfg.DB,
		prices:         cfg.Prices,
		rates:          cfg.Rates,
		simulator:      cfg.Simulator,
		frontier:       cfg.Frontier,
		broadcaster:    cfg.Broadcaster,
		events:         cfg.Events,
		scheduler:      cfg.Scheduler,
		priceSyncJob:   cfg.PriceSyncJob,
		rateRefreshJob: cfg.RateRefreshJob,
		startupTime:    time.Now(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.Get("/health", s.handleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/regimes", s.handleListRegimes)
		r.Get("/regimes/{key}", s.handleGetRegime)
		r.Post("/simulate", s.handleSimulate)
		r.Post("/frontier", s.handleFrontier)

		// System
		r.Route("/system", func(r chi.Router) {
			r.Get("/status", s.handleSystemStatus)
		})

		// Manual job triggers
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/price-sync", s.handleTriggerPriceSync)
			r.Post("/rate-refresh", s.handleTriggerRateRefresh)
		})
	})

	// Progress streaming
	s.router.Get("/ws/progress/{runID}", s.handleProgressSocket)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
