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

	"github.com/ashani/stock-screener/internal/config"
	"github.com/ashani/stock-screener/internal/database"
	"github.com/ashani/stock-screener/internal/modules/universe"
	"github.com/ashani/stock-screener/internal/modules/valuation"
)

// Config holds server configuration
type Config struct {
	Log               zerolog.Logger
	DB                *database.DB
	Config            *config.Config
	UniverseHandlers  *universe.UniverseHandlers
	ValuationHandlers *valuation.ValuationHandlers
}

// Server represents the HTTP server
type Server struct {
	router            *chi.Mux
	server            *http.Server
	log               zerolog.Logger
	db                *database.DB
	cfg               *config.Config
	universeHandlers  *universe.UniverseHandlers
	valuationHandlers *valuation.ValuationHandlers
	systemHandlers    *SystemHandlers
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router:            chi.NewRouter(),
		log:               cfg.Log.With().Str("component", "server").Logger(),
		db:                cfg.DB,
		cfg:               cfg.Config,
		universeHandlers:  cfg.UniverseHandlers,
		valuationHandlers: cfg.ValuationHandlers,
		systemHandlers:    NewSystemHandlers(cfg.Log, cfg.DB),
	}

	s.setupMiddleware(cfg.Config.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	// Batch runs walk the whole universe against an external API, so the
	// timeout is generous.
	s.router.Use(middleware.Timeout(10 * time.Minute))

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
	s.router.Get("/health", s.systemHandlers.HandleHealth)

	// API routes
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/system/status", s.systemHandlers.HandleSystemStatus)

		// Universe population
		r.Post("/grab-csvs", s.universeHandlers.HandleGrabCSVs)
		r.Post("/populate-stocks", s.universeHandlers.HandlePopulateStocks)

		// Valuation runs and reads
		r.Post("/populate-valuation-references", s.valuationHandlers.HandlePopulateReferences)
		r.Post("/populate-valuation-snapshots", s.valuationHandlers.HandlePopulateSnapshots)
		r.Get("/references", s.valuationHandlers.HandleGetReferences)
		r.Get("/snapshots", s.valuationHandlers.HandleGetSnapshots)
	})
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
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}

// Router returns the underlying router, used by handler tests
func (s *Server) Router() http.Handler {
	return s.router
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
