// Package server provides the HTTP server and routing for bakeplan.
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
)

// Config holds server configuration.
type Config struct {
	Port     int
	DevMode  bool
	Log      zerolog.Logger
	Handlers *Handlers
	System   *SystemHandlers
}

// Server is the HTTP server.
type Server struct {
	router *chi.Mux
	server *http.Server
	log    zerolog.Logger
}

// New creates the HTTP server with middleware and all routes mounted.
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes(cfg.Handlers, cfg.System)

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupMiddleware(devMode bool) {
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(middleware.Timeout(60 * time.Second))

	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

func (s *Server) setupRoutes(h *Handlers, sys *SystemHandlers) {
	s.router.Get("/health", sys.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Route("/ingest", func(r chi.Router) {
			r.Post("/sales", h.HandleIngestSales)
			r.Post("/waste", h.HandleIngestWaste)
		})

		r.Route("/plans/{date}", func(r chi.Router) {
			r.Get("/", h.HandleGetPlan)
			r.Post("/generate", h.HandleGeneratePlan)
			r.Route("/waves/{wave}", func(r chi.Router) {
				r.Post("/regenerate", h.HandleRegenerateWave)
				r.Post("/adapt", h.HandleAdaptWave)
				r.Get("/trays", h.HandleTraySchedule)
			})
		})

		r.Route("/stockouts", func(r chi.Router) {
			r.Get("/", h.HandleListStockouts)
			r.Post("/scan", h.HandleScanStockouts)
		})

		r.Route("/weights/{sku}", func(r chi.Router) {
			r.Get("/", h.HandleGetWeights)
			r.Delete("/", h.HandleResetWeights)
		})

		r.Route("/config", func(r chi.Router) {
			r.Route("/ovens", func(r chi.Router) {
				r.Get("/layout", h.HandleGetOvenLayout)
				r.Put("/layout", h.HandleSetOvenLayout)
				r.Put("/products", h.HandleSetOvenProduct)
				r.Put("/programs", h.HandleSetOvenProgram)
			})
			r.Route("/settings/{key}", func(r chi.Router) {
				r.Get("/", h.HandleGetSetting)
				r.Put("/", h.HandleSetSetting)
			})
		})

		r.Post("/corrections", h.HandleCorrection)
		r.Post("/actuals/{date}", h.HandleRecordActuals)
		r.Get("/metrics/{date}", h.HandleMetricsReport)

		r.Route("/system", func(r chi.Router) {
			r.Get("/health", sys.HandleHealth)
		})
	})
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

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
