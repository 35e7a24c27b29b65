// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"civicpulse/internal/config"
	"civicpulse/internal/domain/geo"
	"civicpulse/internal/domain/rollup"
	"civicpulse/internal/logging"
	"civicpulse/internal/server/handlers"
)

// Dependencies are the services the HTTP API is built on
type Dependencies struct {
	Resolver   geo.Resolver
	Aggregator rollup.Aggregator
	Rollups    rollup.Reader

	// Feed is optional; without it the WebSocket route is not mounted
	Feed handlers.Subscriber
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(cfg config.ServerConfig, deps Dependencies, logger *zap.Logger) *Server {
	logger = logging.OrNop(logger)
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	locationHandler := handlers.NewLocationHandler(deps.Resolver, logger)
	aggregationHandler := handlers.NewAggregationHandler(deps.Aggregator, logger)
	rollupHandler := handlers.NewRollupHandler(deps.Rollups, logger)

	// Routes
	router.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			r.With(middleware.Timeout(60*time.Second)).
				Post("/locations/resolve", locationHandler.Resolve)

			// Runs are bounded by the engine's own fetch and upsert timeouts
			r.Post("/aggregations", aggregationHandler.Run)

			r.Route("/rollups", func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Get("/", rollupHandler.ListRollups)
				r.Get("/{region}/{city}/{date}", rollupHandler.GetRollup)
			})
		})
	})

	// WebSocket endpoint for live rollups
	if deps.Feed != nil {
		router.Get("/ws/rollups", handlers.RollupFeedHandler(deps.Feed, logger))
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// requestLogger logs each request through zap
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
