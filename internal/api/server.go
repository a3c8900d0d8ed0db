// Package api serves the restaurant backend: the REST surface the client's
// remote layer talks to, backed by SQLite.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jpgfer/mws-restaurant-1/internal/ratelimit"
	"github.com/jpgfer/mws-restaurant-1/internal/store/sqlite"
)

// Config holds the HTTP-facing settings of the backend.
type Config struct {
	// CORSOrigins lists the origins allowed to call the API. Empty allows any.
	CORSOrigins []string
	// StaticDir, when set, is served for every path no operation claims.
	StaticDir string
	// RPS and Burst limit requests per client IP. A non-positive RPS disables limiting.
	RPS   float64
	Burst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store     *sqlite.Store
	router    *chi.Mux
	api       huma.API
	limiter   *ratelimit.KeyedRateLimiter
	logger    *slog.Logger
	startedAt time.Time
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(st *sqlite.Store, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	router := chi.NewRouter()
	s := &Server{
		store:     st,
		router:    router,
		logger:    logger,
		startedAt: time.Now(),
	}
	if cfg.RPS > 0 {
		s.limiter = ratelimit.New(cfg.RPS, max(cfg.Burst, 1))
	}

	s.setupMiddleware(cfg)

	humaConfig := huma.DefaultConfig("Restaurant Reviews API", "1.0.0")
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.registerHealthRoutes()
	s.registerRestaurantRoutes()
	s.registerReviewRoutes()

	if cfg.StaticDir != "" {
		router.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
		logger.Info("serving static assets", "dir", cfg.StaticDir)
	}

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// API returns the huma API, for tests and OpenAPI export.
func (s *Server) API() huma.API {
	return s.api
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	if s.limiter != nil {
		s.limiter.Stop()
	}
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(cfg Config) {
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))
	if s.limiter != nil {
		s.router.Use(RateLimitMiddleware(s.limiter, s.logger))
	}
}
