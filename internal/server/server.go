package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/hongminglow/ekonzims-be/internal/config"
	"github.com/hongminglow/ekonzims-be/internal/http/handlers"
	"github.com/hongminglow/ekonzims-be/internal/http/respond"
	"github.com/hongminglow/ekonzims-be/internal/middleware"
	"github.com/hongminglow/ekonzims-be/internal/service"
)

// Auth endpoints: 20 requests per minute per IP, then a 5 minute block.
const (
	authRateLimit  = 20
	authRateWindow = time.Minute
	authRateBlock  = 5 * time.Minute
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Auth     *service.AuthService
	Gate     *service.AdminGate
	Commerce *service.CommerceService
	Admin    *service.AdminService
	// Redis enables rate limiting on /api/auth when set.
	Redis  *redis.Client
	Logger *zap.Logger
}

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, deps Deps) *Server {
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           NewRouter(cfg, deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return &Server{inner: httpServer}
}

// NewRouter builds the full route tree under /api.
func NewRouter(cfg config.Config, deps Deps) http.Handler {
	logger := deps.Logger
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxyHeaders {
		// Without a rewriting proxy in front these headers are client input
		// and would let callers pick their own rate limit key.
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: !allowsAnyOrigin(cfg.CORSOrigins),
		MaxAge:           300,
	}))

	requireUser := middleware.RequireUser(deps.Auth, logger)
	requireAdmin := middleware.RequireAdmin(deps.Gate, logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respond.Error(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.Route("/api", func(r chi.Router) {
		handlers.NewHealthHandler(time.Now(), cfg.StoreBackend).Routes(r)
		r.Route("/auth", func(r chi.Router) {
			if deps.Redis != nil {
				r.Use(middleware.RateLimit(deps.Redis, authRateLimit, authRateWindow, authRateBlock, "ekonzims:ratelimit:auth", logger))
			}
			handlers.NewAuthHandler(deps.Auth, logger).Routes(r)
		})
		handlers.NewCommerceHandler(deps.Commerce, requireUser, logger).Routes(r)
		r.Route("/admin", handlers.NewAdminHandler(deps.Admin, requireAdmin, logger).Routes)
	})
	return r
}

// allowsAnyOrigin reports whether origins admits every origin: an empty list
// or one holding "*". Credentials are never allowed for such a list.
func allowsAnyOrigin(origins []string) bool {
	if len(origins) == 0 {
		return true
	}
	for _, o := range origins {
		if o == "*" {
			return true
		}
	}
	return false
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
