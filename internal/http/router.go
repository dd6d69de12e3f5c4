package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/redmonkez12/cicero/internal/auth"
	"github.com/redmonkez12/cicero/internal/config"
	"github.com/redmonkez12/cicero/internal/generation"
	"github.com/redmonkez12/cicero/internal/httputil"
	"github.com/redmonkez12/cicero/internal/logging"
	"github.com/redmonkez12/cicero/internal/ratelimit"
	"github.com/redmonkez12/cicero/internal/trip"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Routes holds everything the router mounts.
type Routes struct {
	Auth              *auth.Handler
	AuthMiddleware    *auth.Middleware
	Trips             *trip.Handler
	Generation        *generation.Handler
	GenerationLimiter *ratelimit.UserLimiter
	// Metrics is mounted at /metrics when set.
	Metrics http.Handler
	// DB is pinged by /health when set.
	DB Pinger
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, routes Routes, logger *logging.Logger) *chi.Mux {
	r := chi.NewRouter()

	// CORS - must be first
	if len(cfg.Server.TrustedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.Server.TrustedOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length", "Retry-After"},
			AllowCredentials: true,
			MaxAge:           300, // 5 minutes
		}))
	}

	r.Use(SecurityHeaders)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.RequestLogger(logger))

	// Streamed responses stay outside the compressed group so every
	// fragment reaches the client as soon as it is flushed.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/health", handleHealth(routes.DB))
		if routes.Metrics != nil {
			r.Method(http.MethodGet, "/metrics", routes.Metrics)
		}

		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", routes.Auth.Register)
			r.Post("/login", routes.Auth.Login)
			r.Post("/logout", routes.Auth.Logout)
			r.Post("/forgot-password", routes.Auth.ForgotPassword)
			r.Post("/reset-password", routes.Auth.ResetPassword)
			r.Get("/google/login", routes.Auth.GoogleLogin)
			r.Get("/google/callback", routes.Auth.GoogleCallback)

			r.With(routes.AuthMiddleware.RequireAuth).Get("/me", routes.Auth.Me)
		})

		// Protected routes (require authentication)
		r.Group(func(r chi.Router) {
			r.Use(routes.AuthMiddleware.RequireAuth)

			r.Get("/trips", routes.Trips.List)
			r.Get("/trips/{id}", routes.Trips.Get)
			r.Get("/generate/options", routes.Generation.Options)
		})
	})

	generate := http.Handler(http.HandlerFunc(routes.Generation.Generate))
	if routes.GenerationLimiter != nil {
		generate = routes.GenerationLimiter.Middleware(generate)
	}
	r.With(routes.AuthMiddleware.RequireAuth).Method(http.MethodPost, "/generate", generate)

	return r
}

func handleHealth(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				logging.GetLoggerFromContext(r.Context()).Error("health check failed", "error", err.Error())
				httputil.RespondJSON(w, map[string]string{"status": "database unavailable"}, http.StatusServiceUnavailable)
				return
			}
		}
		httputil.RespondJSON(w, map[string]string{"status": "api is running"}, http.StatusOK)
	}
}
