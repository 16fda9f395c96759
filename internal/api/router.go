// Package api wires the Chi router: middleware, admin basic auth, and the
// endpoint handlers.
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"

	"github.com/tariwatch/tariwatch/internal/api/handler"
	"github.com/tariwatch/tariwatch/internal/config"
)

// NewRouter creates and configures the Chi router with all middleware and
// routes. Administrative endpoints sit behind basic auth when credentials
// are configured; /api/init stays open so new users can register.
func NewRouter(h *handler.Handler, cfg *config.Config) *chi.Mux {
	r := chi.NewRouter()

	// --- Middleware stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(TimingMiddleware)
	r.Use(middleware.Compress(5)) // gzip

	// CORS
	c := corslib.New(corslib.Options{
		AllowedOrigins:   cfg.CORSAllowOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Accept-Encoding", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Process-Time"},
		AllowCredentials: false,
	})
	r.Use(c.Handler)

	// Rate limiting
	if cfg.RateLimitEnabled {
		r.Use(RateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow))
	}

	// --- Open routes ---
	r.Get("/", h.Root)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", h.HealthCheck)
		r.Get("/db", h.HealthCheckDB)
	})
	r.Handle("/metrics", promhttp.Handler())

	// Registration validates the token upstream, so it stays unauthenticated.
	r.Post("/api/init", h.InitUser)

	// --- Admin routes ---
	r.Route("/api", func(r chi.Router) {
		if cfg.AdminUsername != "" {
			r.Use(middleware.BasicAuth("Tari Score Monitor", map[string]string{
				cfg.AdminUsername: cfg.AdminPassword,
			}))
		}

		r.Get("/users", h.ListUsers)
		r.Get("/user/{userID}", h.GetUserDetail)
		r.Get("/scores/{userID}", h.GetScores)

		r.Post("/settings/{userID}", h.UpdateUserSettings)
		r.Get("/settings", h.GetSettings)
		r.Put("/settings", h.UpdateSettings)

		r.Post("/force-fetch/{userID}", h.ForceFetch)
		r.Post("/send-discord-notification/{userID}", h.SendNotification)

		r.Post("/user/{userID}/clear-token", h.ClearToken)
		r.Post("/user/{userID}/delete", h.DeleteUser)
	})

	return r
}
