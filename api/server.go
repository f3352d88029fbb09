/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for dashboards

ROUTES:
  POST /webhook              Chat platform webhook ingress
  GET  /api/users/{id}/stats Total + rank for one user
  GET  /api/leaderboard      Windowed top

SECURITY NOTE:
  No authentication middleware. The webhook assumes the platform has
  pre-validated the sender; put a secret path segment or reverse proxy in
  front for production.

SEE ALSO:
  - handlers.go: handler implementations
  - cmd/server/main.go: server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Post("/webhook", h.Webhook)

	r.Route("/api", func(r chi.Router) {
		r.Get("/users/{id}/stats", h.GetUserStats)
		r.Get("/leaderboard", h.GetLeaderboard)
	})

	return r
}
