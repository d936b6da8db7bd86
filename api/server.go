/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/requests/*   Submission, queues, decisions, documents
  /api/employees/*  Budget reads
  /api/reports/*    Tabular export

SECURITY NOTE:
  No authentication middleware currently. The role field on a decision is
  trusted as given; production deployments front this with an
  authenticating proxy.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/requests", func(r chi.Router) {
			r.Post("/", h.SubmitRequest)
			r.Get("/", h.ListRequests)
			r.Post("/decisions", h.ApplyBulkDecision)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/decision", h.ApplyDecision)
			r.Get("/{id}/document", h.GetDocument)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Get("/{id}/budget", h.GetBudget)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/requests.xlsx", h.ExportRequests)
		})
	})

	return r
}
