/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the chi router, middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. Logger:     Request logging
  4. CORS:       Cross-origin requests for the station wallboard

SECURITY NOTE:
  No authentication middleware. The service is deployed on the station
  network only; the portal credentials never transit this API.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a router with all routes configured. gatherer serves
// /metrics; pass nil to disable the endpoint.
func NewRouter(h *Handler, gatherer prometheus.Gatherer) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", h.Health)
	if gatherer != nil {
		r.Method("GET", "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/crew", h.ListCrew)
		r.Get("/appliances", h.ListAppliances)

		r.Route("/resources/{id}", func(r chi.Router) {
			r.Get("/", h.GetResource)
			r.Get("/available", h.GetAvailability)
			r.Get("/duration", h.GetDuration)
		})

		r.Get("/crew/{id}/hours", h.GetWeeklyHours)
		r.Get("/appliances/{id}/readiness", h.GetReadiness)

		r.Post("/reconcile", h.TriggerReconcile)
		r.Post("/scrape", h.TriggerScrape)
	})

	return r
}
