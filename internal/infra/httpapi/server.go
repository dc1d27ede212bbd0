package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter builds the operator API:
//
//	POST /api/v1/collections/run             run a cycle now (409 while one is running)
//	GET  /api/v1/collections/status          scheduler state and last persisted cycle
//	GET  /api/v1/units/{unitID}/escalations  unit state, open charges, events and notices
//	GET  /healthz
//	GET  /metrics
func NewRouter(h *Handler, metricsHandler http.Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(h.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Health)
	if metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", metricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/collections", func(r chi.Router) {
			r.Post("/run", h.RunCollections)
			r.Get("/status", h.CollectionsStatus)
		})
		r.Get("/units/{unitID}/escalations", h.UnitEscalations)
	})

	return r
}
