package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/gateway", s.HandleGetGateway)
		r.Get("/queue", s.HandleGetQueue)
		r.Get("/stats", s.HandleGetStats)
		r.Get("/events", s.HandleListEvents)
	})
}
