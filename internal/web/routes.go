package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/trip-book/internal/web/handlers"
)

func (s *Server) setupRoutes() {
	booksHandler := handlers.NewBooksHandler(s.generator, s.log)
	stopsHandler := handlers.NewStopsHandler(s.store, s.log)
	picksHandler := handlers.NewPicksHandler(s.store, s.log)

	s.router.Get("/api/v1/health", handlers.HealthCheck)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1/books/{id}", func(r chi.Router) {
		r.Post("/plan", booksHandler.Generate)
		r.Get("/plan", booksHandler.GetPlan)
		r.Get("/debug", booksHandler.Debug)

		r.Get("/overrides", stopsHandler.ListOverrides)
		r.Patch("/stops/{stableId}", stopsHandler.Patch)

		r.Put("/picks", picksHandler.Set)
		r.Delete("/picks", picksHandler.Reset)
	})

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":"not found"}`))
	})
}
