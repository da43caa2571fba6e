package web

import "github.com/go-chi/chi/v5"

func (s *Server) setupRoutes() {
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/health", s.api.HealthCheck)

		r.Get("/persons", s.api.ListPersons)
		r.Post("/persons", s.api.RegisterPerson)
		r.Patch("/persons/{id}", s.api.RenamePerson)
		r.Delete("/persons/{id}", s.api.RemovePerson)
		r.Delete("/persons", s.api.ClearPersons)

		r.Get("/active", s.api.ActivePerson)
		r.Post("/identify", s.api.Identify)
	})
}
