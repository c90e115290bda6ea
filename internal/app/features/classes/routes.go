// internal/app/features/classes/routes.go
package classes

import "github.com/go-chi/chi/v5"

// Register adds the class binding routes to the /api router.
func Register(r chi.Router, h *Handler) {
	r.Get("/terms/{term}/classes", h.ServeList)
	r.Post("/terms/{term}/classes", h.HandleCreate)
	r.Put("/classes/{id}", h.HandleUpdate)
	r.Delete("/classes/{id}", h.HandleDelete)
}
