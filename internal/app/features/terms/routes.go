// internal/app/features/terms/routes.go
package terms

import "github.com/go-chi/chi/v5"

// Register adds the term routes to the /api router.
func Register(r chi.Router, h *Handler) {
	r.Get("/terms", h.ServeList)
	r.Post("/terms", h.HandleCreate)
	r.Get("/terms/active", h.ServeActive)
	r.Post("/terms/activate", h.HandleActivate)
	r.Post("/terms/{term}/activation-plan", h.HandlePlan)
}
