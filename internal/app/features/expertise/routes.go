// internal/app/features/expertise/routes.go
package expertise

import "github.com/go-chi/chi/v5"

func Register(r chi.Router, h *Handler) {
	r.Get("/modules/{id}/expertise", h.ServeList)
	r.Post("/modules/{id}/expertise", h.HandleAssign)
	r.Delete("/modules/{id}/expertise", h.HandleUnassign)
}
