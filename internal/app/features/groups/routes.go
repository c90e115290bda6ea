// internal/app/features/groups/routes.go
package groups

import "github.com/go-chi/chi/v5"

// Register adds the group routes to the /api router.
func Register(r chi.Router, h *Handler) {
	r.Get("/terms/{term}/groups", h.ServeList)
	r.Put("/terms/{term}/groups/{kind}", h.HandleReplace)
	r.Delete("/groups/{id}", h.HandleDelete)
}
