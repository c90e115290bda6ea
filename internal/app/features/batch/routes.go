// internal/app/features/batch/routes.go
package batch

import "github.com/go-chi/chi/v5"

func Register(r chi.Router, h *Handler) {
	r.Get("/terms/{term}/batch/modules/{code}", h.ServeModule)
	r.Post("/terms/{term}/batch/modules", h.HandleModules)
	r.Get("/terms/{term}/batch/classes/{name}", h.ServeClass)
}
