// internal/app/features/modules/routes.go
package modules

import "github.com/go-chi/chi/v5"

// Register adds the module catalogue and mapping routes to the /api router.
func Register(r chi.Router, h *Handler) {
	r.Get("/modules", h.ServeCatalogue)
	r.Get("/modules/by-code/{code}", h.ServeModule)

	r.Get("/terms/{term}/modules/{code}/groups", h.ServeModuleGroups)
	r.Put("/terms/{term}/modules/{code}/groups", h.HandleMap)
	r.Get("/terms/{term}/groups/available", h.ServeAvailable)
	r.Get("/terms/{term}/groups/status", h.ServeStatus)

	r.Post("/terms/{term}/module-mappings/batch", h.HandleBatch)
	r.Post("/module-mappings/batch", h.HandleBatchMultiTerm)
}
