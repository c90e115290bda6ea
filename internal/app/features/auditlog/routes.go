// internal/app/features/auditlog/routes.go
package auditlog

import "github.com/go-chi/chi/v5"

func Register(r chi.Router, h *Handler) {
	r.Get("/audit-events", h.ServeList)
}
