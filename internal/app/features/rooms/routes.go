// internal/app/features/rooms/routes.go
package rooms

import "github.com/go-chi/chi/v5"

func Register(r chi.Router, h *Handler) {
	r.Get("/rooms", h.ServeRooms)
	r.Get("/rooms/candidates", h.ServeCandidates)
	r.Get("/time-slots", h.ServeTimeSlots)
}
