// internal/app/features/rooms/handler.go
package rooms

import (
	"net/http"
	"strconv"

	apierrors "github.com/dalemusser/curriculum/internal/app/features/errors"
	roomstore "github.com/dalemusser/curriculum/internal/app/store/rooms"
	timeslotstore "github.com/dalemusser/curriculum/internal/app/store/timeslots"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/httpjson"
	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the room and time slot lookup tables.
type Handler struct {
	Rooms     *roomstore.Store
	TimeSlots *timeslotstore.Store
	ErrLog    *apierrors.ErrorLogger
	Log       *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Rooms:     roomstore.New(db),
		TimeSlots: timeslotstore.New(db),
		ErrLog:    errLog,
		Log:       logger,
	}
}

// ServeRooms handles GET /rooms.
func (h *Handler) ServeRooms(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list rooms")
	defer cancel()

	list, err := h.Rooms.List(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Internal("list rooms", err))
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"rooms": list})
}

// ServeCandidates handles GET /rooms/candidates?capacity=N&exclude=id,id.
func (h *Handler) ServeCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	minCapacity := 0
	if s := normalize.QueryParam(q.Get("capacity")); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			h.ErrLog.Write(w, r, apperr.ValidationFields("invalid capacity",
				map[string]string{"capacity": "must be a non-negative integer"}))
			return
		}
		minCapacity = n
	}
	var exclude []primitive.ObjectID
	for _, s := range normalize.CSV(q.Get("exclude")) {
		id, err := primitive.ObjectIDFromHex(s)
		if err != nil {
			h.ErrLog.Write(w, r, apperr.ValidationFields("invalid exclude list",
				map[string]string{"exclude": "must be a comma-separated list of ids"}))
			return
		}
		exclude = append(exclude, id)
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "room candidates")
	defer cancel()

	list, err := h.Rooms.FindCandidates(ctx, minCapacity, exclude)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Internal("room candidates", err))
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"rooms": list})
}

// ServeTimeSlots handles GET /time-slots.
func (h *Handler) ServeTimeSlots(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list time slots")
	defer cancel()

	list, err := h.TimeSlots.List(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Internal("list time slots", err))
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"time_slots": list})
}
