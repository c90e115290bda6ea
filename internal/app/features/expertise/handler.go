// internal/app/features/expertise/handler.go
package expertise

import (
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/curriculum/internal/app/features/errors"
	expertisestore "github.com/dalemusser/curriculum/internal/app/store/expertise"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/auditlog"
	"github.com/dalemusser/curriculum/internal/app/system/httpjson"
	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves instructor expertise assignments for a module.
type Handler struct {
	Expertise *expertisestore.Store
	ErrLog    *apierrors.ErrorLogger
	Log       *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Expertise: expertisestore.New(db, logger, audit),
		ErrLog:    errLog,
		Log:       logger,
	}
}

type assignRequest struct {
	PersonID string `json:"person_id"`
	Tag      string `json:"tag"`
}

// parse reads the module id from the path and the person/tag pair from
// the body.
func (h *Handler) parse(w http.ResponseWriter, r *http.Request) (moduleID, personID primitive.ObjectID, tag string, err error) {
	moduleID, err = httpjson.PathObjectID(r, "id")
	if err != nil {
		return
	}
	var req assignRequest
	if err = httpjson.Decode(w, r, &req); err != nil {
		return
	}
	personID, perr := primitive.ObjectIDFromHex(strings.TrimSpace(req.PersonID))
	if perr != nil {
		err = apperr.ValidationFields("invalid person", map[string]string{"person_id": "must be a valid id"})
		return
	}
	return moduleID, personID, req.Tag, nil
}

// ServeList handles GET /modules/{id}/expertise.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathObjectID(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list expertise")
	defer cancel()

	list, err := h.Expertise.ListByModule(ctx, id)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"module_id": id, "expertise": list})
}

// HandleAssign handles POST /modules/{id}/expertise.
func (h *Handler) HandleAssign(w http.ResponseWriter, r *http.Request) {
	moduleID, personID, tag, err := h.parse(w, r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "assign expertise")
	defer cancel()

	a, err := h.Expertise.Assign(ctx, actor.FromRequest(r), moduleID, personID, tag)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, a)
}

// HandleUnassign handles DELETE /modules/{id}/expertise.
func (h *Handler) HandleUnassign(w http.ResponseWriter, r *http.Request) {
	moduleID, personID, tag, err := h.parse(w, r)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "unassign expertise")
	defer cancel()

	if err := h.Expertise.Unassign(ctx, actor.FromRequest(r), moduleID, personID, tag); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
