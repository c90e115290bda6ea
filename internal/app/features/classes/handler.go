// internal/app/features/classes/handler.go
package classes

import (
	"net/http"

	apierrors "github.com/dalemusser/curriculum/internal/app/features/errors"
	classbindingstore "github.com/dalemusser/curriculum/internal/app/store/classbindings"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/auditlog"
	"github.com/dalemusser/curriculum/internal/app/system/httpjson"
	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves class bindings.
type Handler struct {
	Bindings *classbindingstore.Store
	ErrLog   *apierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Bindings: classbindingstore.New(db, logger, audit),
		ErrLog:   errLog,
		Log:      logger,
	}
}

// ServeList handles GET /terms/{term}/classes.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list classes")
	defer cancel()

	term := httpjson.PathParam(r, "term")
	list, err := h.Bindings.ListByTerm(ctx, term)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"term": term, "classes": list})
}

// HandleCreate handles POST /terms/{term}/classes.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in classbindingstore.BindInput
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	in.Term = httpjson.PathParam(r, "term")
	in.BindingID = nil

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "bind class")
	defer cancel()

	b, err := h.Bindings.Bind(ctx, actor.FromRequest(r), in)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, b)
}

// HandleUpdate handles PUT /classes/{id}. The group list in the body
// replaces the stored one.
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathObjectID(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	var in classbindingstore.BindInput
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	in.BindingID = &id

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "rebind class")
	defer cancel()

	b, err := h.Bindings.Bind(ctx, actor.FromRequest(r), in)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, b)
}

// HandleDelete handles DELETE /classes/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathObjectID(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "unbind class")
	defer cancel()

	if err := h.Bindings.Unbind(ctx, actor.FromRequest(r), id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
