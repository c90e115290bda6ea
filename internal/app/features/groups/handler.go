// internal/app/features/groups/handler.go
package groups

import (
	"net/http"

	apierrors "github.com/dalemusser/curriculum/internal/app/features/errors"
	groupstore "github.com/dalemusser/curriculum/internal/app/store/groups"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/auditlog"
	"github.com/dalemusser/curriculum/internal/app/system/httpjson"
	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves group membership for a term.
type Handler struct {
	Groups *groupstore.Store
	ErrLog *apierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Groups: groupstore.New(db, logger, audit),
		ErrLog: errLog,
		Log:    logger,
	}
}

type replaceRequest struct {
	Groups []groupstore.GroupInput `json:"groups"`
}

// ServeList handles GET /terms/{term}/groups?kind=small|large.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list groups")
	defer cancel()

	term := httpjson.PathParam(r, "term")
	kind := normalize.Kind(r.URL.Query().Get("kind"))
	groups, err := h.Groups.GetByTerm(ctx, term, kind)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"term": term, "groups": groups})
}

// HandleReplace handles PUT /terms/{term}/groups/{kind}. The body replaces
// every group of that kind in the term.
func (h *Handler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	var req replaceRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "replace groups")
	defer cancel()

	res, err := h.Groups.ReplaceGroups(ctx, actor.FromRequest(r),
		httpjson.PathParam(r, "term"), httpjson.PathParam(r, "kind"),
		req.Groups)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, res)
}

// HandleDelete handles DELETE /groups/{id}.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := httpjson.PathObjectID(r, "id")
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "delete group")
	defer cancel()

	if err := h.Groups.DeleteGroup(ctx, actor.FromRequest(r), id); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
