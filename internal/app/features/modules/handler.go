// internal/app/features/modules/handler.go
package modules

import (
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/curriculum/internal/app/features/errors"
	mappingstore "github.com/dalemusser/curriculum/internal/app/store/modulemappings"
	modulestore "github.com/dalemusser/curriculum/internal/app/store/modules"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/auditlog"
	"github.com/dalemusser/curriculum/internal/app/system/httpjson"
	"github.com/dalemusser/curriculum/internal/app/system/limits"
	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the module catalogue and module-to-group mappings.
type Handler struct {
	Modules  *modulestore.Store
	Mappings *mappingstore.Store
	ErrLog   *apierrors.ErrorLogger
	Log      *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Modules:  modulestore.New(db),
		Mappings: mappingstore.New(db, logger, audit),
		ErrLog:   errLog,
		Log:      logger,
	}
}

type mapRequest struct {
	GroupNames []string `json:"group_names"`
}

type batchRequest struct {
	Codes []string `json:"codes"`
}

type multiTermRequest struct {
	Terms map[string][]string `json:"terms"`
}

// ServeCatalogue handles GET /modules?category=.
func (h *Handler) ServeCatalogue(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list modules")
	defer cancel()

	list, err := h.Modules.List(ctx, normalize.QueryParam(r.URL.Query().Get("category")))
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Internal("list modules", err))
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"modules": list})
}

// ServeModule handles GET /modules/by-code/{code}.
func (h *Handler) ServeModule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "get module")
	defer cancel()

	code := httpjson.PathParam(r, "code")
	m, err := h.Modules.GetByCode(ctx, code)
	if errors.Is(err, modulestore.ErrNotFound) {
		h.ErrLog.Write(w, r, apperr.NotFound("module "+code+" not found"))
		return
	}
	if err != nil {
		h.ErrLog.Write(w, r, apperr.Internal("load module", err))
		return
	}
	httpjson.Write(w, http.StatusOK, m)
}

// HandleMap handles PUT /terms/{term}/modules/{code}/groups. An empty
// list removes the module's mappings.
func (h *Handler) HandleMap(w http.ResponseWriter, r *http.Request) {
	var req mapRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "map module")
	defer cancel()

	term, code := httpjson.PathParam(r, "term"), httpjson.PathParam(r, "code")
	names, err := h.Mappings.MapModule(ctx, actor.FromRequest(r), term, code, req.GroupNames)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"term": term, "module_code": code, "group_names": names})
}

// ServeModuleGroups handles GET /terms/{term}/modules/{code}/groups.
func (h *Handler) ServeModuleGroups(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "module groups")
	defer cancel()

	term, code := httpjson.PathParam(r, "term"), httpjson.PathParam(r, "code")
	names, err := h.Mappings.GroupsForModule(ctx, term, code)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"term": term, "module_code": code, "group_names": names})
}

// ServeAvailable handles GET /terms/{term}/groups/available.
func (h *Handler) ServeAvailable(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "available groups")
	defer cancel()

	names, err := h.Mappings.ListAvailableGroups(ctx, httpjson.PathParam(r, "term"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"group_names": names})
}

// ServeStatus handles GET /terms/{term}/groups/status.
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "group status")
	defer cancel()

	status, err := h.Mappings.ListAllGroupsWithStatus(ctx, httpjson.PathParam(r, "term"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"groups": status})
}

// HandleBatch handles POST /terms/{term}/module-mappings/batch.
func (h *Handler) HandleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if err := limits.Check("module codes", len(req.Codes), limits.MaxBatchCodes); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "batch mappings")
	defer cancel()

	term := httpjson.PathParam(r, "term")
	out, err := h.Mappings.BatchMapping(ctx, req.Codes, term)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"term": term, "mappings": out})
}

// HandleBatchMultiTerm handles POST /module-mappings/batch.
func (h *Handler) HandleBatchMultiTerm(w http.ResponseWriter, r *http.Request) {
	var req multiTermRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if err := limits.Check("terms", len(req.Terms), limits.MaxBatchTerms); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	total := 0
	for _, codes := range req.Terms {
		total += len(codes)
	}
	if err := limits.Check("module codes", total, limits.MaxBatchCodes); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "batch mappings")
	defer cancel()

	out, err := h.Mappings.BatchMappingMultiTerm(ctx, req.Terms)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"mappings": out})
}
