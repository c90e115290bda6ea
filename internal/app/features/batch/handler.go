// internal/app/features/batch/handler.go
package batch

import (
	"net/http"

	apierrors "github.com/dalemusser/curriculum/internal/app/features/errors"
	"github.com/dalemusser/curriculum/internal/app/store/queries/batchview"
	"github.com/dalemusser/curriculum/internal/app/system/httpjson"
	"github.com/dalemusser/curriculum/internal/app/system/limits"
	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the assembled detail views used by the scheduling
// screens. Every endpoint is read-only.
type Handler struct {
	Views  *batchview.Assembler
	ErrLog *apierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Views:  batchview.New(db, logger),
		ErrLog: errLog,
		Log:    logger,
	}
}

type modulesRequest struct {
	Codes []string `json:"codes"`
}

// ServeModule handles GET /terms/{term}/batch/modules/{code}.
func (h *Handler) ServeModule(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "module detail")
	defer cancel()

	v, err := h.Views.ModuleDetail(ctx, httpjson.PathParam(r, "term"), httpjson.PathParam(r, "code"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, v)
}

// ServeClass handles GET /terms/{term}/batch/classes/{name}.
func (h *Handler) ServeClass(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "class detail")
	defer cancel()

	v, err := h.Views.ClassDetail(ctx, httpjson.PathParam(r, "term"), httpjson.PathParam(r, "name"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, v)
}

// HandleModules handles POST /terms/{term}/batch/modules.
func (h *Handler) HandleModules(w http.ResponseWriter, r *http.Request) {
	var req modulesRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	if err := limits.Check("module codes", len(req.Codes), limits.MaxBatchCodes); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "batch module details")
	defer cancel()

	out, err := h.Views.BatchModuleDetails(ctx, httpjson.PathParam(r, "term"), req.Codes)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}
