// internal/app/features/terms/handler.go
package terms

import (
	"net/http"

	apierrors "github.com/dalemusser/curriculum/internal/app/features/errors"
	termstore "github.com/dalemusser/curriculum/internal/app/store/terms"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/auditlog"
	"github.com/dalemusser/curriculum/internal/app/system/httpjson"
	"github.com/dalemusser/curriculum/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the term registry: listing, creation and the two-phase
// activation.
type Handler struct {
	Terms  *termstore.Store
	ErrLog *apierrors.ErrorLogger
	Log    *zap.Logger
}

func NewHandler(db *mongo.Database, audit *auditlog.Logger, errLog *apierrors.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		Terms:  termstore.New(db, logger, audit),
		ErrLog: errLog,
		Log:    logger,
	}
}

// ServeList handles GET /terms.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list terms")
	defer cancel()

	terms, err := h.Terms.List(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]any{"terms": terms})
}

// ServeActive handles GET /terms/active.
func (h *Handler) ServeActive(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "active term")
	defer cancel()

	t, err := h.Terms.Active(ctx)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, t)
}

// HandleCreate handles POST /terms.
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in termstore.CreateInput
	if err := httpjson.Decode(w, r, &in); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create term")
	defer cancel()

	t, err := h.Terms.Create(ctx, actor.FromRequest(r), in)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, t)
}

// HandlePlan handles POST /terms/{term}/activation-plan. Nothing is
// written; the plan is returned for review.
func (h *Handler) HandlePlan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "plan activation")
	defer cancel()

	plan, err := h.Terms.PlanActivation(ctx, httpjson.PathParam(r, "term"))
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, plan)
}

// HandleActivate handles POST /terms/activate with a plan from HandlePlan.
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	var plan termstore.ActivationPlan
	if err := httpjson.Decode(w, r, &plan); err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "apply activation")
	defer cancel()

	res, err := h.Terms.ApplyActivation(ctx, actor.FromRequest(r), plan)
	if err != nil {
		h.ErrLog.Write(w, r, err)
		return
	}
	httpjson.Write(w, http.StatusOK, res)
}
