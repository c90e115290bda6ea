// internal/app/store/terms/termstore.go
package termstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/auditlog"
	"github.com/dalemusser/curriculum/internal/app/system/inputval"
	"github.com/dalemusser/curriculum/internal/app/system/metrics"
	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/app/system/txn"
	"github.com/dalemusser/curriculum/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	personstore "github.com/dalemusser/curriculum/internal/app/store/persons"
)

// Store is the term registry. No process-wide "current term" is kept;
// callers pass the term they operate on.
type Store struct {
	db      *mongo.Database
	c       *mongo.Collection
	persons *personstore.Store
	log     *zap.Logger
	audit   *auditlog.Logger
}

func New(db *mongo.Database, log *zap.Logger, audit *auditlog.Logger) *Store {
	return &Store{
		db:      db,
		c:       db.Collection("terms"),
		persons: personstore.New(db),
		log:     log,
		audit:   audit,
	}
}

// CreateInput is a new term. Terms are always created inactive.
type CreateInput struct {
	Code  string `json:"code" validate:"required,max=32" label:"Code"`
	Label string `json:"label" validate:"max=200" label:"Label"`
}

// Create adds a term.
func (s *Store) Create(ctx context.Context, who actor.Actor, in CreateInput) (models.Term, error) {
	in.Code = normalize.Code(in.Code)
	in.Label = normalize.Name(in.Label)
	if err := inputval.Validate(in).Err(); err != nil {
		return models.Term{}, err
	}
	if in.Label == "" {
		in.Label = in.Code
	}

	now := time.Now().UTC()
	t := models.Term{
		ID:        primitive.NewObjectID(),
		Code:      in.Code,
		Label:     in.Label,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Term{}, apperr.Conflict("term already exists", in.Code)
		}
		return models.Term{}, apperr.Internal("create term", err)
	}
	s.audit.TermCreated(ctx, who, t.Code)
	return t, nil
}

// GetByCode returns the term with code.
func (s *Store) GetByCode(ctx context.Context, code string) (models.Term, error) {
	var t models.Term
	err := s.c.FindOne(ctx, bson.M{"code": normalize.Code(code)}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Term{}, apperr.NotFound(fmt.Sprintf("term %q not found", code))
	}
	if err != nil {
		return models.Term{}, apperr.Internal("load term", err)
	}
	return t, nil
}

// List returns every term, newest code first.
func (s *Store) List(ctx context.Context) ([]models.Term, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: -1}}))
	if err != nil {
		return nil, apperr.Internal("list terms", err)
	}
	defer cur.Close(ctx)

	out := []models.Term{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Internal("list terms", err)
	}
	return out, nil
}

// Active returns the active term.
func (s *Store) Active(ctx context.Context) (models.Term, error) {
	var t models.Term
	err := s.c.FindOne(ctx, bson.M{"is_active": true}).Decode(&t)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Term{}, apperr.NotFound("no active term")
	}
	if err != nil {
		return models.Term{}, apperr.Internal("load active term", err)
	}
	return t, nil
}

// ActivationPlan is the computed effect of activating a term. It is
// returned to the caller for review and applied unchanged.
type ActivationPlan struct {
	PlanID     string               `json:"plan_id"`
	From       string               `json:"from"` // "" when no term was active
	To         string               `json:"to"`
	StudentIDs []primitive.ObjectID `json:"student_ids"`
	ComputedAt time.Time            `json:"computed_at"`
}

// ActivationResult reports an applied plan.
type ActivationResult struct {
	PlanID  string `json:"plan_id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Rekeyed int64  `json:"rekeyed"`
}

// PlanActivation computes which students move to code when it becomes the
// active term: every student associated with the currently active term.
// Nothing is written.
func (s *Store) PlanActivation(ctx context.Context, code string) (ActivationPlan, error) {
	target, err := s.GetByCode(ctx, code)
	if err != nil {
		return ActivationPlan{}, err
	}
	if target.IsActive {
		return ActivationPlan{}, apperr.Validation("term is already active", target.Code)
	}

	plan := ActivationPlan{
		PlanID:     uuid.NewString(),
		To:         target.Code,
		StudentIDs: []primitive.ObjectID{},
		ComputedAt: time.Now().UTC(),
	}

	current, err := s.Active(ctx)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return plan, nil
	case err != nil:
		return ActivationPlan{}, err
	}
	plan.From = current.Code

	ids, err := s.persons.StudentIDsByTerm(ctx, current.Code)
	if err != nil {
		return ActivationPlan{}, apperr.Internal("plan activation", err)
	}
	plan.StudentIDs = ids
	return plan, nil
}

// ApplyActivation deactivates the current term, activates plan.To and
// re-keys exactly the planned students, in one transaction. A plan
// computed against a different active term is rejected as stale.
func (s *Store) ApplyActivation(ctx context.Context, who actor.Actor, plan ActivationPlan) (res ActivationResult, err error) {
	defer func() { metrics.Mutation(metrics.OpActivateTerm, err) }()

	if plan.PlanID == "" || normalize.Code(plan.To) == "" {
		return ActivationResult{}, apperr.Validation("activation plan is incomplete")
	}
	plan.To = normalize.Code(plan.To)
	plan.From = normalize.Code(plan.From)

	res = ActivationResult{PlanID: plan.PlanID, From: plan.From, To: plan.To}
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		var current models.Term
		cerr := s.c.FindOne(ctx, bson.M{"is_active": true}).Decode(&current)
		if cerr != nil && !errors.Is(cerr, mongo.ErrNoDocuments) {
			return apperr.Internal("load active term", cerr)
		}
		if current.Code != plan.From {
			return apperr.Conflict("activation plan is stale; active term changed", current.Code)
		}

		now := time.Now().UTC()
		if _, err := s.c.UpdateMany(ctx,
			bson.M{"is_active": true},
			bson.M{"$set": bson.M{"is_active": false, "updated_at": now}}); err != nil {
			return apperr.Internal("deactivate terms", err)
		}
		upd, err := s.c.UpdateOne(ctx,
			bson.M{"code": plan.To},
			bson.M{"$set": bson.M{"is_active": true, "updated_at": now}})
		if err != nil {
			if wafflemongo.IsDup(err) {
				return apperr.Conflict("another term became active", plan.To)
			}
			return apperr.Internal("activate term", err)
		}
		if upd.MatchedCount == 0 {
			return apperr.NotFound(fmt.Sprintf("term %q not found", plan.To))
		}

		if plan.From == "" {
			return nil
		}
		n, err := s.persons.RekeyTerm(ctx, plan.StudentIDs, plan.From, plan.To)
		if err != nil {
			return apperr.Internal("re-key students", err)
		}
		res.Rekeyed = n
		return nil
	})
	if err != nil {
		return ActivationResult{}, err
	}

	s.audit.TermActivated(ctx, who, plan.PlanID, plan.From, plan.To, int(res.Rekeyed))
	return res, nil
}
