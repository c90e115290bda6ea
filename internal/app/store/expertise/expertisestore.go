// internal/app/store/expertise/expertisestore.go
package expertisestore

import (
	"context"
	"errors"
	"time"

	modulestore "github.com/dalemusser/curriculum/internal/app/store/modules"
	personstore "github.com/dalemusser/curriculum/internal/app/store/persons"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/auditlog"
	"github.com/dalemusser/curriculum/internal/app/system/metrics"
	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/app/system/txn"
	"github.com/dalemusser/curriculum/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Store assigns instructors to modules by expertise tag and keeps each
// instructor's load_count in step.
type Store struct {
	db      *mongo.Database
	c       *mongo.Collection
	modules *modulestore.Store
	persons *personstore.Store
	log     *zap.Logger
	audit   *auditlog.Logger
}

func New(db *mongo.Database, log *zap.Logger, audit *auditlog.Logger) *Store {
	return &Store{
		db:      db,
		c:       db.Collection("expertise_assignments"),
		modules: modulestore.New(db),
		persons: personstore.New(db),
		log:     log,
		audit:   audit,
	}
}

// ModuleExpert is one assignment row joined with its instructor.
type ModuleExpert struct {
	ModuleID  primitive.ObjectID `bson:"module_id" json:"module_id"`
	Tag       string             `bson:"tag" json:"tag"`
	Person    models.Person      `bson:"person" json:"person"`
	LoadCount int                `bson:"load_count" json:"load_count"`
}

// Assign records personID teaching moduleID under tag. The triple is
// unique. The load counter update runs after the write and its failure
// only leaves the counter behind.
func (s *Store) Assign(ctx context.Context, who actor.Actor, moduleID, personID primitive.ObjectID, tag string) (a models.ExpertiseAssignment, err error) {
	defer func() { metrics.Mutation(metrics.OpAssignExpertise, err) }()

	tag = normalize.Tag(tag)
	if tag == "" {
		return a, apperr.ValidationFields("Tag is required.", map[string]string{"Tag": "Tag is required."})
	}
	if _, err := s.modules.GetByID(ctx, moduleID); err != nil {
		if errors.Is(err, modulestore.ErrNotFound) {
			return a, apperr.NotFound("module not found")
		}
		return a, apperr.Internal("load module", err)
	}
	p, err := s.persons.GetByID(ctx, personID)
	if err != nil {
		if errors.Is(err, personstore.ErrNotFound) {
			return a, apperr.NotFound("person not found")
		}
		return a, apperr.Internal("load person", err)
	}
	if p.Role != models.RoleInstructor {
		return a, apperr.Validation("person is not an instructor", p.FullName)
	}

	a = models.ExpertiseAssignment{
		ID:        primitive.NewObjectID(),
		ModuleID:  moduleID,
		PersonID:  personID,
		Tag:       tag,
		TagCI:     text.Fold(tag),
		CreatedBy: who.ID,
		CreatedAt: time.Now().UTC(),
	}
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.c.InsertOne(ctx, a); err != nil {
			if wafflemongo.IsDup(err) {
				return apperr.Conflict("instructor already assigned with this tag", tag)
			}
			return apperr.Internal("insert expertise assignment", err)
		}
		return nil
	})
	if err != nil {
		return models.ExpertiseAssignment{}, err
	}

	if err := s.persons.IncrementLoad(ctx, personID); err != nil {
		metrics.CounterDrift()
		s.log.Warn("load counter increment failed",
			zap.String("person_id", personID.Hex()),
			zap.String("module_id", moduleID.Hex()),
			zap.Error(err))
	}
	s.audit.ExpertiseAssigned(ctx, who, moduleID.Hex(), personID.Hex(), tag)
	return a, nil
}

// Unassign deletes the assignment and decrements the counter, never
// below zero.
func (s *Store) Unassign(ctx context.Context, who actor.Actor, moduleID, personID primitive.ObjectID, tag string) (err error) {
	defer func() { metrics.Mutation(metrics.OpUnassign, err) }()

	tag = normalize.Tag(tag)
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		res, err := s.c.DeleteOne(ctx, bson.M{
			"module_id": moduleID,
			"person_id": personID,
			"tag_ci":    text.Fold(tag),
		})
		if err != nil {
			return apperr.Internal("delete expertise assignment", err)
		}
		if res.DeletedCount == 0 {
			return apperr.NotFound("expertise assignment not found")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if _, err := s.persons.DecrementLoad(ctx, personID); err != nil {
		metrics.CounterDrift()
		s.log.Warn("load counter decrement failed",
			zap.String("person_id", personID.Hex()),
			zap.String("module_id", moduleID.Hex()),
			zap.Error(err))
	}
	s.audit.ExpertiseUnassigned(ctx, who, moduleID.Hex(), personID.Hex(), tag)
	return nil
}

// ListByModule returns the module's assignments joined with each
// instructor's current row, ordered by instructor name then tag.
func (s *Store) ListByModule(ctx context.Context, moduleID primitive.ObjectID) ([]ModuleExpert, error) {
	rows, err := s.aggregate(ctx, bson.M{"module_id": moduleID})
	if err != nil {
		return nil, apperr.Internal("list module expertise", err)
	}
	return rows, nil
}

// ListByModules is ListByModule for several modules in one query. Every
// requested id is a key of the result.
func (s *Store) ListByModules(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID][]ModuleExpert, error) {
	if len(ids) == 0 {
		return map[primitive.ObjectID][]ModuleExpert{}, nil
	}
	rows, err := s.aggregate(ctx, bson.M{"module_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, apperr.Internal("list module expertise", err)
	}
	return GroupByModuleID(ids, rows), nil
}

// aggregate joins assignments with persons. Rows whose person no longer
// exists are dropped by the unwind.
func (s *Store) aggregate(ctx context.Context, match bson.M) ([]ModuleExpert, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$lookup", Value: bson.M{
			"from":         "persons",
			"localField":   "person_id",
			"foreignField": "_id",
			"as":           "person",
		}}},
		{{Key: "$unwind", Value: "$person"}},
		{{Key: "$addFields", Value: bson.M{
			"load_count": bson.M{"$ifNull": bson.A{"$person.load_count", 0}},
		}}},
		{{Key: "$sort", Value: bson.D{
			{Key: "person.full_name_ci", Value: 1},
			{Key: "tag_ci", Value: 1},
		}}},
		{{Key: "$project", Value: bson.M{
			"module_id":  1,
			"tag":        1,
			"person":     1,
			"load_count": 1,
		}}},
	}
	cur, err := s.c.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []ModuleExpert{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GroupByModuleID groups rows by module, keeping row order.
func GroupByModuleID(ids []primitive.ObjectID, rows []ModuleExpert) map[primitive.ObjectID][]ModuleExpert {
	out := make(map[primitive.ObjectID][]ModuleExpert, len(ids))
	for _, id := range ids {
		out[id] = []ModuleExpert{}
	}
	for _, r := range rows {
		if _, ok := out[r.ModuleID]; ok {
			out[r.ModuleID] = append(out[r.ModuleID], r)
		}
	}
	return out
}
