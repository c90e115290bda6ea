// internal/app/store/classbindings/classbindingstore.go
package classbindingstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	groupstore "github.com/dalemusser/curriculum/internal/app/store/groups"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/auditlog"
	"github.com/dalemusser/curriculum/internal/app/system/inputval"
	"github.com/dalemusser/curriculum/internal/app/system/metrics"
	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/app/system/txn"
	"github.com/dalemusser/curriculum/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store binds classes to groups exclusively within a term.
type Store struct {
	db       *mongo.Database
	bindings *mongo.Collection
	links    *mongo.Collection
	groups   *groupstore.Store
	log      *zap.Logger
	audit    *auditlog.Logger
}

func New(db *mongo.Database, log *zap.Logger, audit *auditlog.Logger) *Store {
	return &Store{
		db:       db,
		bindings: db.Collection("class_bindings"),
		links:    db.Collection("class_binding_groups"),
		groups:   groupstore.New(db, log, audit),
		log:      log,
		audit:    audit,
	}
}

// BindInput creates (BindingID nil) or replaces a class binding. The full
// group list is replaced on every call.
type BindInput struct {
	BindingID   *primitive.ObjectID `json:"-"`
	Term        string              `json:"term" label:"Term"`
	ClassName   string              `json:"class_name" validate:"required,max=200" label:"Class name"`
	Description string              `json:"description" validate:"max=2000" label:"Description"`
	Kind        string              `json:"kind" validate:"omitempty,oneof=small large" label:"Kind"`
	GroupNames  []string            `json:"group_names" validate:"max=500" label:"Groups"`
}

// Bind validates and stores a class binding.
//
// Checks run in order and stop at the first failure: referenced groups
// exist in the term, none is bound to another class, and the class name
// is free. The unique index on (term, kind, group_name_ci) re-checks
// exclusivity inside the transaction.
func (s *Store) Bind(ctx context.Context, who actor.Actor, in BindInput) (b models.ClassBinding, err error) {
	defer func() { metrics.Mutation(metrics.OpBindClass, err) }()

	in.Term = normalize.Code(in.Term)
	in.ClassName = normalize.Name(in.ClassName)
	in.Description = normalize.Name(in.Description)
	in.Kind = normalize.Kind(in.Kind)
	in.GroupNames = normalize.Names(in.GroupNames)
	if err := inputval.Validate(in).Err(); err != nil {
		return models.ClassBinding{}, err
	}

	var prior *models.ClassBinding
	if in.BindingID != nil {
		p, err := s.getRow(ctx, *in.BindingID)
		if err != nil {
			return models.ClassBinding{}, err
		}
		if in.Term != "" && in.Term != p.Term {
			return models.ClassBinding{}, apperr.Validation("a binding cannot move to another term", p.Term)
		}
		in.Term = p.Term
		if in.Kind == "" {
			in.Kind = p.Kind
		}
		prior = &p
	}
	if in.Kind == "" {
		in.Kind = models.GroupLarge
	}
	if in.Term == "" {
		return models.ClassBinding{}, apperr.ValidationFields("Term is required.", map[string]string{"Term": "Term is required."})
	}

	// 1) Every named group exists in the term.
	canonical := map[string]string{} // folded -> stored spelling
	if len(in.GroupNames) > 0 {
		existing, err := s.groups.NamesByTerm(ctx, in.Term, in.Kind)
		if err != nil {
			return models.ClassBinding{}, err
		}
		for _, n := range existing {
			canonical[text.Fold(n)] = n
		}
		var missing []string
		for _, n := range in.GroupNames {
			if _, ok := canonical[text.Fold(n)]; !ok {
				missing = append(missing, n)
			}
		}
		if len(missing) > 0 {
			if len(existing) == 0 {
				// The term has no groups of any kind.
				all, err := s.groups.NamesByTerm(ctx, in.Term, "")
				if err != nil {
					return models.ClassBinding{}, err
				}
				if len(all) == 0 {
					return models.ClassBinding{}, apperr.Validation("no groups exist")
				}
			}
			return models.ClassBinding{}, apperr.Validation("groups not found", missing...)
		}
	}

	// 2) None of them is bound to another class.
	var self primitive.ObjectID
	if prior != nil {
		self = prior.ID
	}
	if len(in.GroupNames) > 0 {
		taken, err := s.boundElsewhere(ctx, in.Term, in.Kind, normalize.Folded(in.GroupNames), self)
		if err != nil {
			return models.ClassBinding{}, apperr.Internal("check bound groups", err)
		}
		if len(taken) > 0 {
			return models.ClassBinding{}, apperr.Conflict("already bound", taken...)
		}
	}

	// 3) The class name is free in the term.
	nameCI := text.Fold(in.ClassName)
	dupFilter := bson.M{"term": in.Term, "name_ci": nameCI}
	if prior != nil {
		dupFilter["_id"] = bson.M{"$ne": self}
	}
	n, err := s.bindings.CountDocuments(ctx, dupFilter, options.Count().SetLimit(1))
	if err != nil {
		return models.ClassBinding{}, apperr.Internal("check class name", err)
	}
	if n > 0 {
		return models.ClassBinding{}, apperr.Conflict("duplicate class name", in.ClassName)
	}

	// 4) Upsert the binding and replace its links.
	now := time.Now().UTC()
	b = models.ClassBinding{
		ID:          primitive.NewObjectID(),
		Term:        in.Term,
		Name:        in.ClassName,
		NameCI:      nameCI,
		Description: in.Description,
		Kind:        in.Kind,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if prior != nil {
		b.ID = prior.ID
		b.CreatedAt = prior.CreatedAt
	}
	names := make([]string, len(in.GroupNames))
	links := make([]interface{}, len(in.GroupNames))
	for i, n := range in.GroupNames {
		stored := canonical[text.Fold(n)]
		names[i] = stored
		links[i] = models.ClassBindingGroup{
			ID:          primitive.NewObjectID(),
			BindingID:   b.ID,
			Term:        b.Term,
			Kind:        b.Kind,
			GroupName:   stored,
			GroupNameCI: text.Fold(stored),
		}
	}
	b.GroupNames = names

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if prior == nil {
			if _, err := s.bindings.InsertOne(ctx, b); err != nil {
				if wafflemongo.IsDup(err) {
					return apperr.Conflict("duplicate class name", in.ClassName)
				}
				return apperr.Internal("insert class binding", err)
			}
		} else {
			_, err := s.bindings.UpdateByID(ctx, b.ID, bson.M{"$set": bson.M{
				"name":        b.Name,
				"name_ci":     b.NameCI,
				"description": b.Description,
				"kind":        b.Kind,
				"updated_at":  now,
			}})
			if err != nil {
				if wafflemongo.IsDup(err) {
					return apperr.Conflict("duplicate class name", in.ClassName)
				}
				return apperr.Internal("update class binding", err)
			}
		}
		if _, err := s.links.DeleteMany(ctx, bson.M{"binding_id": b.ID}); err != nil {
			return apperr.Internal("delete class links", err)
		}
		if len(links) > 0 {
			if _, err := s.links.InsertMany(ctx, links); err != nil {
				if wafflemongo.IsDup(err) {
					return apperr.Conflict("already bound", names...)
				}
				return apperr.Internal("insert class links", err)
			}
		}
		return nil
	})
	if err != nil {
		return models.ClassBinding{}, err
	}

	s.audit.ClassBound(ctx, who, b.Term, b.ID.Hex(), b.Name, len(b.GroupNames))
	return b, nil
}

// boundElsewhere returns the stored names among namesCI that are linked to
// a binding other than self.
func (s *Store) boundElsewhere(ctx context.Context, term, kind string, namesCI []string, self primitive.ObjectID) ([]string, error) {
	filter := bson.M{
		"term":          term,
		"kind":          kind,
		"group_name_ci": bson.M{"$in": namesCI},
	}
	if !self.IsZero() {
		filter["binding_id"] = bson.M{"$ne": self}
	}
	cur, err := s.links.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.ClassBindingGroup
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.GroupName)
	}
	return out, nil
}

// Unbind deletes a binding and its links.
func (s *Store) Unbind(ctx context.Context, who actor.Actor, id primitive.ObjectID) (err error) {
	defer func() { metrics.Mutation(metrics.OpUnbindClass, err) }()

	var b models.ClassBinding
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if err := s.bindings.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&b); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperr.NotFound("class binding not found")
			}
			return apperr.Internal("delete class binding", err)
		}
		if _, err := s.links.DeleteMany(ctx, bson.M{"binding_id": id}); err != nil {
			return apperr.Internal("delete class links", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.audit.ClassUnbound(ctx, who, b.Term, b.ID.Hex(), b.Name)
	return nil
}

func (s *Store) getRow(ctx context.Context, id primitive.ObjectID) (models.ClassBinding, error) {
	var b models.ClassBinding
	err := s.bindings.FindOne(ctx, bson.M{"_id": id}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ClassBinding{}, apperr.NotFound("class binding not found")
	}
	if err != nil {
		return models.ClassBinding{}, apperr.Internal("load class binding", err)
	}
	return b, nil
}

// Get returns a binding with its group names.
func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (models.ClassBinding, error) {
	b, err := s.getRow(ctx, id)
	if err != nil {
		return models.ClassBinding{}, err
	}
	out, err := s.withGroupNames(ctx, []models.ClassBinding{b})
	if err != nil {
		return models.ClassBinding{}, err
	}
	return out[0], nil
}

// GetByName returns the term's binding named name (case-insensitive).
func (s *Store) GetByName(ctx context.Context, term, name string) (models.ClassBinding, error) {
	var b models.ClassBinding
	err := s.bindings.FindOne(ctx, bson.M{
		"term":    normalize.Code(term),
		"name_ci": text.Fold(normalize.Name(name)),
	}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ClassBinding{}, apperr.NotFound(fmt.Sprintf("class %q not found", name))
	}
	if err != nil {
		return models.ClassBinding{}, apperr.Internal("load class binding", err)
	}
	out, err := s.withGroupNames(ctx, []models.ClassBinding{b})
	if err != nil {
		return models.ClassBinding{}, err
	}
	return out[0], nil
}

// ListByTerm returns the term's bindings ordered by name, each with its
// group names. Two queries regardless of the number of bindings.
func (s *Store) ListByTerm(ctx context.Context, term string) ([]models.ClassBinding, error) {
	cur, err := s.bindings.Find(ctx,
		bson.M{"term": normalize.Code(term)},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
	if err != nil {
		return nil, apperr.Internal("list class bindings", err)
	}
	defer cur.Close(ctx)

	out := []models.ClassBinding{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, apperr.Internal("list class bindings", err)
	}
	return s.withGroupNames(ctx, out)
}

func (s *Store) withGroupNames(ctx context.Context, bs []models.ClassBinding) ([]models.ClassBinding, error) {
	if len(bs) == 0 {
		return bs, nil
	}
	ids := make([]primitive.ObjectID, len(bs))
	for i, b := range bs {
		ids[i] = b.ID
	}
	cur, err := s.links.Find(ctx,
		bson.M{"binding_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "group_name_ci", Value: 1}}))
	if err != nil {
		return nil, apperr.Internal("list class links", err)
	}
	defer cur.Close(ctx)

	var rows []models.ClassBindingGroup
	if err := cur.All(ctx, &rows); err != nil {
		return nil, apperr.Internal("list class links", err)
	}
	return AttachGroupNames(bs, rows), nil
}

// AttachGroupNames fills GroupNames from link rows, keeping row order.
func AttachGroupNames(bs []models.ClassBinding, rows []models.ClassBindingGroup) []models.ClassBinding {
	byBinding := make(map[primitive.ObjectID][]string, len(bs))
	for _, r := range rows {
		byBinding[r.BindingID] = append(byBinding[r.BindingID], r.GroupName)
	}
	for i := range bs {
		names := byBinding[bs[i].ID]
		if names == nil {
			names = []string{}
		}
		bs[i].GroupNames = names
	}
	return bs
}
