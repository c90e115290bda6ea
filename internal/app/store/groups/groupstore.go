// internal/app/store/groups/groupstore.go
package groupstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

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
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store owns groups and their membership rows.
type Store struct {
	db       *mongo.Database
	groups   *mongo.Collection
	members  *mongo.Collection
	bindings *mongo.Collection // class_binding_groups
	mappings *mongo.Collection // module_mappings
	persons  *personstore.Store
	log      *zap.Logger
	audit    *auditlog.Logger
}

func New(db *mongo.Database, log *zap.Logger, audit *auditlog.Logger) *Store {
	return &Store{
		db:       db,
		groups:   db.Collection("groups"),
		members:  db.Collection("group_members"),
		bindings: db.Collection("class_binding_groups"),
		mappings: db.Collection("module_mappings"),
		persons:  personstore.New(db),
		log:      log,
		audit:    audit,
	}
}

// GroupInput is one group of a replace batch.
type GroupInput struct {
	Name      string               `json:"name"`
	MemberIDs []primitive.ObjectID `json:"member_ids"`
}

// ReplaceResult describes a completed replace.
type ReplaceResult struct {
	Groups  []models.Group `json:"groups"`
	Dropped []string       `json:"dropped"` // prior names no longer present
}

// FindMemberOverlaps returns the ids (hex, sorted) that appear in more
// than one group of the batch. Repeats inside a single group don't count.
func FindMemberOverlaps(groups []GroupInput) []string {
	owner := make(map[primitive.ObjectID]int)
	dup := make(map[primitive.ObjectID]bool)
	for i, g := range groups {
		for _, id := range g.MemberIDs {
			if first, seen := owner[id]; seen {
				if first != i {
					dup[id] = true
				}
				continue
			}
			owner[id] = i
		}
	}
	out := make([]string, 0, len(dup))
	for id := range dup {
		out = append(out, id.Hex())
	}
	sort.Strings(out)
	return out
}

// duplicateNames returns names that fold to the same key, first spelling.
func duplicateNames(groups []GroupInput) []string {
	seen := make(map[string]bool)
	reported := make(map[string]bool)
	var out []string
	for _, g := range groups {
		k := text.Fold(g.Name)
		if seen[k] && !reported[k] {
			reported[k] = true
			out = append(out, g.Name)
		}
		seen[k] = true
	}
	return out
}

func uniqueIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	seen := make(map[primitive.ObjectID]bool, len(ids))
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func (s *Store) termExists(ctx context.Context, term string) error {
	n, err := s.db.Collection("terms").CountDocuments(ctx, bson.M{"code": term}, options.Count().SetLimit(1))
	if err != nil {
		return apperr.Internal("load term", err)
	}
	if n == 0 {
		return apperr.NotFound(fmt.Sprintf("term %q not found", term))
	}
	return nil
}

// ReplaceGroups atomically replaces the term's groups of one kind with
// the submitted set. A student may belong to only one group per term, so
// members already placed in a group of the other kind are rejected. Class
// bindings and module mappings that referenced a name no longer present
// are removed in the same transaction.
func (s *Store) ReplaceGroups(ctx context.Context, who actor.Actor, term, kind string, in []GroupInput) (res ReplaceResult, err error) {
	defer func() { metrics.Mutation(metrics.OpReplaceGroups, err) }()

	term = normalize.Code(term)
	kind = normalize.Kind(kind)
	if term == "" {
		return ReplaceResult{}, apperr.Validation("term is required")
	}
	if !models.ValidGroupKind(kind) {
		return ReplaceResult{}, apperr.Validation("kind must be one of: small, large", kind)
	}

	batch := make([]GroupInput, len(in))
	var blank int
	for i, g := range in {
		batch[i] = GroupInput{Name: normalize.Name(g.Name), MemberIDs: uniqueIDs(g.MemberIDs)}
		if batch[i].Name == "" {
			blank++
		}
	}
	if blank > 0 {
		return ReplaceResult{}, apperr.Validation(fmt.Sprintf("%d group(s) have no name", blank))
	}
	if dups := duplicateNames(batch); len(dups) > 0 {
		return ReplaceResult{}, apperr.Validation("duplicate group names", dups...)
	}
	if overlaps := FindMemberOverlaps(batch); len(overlaps) > 0 {
		return ReplaceResult{}, apperr.Validation("students appear in more than one group", overlaps...)
	}

	var all []primitive.ObjectID
	for _, g := range batch {
		all = append(all, g.MemberIDs...)
	}

	if err := s.termExists(ctx, term); err != nil {
		return ReplaceResult{}, err
	}

	students, err := s.persons.StudentIDs(ctx, all)
	if err != nil {
		return ReplaceResult{}, apperr.Internal("load students", err)
	}
	var unknown []string
	for _, id := range all {
		if !students[id] {
			unknown = append(unknown, id.Hex())
		}
	}
	if len(unknown) > 0 {
		return ReplaceResult{}, apperr.Validation("members must be existing students", unknown...)
	}

	if len(all) > 0 {
		taken, err := s.memberIDsOutsideKind(ctx, term, kind, all)
		if err != nil {
			return ReplaceResult{}, apperr.Internal("check cross-kind membership", err)
		}
		if len(taken) > 0 {
			return ReplaceResult{}, apperr.Validation("students already belong to a group of another kind", taken...)
		}
	}

	now := time.Now().UTC()
	newGroups := make([]models.Group, len(batch))
	var groupDocs, memberDocs []interface{}
	for i, g := range batch {
		ng := models.Group{
			ID:        primitive.NewObjectID(),
			Term:      term,
			Kind:      kind,
			Name:      g.Name,
			NameCI:    text.Fold(g.Name),
			MemberIDs: g.MemberIDs,
			CreatedAt: now,
			UpdatedAt: now,
		}
		newGroups[i] = ng
		groupDocs = append(groupDocs, ng)
		for _, pid := range g.MemberIDs {
			memberDocs = append(memberDocs, models.GroupMember{
				ID:        primitive.NewObjectID(),
				GroupID:   ng.ID,
				Term:      term,
				Kind:      kind,
				PersonID:  pid,
				CreatedAt: now,
			})
		}
	}

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		prior, err := s.namesByTerm(ctx, term, kind)
		if err != nil {
			return apperr.Internal("load prior groups", err)
		}

		if _, err := s.groups.DeleteMany(ctx, bson.M{"term": term, "kind": kind}); err != nil {
			return apperr.Internal("delete prior groups", err)
		}
		if _, err := s.members.DeleteMany(ctx, bson.M{"term": term, "kind": kind}); err != nil {
			return apperr.Internal("delete prior members", err)
		}
		if len(groupDocs) > 0 {
			if _, err := s.groups.InsertMany(ctx, groupDocs); err != nil {
				return dupAsConflict(err, "group name already exists", "insert groups")
			}
		}
		if len(memberDocs) > 0 {
			if _, err := s.members.InsertMany(ctx, memberDocs); err != nil {
				return dupAsConflict(err, "student already belongs to a group in this term", "insert members")
			}
		}

		keep := make(map[string]bool, len(newGroups))
		for _, g := range newGroups {
			keep[g.NameCI] = true
		}
		var dropped, droppedCI []string
		for _, name := range prior {
			if ci := text.Fold(name); !keep[ci] {
				dropped = append(dropped, name)
				droppedCI = append(droppedCI, ci)
			}
		}
		if _, err := s.unlinkNames(ctx, term, kind, droppedCI); err != nil {
			return err
		}
		res.Dropped = dropped
		return nil
	})
	if err != nil {
		return ReplaceResult{}, err
	}

	res.Groups = newGroups
	if res.Dropped == nil {
		res.Dropped = []string{}
	}
	s.audit.GroupsReplaced(ctx, who, term, kind, len(newGroups), len(memberDocs))
	return res, nil
}

// unlinkNames removes class binding rows (and, for small groups, module
// mapping rows) that reference the folded names.
func (s *Store) unlinkNames(ctx context.Context, term, kind string, namesCI []string) (int64, error) {
	if len(namesCI) == 0 {
		return 0, nil
	}
	res, err := s.bindings.DeleteMany(ctx, bson.M{
		"term": term, "kind": kind, "group_name_ci": bson.M{"$in": namesCI},
	})
	if err != nil {
		return 0, apperr.Internal("remove class links", err)
	}
	n := res.DeletedCount
	if kind == models.GroupSmall {
		res, err := s.mappings.DeleteMany(ctx, bson.M{
			"term": term, "group_name_ci": bson.M{"$in": namesCI},
		})
		if err != nil {
			return 0, apperr.Internal("remove module mappings", err)
		}
		n += res.DeletedCount
	}
	return n, nil
}

func dupAsConflict(err error, conflictMsg, op string) error {
	if wafflemongo.IsDup(err) {
		return apperr.Conflict(conflictMsg)
	}
	return apperr.Internal(op, err)
}

func (s *Store) memberIDsOutsideKind(ctx context.Context, term, kind string, ids []primitive.ObjectID) ([]string, error) {
	cur, err := s.members.Find(ctx, bson.M{
		"term":      term,
		"kind":      bson.M{"$ne": kind},
		"person_id": bson.M{"$in": ids},
	}, options.Find().SetProjection(bson.M{"person_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	seen := map[string]bool{}
	var out []string
	for cur.Next(ctx) {
		var row models.GroupMember
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		if h := row.PersonID.Hex(); !seen[h] {
			seen[h] = true
			out = append(out, h)
		}
	}
	return out, cur.Err()
}

// GetByID returns one group with its members.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Group, error) {
	var g models.Group
	err := s.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&g)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Group{}, apperr.NotFound("group not found")
	}
	if err != nil {
		return models.Group{}, apperr.Internal("load group", err)
	}
	out, err := s.withMembers(ctx, []models.Group{g})
	if err != nil {
		return models.Group{}, err
	}
	return out[0], nil
}

// GetByTerm lists the term's groups of kind ("" for all kinds) with member
// ids loaded: one query for groups, one for members.
func (s *Store) GetByTerm(ctx context.Context, term, kind string) ([]models.Group, error) {
	filter := bson.M{"term": normalize.Code(term)}
	if k := normalize.Kind(kind); k != "" {
		filter["kind"] = k
	}
	return s.findWithMembers(ctx, filter)
}

// GetByNames returns the term's groups whose names fold to one of names.
// kind "" matches every kind. Unknown names are skipped.
func (s *Store) GetByNames(ctx context.Context, term, kind string, names []string) ([]models.Group, error) {
	if len(names) == 0 {
		return []models.Group{}, nil
	}
	filter := bson.M{
		"term":    normalize.Code(term),
		"name_ci": bson.M{"$in": normalize.Folded(names)},
	}
	if k := normalize.Kind(kind); k != "" {
		filter["kind"] = k
	}
	return s.findWithMembers(ctx, filter)
}

func (s *Store) findWithMembers(ctx context.Context, filter bson.M) ([]models.Group, error) {
	opts := options.Find().SetSort(bson.D{{Key: "kind", Value: 1}, {Key: "name_ci", Value: 1}})
	cur, err := s.groups.Find(ctx, filter, opts)
	if err != nil {
		return nil, apperr.Internal("list groups", err)
	}
	defer cur.Close(ctx)

	groups := []models.Group{}
	if err := cur.All(ctx, &groups); err != nil {
		return nil, apperr.Internal("list groups", err)
	}
	return s.withMembers(ctx, groups)
}

func (s *Store) withMembers(ctx context.Context, groups []models.Group) ([]models.Group, error) {
	if len(groups) == 0 {
		return groups, nil
	}
	ids := make([]primitive.ObjectID, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	cur, err := s.members.Find(ctx,
		bson.M{"group_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, apperr.Internal("list group members", err)
	}
	defer cur.Close(ctx)

	var rows []models.GroupMember
	if err := cur.All(ctx, &rows); err != nil {
		return nil, apperr.Internal("list group members", err)
	}
	return AttachMembers(groups, rows), nil
}

// AttachMembers fills each group's MemberIDs from rows, keeping row order.
// Rows for unknown groups are ignored; groups without rows get an empty list.
func AttachMembers(groups []models.Group, rows []models.GroupMember) []models.Group {
	byGroup := make(map[primitive.ObjectID][]primitive.ObjectID, len(groups))
	for _, r := range rows {
		byGroup[r.GroupID] = append(byGroup[r.GroupID], r.PersonID)
	}
	for i := range groups {
		ids := byGroup[groups[i].ID]
		if ids == nil {
			ids = []primitive.ObjectID{}
		}
		groups[i].MemberIDs = ids
	}
	return groups
}

// NamesByTerm returns the names of the term's groups of kind ("" for all),
// ordered by folded name.
func (s *Store) NamesByTerm(ctx context.Context, term, kind string) ([]string, error) {
	names, err := s.namesByTerm(ctx, normalize.Code(term), normalize.Kind(kind))
	if err != nil {
		return nil, apperr.Internal("list group names", err)
	}
	return names, nil
}

func (s *Store) namesByTerm(ctx context.Context, term, kind string) ([]string, error) {
	filter := bson.M{"term": term}
	if kind != "" {
		filter["kind"] = kind
	}
	opts := options.Find().
		SetProjection(bson.M{"name": 1}).
		SetSort(bson.D{{Key: "name_ci", Value: 1}})
	cur, err := s.groups.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	names := []string{}
	for cur.Next(ctx) {
		var row struct {
			Name string `bson:"name"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		names = append(names, row.Name)
	}
	return names, cur.Err()
}

// DeleteGroup removes a group, its members and every class binding or
// module mapping row that references its name, in one transaction.
func (s *Store) DeleteGroup(ctx context.Context, who actor.Actor, id primitive.ObjectID) (err error) {
	defer func() { metrics.Mutation(metrics.OpDeleteGroup, err) }()

	var (
		g        models.Group
		unlinked int64
	)
	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if err := s.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return apperr.NotFound("group not found")
			}
			return apperr.Internal("load group", err)
		}
		if _, err := s.groups.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
			return apperr.Internal("delete group", err)
		}
		if _, err := s.members.DeleteMany(ctx, bson.M{"group_id": id}); err != nil {
			return apperr.Internal("delete group members", err)
		}
		n, err := s.unlinkNames(ctx, g.Term, g.Kind, []string{g.NameCI})
		unlinked = n
		return err
	})
	if err != nil {
		return err
	}
	s.audit.GroupDeleted(ctx, who, g.Term, g.ID.Hex(), g.Name, int(unlinked))
	return nil
}
