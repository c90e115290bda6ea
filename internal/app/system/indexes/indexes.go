// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/curriculum/internal/app/store/audit"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.

The unique indexes below are the authoritative exclusivity guards for the
mapping engine; the stores' pre-checks only produce friendlier errors.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"terms", ensureTerms},
		{"persons", ensurePersons},
		{"groups", ensureGroups},
		{"group_members", ensureGroupMembers},
		{"class_bindings", ensureClassBindings},
		{"class_binding_groups", ensureClassBindingGroups},
		{"modules", ensureModules},
		{"module_mappings", ensureModuleMappings},
		{"expertise_assignments", ensureExpertiseAssignments},
		{"schedule_entries", ensureScheduleEntries},
		{"rooms", ensureRooms},
		{"time_slots", ensureTimeSlots},
		{"audit_events", func(ctx context.Context, db *mongo.Database) error {
			return audit.New(db).EnsureIndexes(ctx)
		}},
	}
	for _, s := range sets {
		if err := s.fn(ctx, db); err != nil {
			problems = append(problems, s.name+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name    string `bson:"name"`
	Key     bson.D `bson:"key"`
	Unique  *bool  `bson:"unique,omitempty"`
	Partial bson.D `bson:"partialFilterExpression,omitempty"`
}

// desiredIndex is the comparable view of a mongo.IndexModel.
type desiredIndex struct {
	name    string
	sig     string
	unique  *bool
	partial string
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func partialSig(v interface{}) string {
	switch p := v.(type) {
	case nil:
		return ""
	case bson.D:
		return keySig(p)
	case bson.M:
		d := make(bson.D, 0, len(p))
		for k, v := range p {
			d = append(d, bson.E{Key: k, Value: v})
		}
		return keySig(d)
	default:
		return fmt.Sprintf("%v", p)
	}
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

func describe(m mongo.IndexModel) desiredIndex {
	d := desiredIndex{sig: keySig(m.Keys.(bson.D))}
	if m.Options != nil {
		if m.Options.Name != nil {
			d.name = *m.Options.Name
		}
		d.unique = m.Options.Unique
		d.partial = partialSig(m.Options.PartialFilterExpression)
	}
	return d
}

func (d desiredIndex) matches(ex existingIndex) bool {
	return sameBoolPtr(d.unique, ex.Unique) && d.partial == keySig(ex.Partial)
}

func (d desiredIndex) isUnique() bool { return d.unique != nil && *d.unique }

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func listExisting(ctx context.Context, coll *mongo.Collection) (map[string]existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	existing := map[string]existingIndex{} // sig -> index
	for cur.Next(ctx) {
		var idx existingIndex
		if err := cur.Decode(&idx); err != nil {
			zap.L().Warn("failed to decode existing index",
				zap.String("collection", coll.Name()),
				zap.Error(err))
			continue
		}
		existing[keySig(idx.Key)] = idx
	}
	return existing, cur.Err()
}

// recreate drops ex and creates m in its place.
func recreate(ctx context.Context, coll *mongo.Collection, ex existingIndex, m mongo.IndexModel, d desiredIndex) error {
	if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
		return fmt.Errorf("drop %s failed: %w", ex.Name, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
		if isDuplicateKeyErr(err) && d.isUnique() {
			return fmt.Errorf("cannot create unique index on (%s): duplicates present", d.sig)
		}
		return err
	}
	return nil
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	fail := func(d desiredIndex, err error) {
		zap.L().Warn("index ensure failed",
			zap.String("collection", coll.Name()),
			zap.String("name", d.name),
			zap.String("keys", d.sig),
			zap.Error(err))
		errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), d.name, err))
	}

	for _, m := range models {
		d := describe(m)
		start := time.Now()

		existing, err := listExisting(ctx, coll)
		if err != nil {
			// Namespace may not exist yet; CreateOne below creates it.
			existing = map[string]existingIndex{}
		}

		if ex, ok := existing[d.sig]; ok {
			switch {
			case d.matches(ex) && (d.name == "" || ex.Name == d.name):
				zap.L().Debug("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", d.sig))
			default:
				// Name drift or options mismatch (e.g. upgrading to unique).
				if err := recreate(ctx, coll, ex, m, d); err != nil {
					fail(d, err)
					continue
				}
				zap.L().Info("index dropped and recreated",
					zap.String("collection", coll.Name()),
					zap.String("from", ex.Name),
					zap.String("to", d.name),
					zap.String("keys", d.sig),
					zap.Bool("unique", d.isUnique()),
					zap.String("took", time.Since(start).String()))
			}
			continue
		}

		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			if isOptionsConflictErr(err) {
				// Raced with another instance or a same-key index appeared.
				if again, e2 := listExisting(ctx, coll); e2 == nil {
					if ex, ok := again[d.sig]; ok && d.matches(ex) {
						continue
					} else if ok {
						if err := recreate(ctx, coll, ex, m, d); err != nil {
							fail(d, err)
						}
						continue
					}
				}
			}
			if isDuplicateKeyErr(err) && d.isUnique() {
				err = fmt.Errorf("cannot create unique index on (%s): duplicates present", d.sig)
			}
			fail(d, err)
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", created),
			zap.String("keys", d.sig),
			zap.Bool("unique", d.isUnique()),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureTerms(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("terms"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_terms_code"),
		},
		// At most one active term system-wide.
		{
			Keys: bson.D{{Key: "is_active", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.D{{Key: "is_active", Value: true}}).
				SetName("uniq_terms_active"),
		},
	})
}

func ensurePersons(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("persons"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "role", Value: 1}, {Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_persons_role_nameci__id"),
		},
		{
			Keys:    bson.D{{Key: "term", Value: 1}, {Key: "role", Value: 1}},
			Options: options.Index().SetName("idx_persons_term_role"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("groups"), []mongo.IndexModel{
		// Group names are unique per (term, kind), case/diacritics-folded.
		{
			Keys:    bson.D{{Key: "term", Value: 1}, {Key: "kind", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_groups_term_kind_nameci"),
		},
		{
			Keys:    bson.D{{Key: "term", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetName("idx_groups_term_nameci"),
		},
	})
}

func ensureGroupMembers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("group_members"), []mongo.IndexModel{
		// A student is in at most one group per term, of either kind.
		{
			Keys:    bson.D{{Key: "term", Value: 1}, {Key: "person_id", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_group_members_term_person"),
		},
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}},
			Options: options.Index().SetName("idx_group_members_group"),
		},
	})
}

func ensureClassBindings(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("class_bindings"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "term", Value: 1}, {Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_class_bindings_term_nameci"),
		},
	})
}

func ensureClassBindingGroups(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("class_binding_groups"), []mongo.IndexModel{
		// A group is bound to at most one class per (term, kind).
		{
			Keys:    bson.D{{Key: "term", Value: 1}, {Key: "kind", Value: 1}, {Key: "group_name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_cbg_term_kind_groupci"),
		},
		{
			Keys:    bson.D{{Key: "binding_id", Value: 1}},
			Options: options.Index().SetName("idx_cbg_binding"),
		},
	})
}

func ensureModules(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("modules"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_modules_code"),
		},
		{
			Keys:    bson.D{{Key: "category", Value: 1}, {Key: "code", Value: 1}},
			Options: options.Index().SetName("idx_modules_category_code"),
		},
	})
}

func ensureModuleMappings(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("module_mappings"), []mongo.IndexModel{
		// A group is mapped to at most one module per term.
		{
			Keys:    bson.D{{Key: "term", Value: 1}, {Key: "group_name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_module_mappings_term_groupci"),
		},
		{
			Keys:    bson.D{{Key: "term", Value: 1}, {Key: "module_code", Value: 1}},
			Options: options.Index().SetName("idx_module_mappings_term_module"),
		},
	})
}

func ensureExpertiseAssignments(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("expertise_assignments"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "module_id", Value: 1},
				{Key: "person_id", Value: 1},
				{Key: "tag_ci", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_expertise_module_person_tagci"),
		},
		{
			Keys:    bson.D{{Key: "person_id", Value: 1}},
			Options: options.Index().SetName("idx_expertise_person"),
		},
	})
}

func ensureScheduleEntries(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("schedule_entries"), []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "term", Value: 1},
				{Key: "target_type", Value: 1},
				{Key: "target_code", Value: 1},
				{Key: "date", Value: 1},
				{Key: "start_time", Value: 1},
			},
			Options: options.Index().SetName("idx_schedule_term_target_date_start"),
		},
	})
}

func ensureRooms(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("rooms"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "capacity", Value: 1}, {Key: "_id", Value: 1}},
			Options: options.Index().SetName("idx_rooms_capacity__id"),
		},
	})
}

func ensureTimeSlots(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("time_slots"), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "order", Value: 1}},
			Options: options.Index().SetName("idx_time_slots_order"),
		},
	})
}
