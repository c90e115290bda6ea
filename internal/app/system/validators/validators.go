// internal/app/system/validators/validators.go
package validators

import (
	"context"
	"errors"
	"strings"

	"github.com/dalemusser/curriculum/internal/domain/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// EnsureAll creates collections (if missing) and tries to attach JSON-Schema
// validators. On servers that don't support collMod/validators (e.g. some
// DocumentDB versions), we log and skip gracefully.
//
// Collections must exist before the first transaction touches them; MongoDB
// before 4.4 cannot create a collection inside a transaction.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	ensure := func(coll string, schema bson.M) {
		if _, err := ensureCollection(ctx, db, coll); err != nil {
			problems = append(problems, coll+": "+err.Error())
			return
		}
		if schema == nil {
			return
		}
		if err := setValidator(ctx, db, coll, schema); err != nil {
			if isNoSuchCommand(err) || isNotImplemented(err) {
				zap.L().Info("validator skipped (unsupported)", zap.String("collection", coll))
				return
			}
			problems = append(problems, coll+": "+err.Error())
		}
	}

	ensure("terms", termsSchema())
	ensure("persons", personsSchema())
	ensure("groups", groupsSchema())
	ensure("group_members", groupMembersSchema())
	ensure("class_bindings", classBindingsSchema())
	ensure("class_binding_groups", classBindingGroupsSchema())
	ensure("modules", modulesSchema())
	ensure("module_mappings", moduleMappingsSchema())
	ensure("expertise_assignments", expertiseSchema())

	// Read-side tables written by other tools; no validator.
	ensure("schedule_entries", nil)
	ensure("rooms", nil)
	ensure("time_slots", nil)
	ensure("audit_events", nil)

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* ---------------------- collection helpers & logging ---------------------- */

// collectionExists returns true when <name> already exists.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.M{"name": name})
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

// ensureCollection idempotently makes sure <name> exists.
// Returns created==true only if we actually created it.
func ensureCollection(ctx context.Context, db *mongo.Database, name string) (created bool, err error) {
	if exists, listErr := collectionExists(ctx, db, name); listErr == nil && exists {
		zap.L().Debug("collection exists", zap.String("collection", name))
		return false, nil
	}
	if err := db.CreateCollection(ctx, name); err != nil {
		if isNamespaceExistsErr(err) {
			return false, nil
		}
		zap.L().Warn("createCollection failed", zap.String("collection", name), zap.Error(err))
		return false, err
	}
	zap.L().Info("created collection", zap.String("collection", name))
	return true, nil
}

/* ------------------------------ validators ------------------------------- */

func setValidator(ctx context.Context, db *mongo.Database, name string, validator bson.M) error {
	cmd := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
		{Key: "validationLevel", Value: "moderate"},
		{Key: "validationAction", Value: "error"},
	}
	var out bson.M
	if err := db.RunCommand(ctx, cmd).Decode(&out); err != nil {
		return err
	}
	zap.L().Info("validator ensured", zap.String("collection", name))
	return nil
}

/* ------------------------- error helpers ------------------------- */

// commandErr reports whether err is a CommandError with one of codes, or
// whose text contains any of the phrases.
func commandErr(err error, codes []int32, phrases ...string) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) {
		for _, c := range codes {
			if ce.Code == c {
				return true
			}
		}
	}
	s := strings.ToLower(err.Error())
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isNamespaceExistsErr(err error) bool {
	return commandErr(err, []int32{48}, "already exists", "namespace exists")
}

func isNoSuchCommand(err error) bool {
	return commandErr(err, []int32{59}, "no such command")
}

func isNotImplemented(err error) bool {
	return commandErr(err, []int32{115}, "not implemented", "not supported")
}

/* ------------------------- JSON-Schema docs ---------------------- */

var nonBlank = bson.M{"bsonType": "string", "minLength": 1, "pattern": ".*\\S.*"}

func object(required bson.A, props bson.M) bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType":   "object",
			"required":   required,
			"properties": props,
		},
	}
}

func termsSchema() bson.M {
	return object(bson.A{"code", "is_active"}, bson.M{
		"code":      nonBlank,
		"label":     bson.M{"bsonType": "string"},
		"is_active": bson.M{"bsonType": "bool"},
	})
}

// expertise is deliberately untyped: legacy rows hold it as a string.
func personsSchema() bson.M {
	return object(bson.A{"full_name", "role"}, bson.M{
		"full_name":    nonBlank,
		"full_name_ci": nonBlank,
		"role":         bson.M{"enum": bson.A{models.RoleStudent, models.RoleInstructor, models.RoleStaff}},
		"load_count":   bson.M{"bsonType": bson.A{"int", "long"}, "minimum": 0},
	})
}

func groupsSchema() bson.M {
	return object(bson.A{"term", "kind", "name", "name_ci"}, bson.M{
		"term":    nonBlank,
		"kind":    bson.M{"enum": bson.A{models.GroupSmall, models.GroupLarge}},
		"name":    nonBlank,
		"name_ci": nonBlank,
	})
}

func groupMembersSchema() bson.M {
	return object(bson.A{"group_id", "term", "kind", "person_id"}, bson.M{
		"group_id":  bson.M{"bsonType": "objectId"},
		"term":      nonBlank,
		"kind":      bson.M{"enum": bson.A{models.GroupSmall, models.GroupLarge}},
		"person_id": bson.M{"bsonType": "objectId"},
	})
}

func classBindingsSchema() bson.M {
	return object(bson.A{"term", "name", "name_ci", "kind"}, bson.M{
		"term":    nonBlank,
		"name":    nonBlank,
		"name_ci": nonBlank,
		"kind":    bson.M{"enum": bson.A{models.GroupSmall, models.GroupLarge}},
	})
}

func classBindingGroupsSchema() bson.M {
	return object(bson.A{"binding_id", "term", "kind", "group_name", "group_name_ci"}, bson.M{
		"binding_id":    bson.M{"bsonType": "objectId"},
		"term":          nonBlank,
		"kind":          bson.M{"enum": bson.A{models.GroupSmall, models.GroupLarge}},
		"group_name":    nonBlank,
		"group_name_ci": nonBlank,
	})
}

func modulesSchema() bson.M {
	return object(bson.A{"code", "name", "category"}, bson.M{
		"code": nonBlank,
		"name": nonBlank,
		"category": bson.M{"enum": bson.A{
			models.CategoryBlock, models.CategoryPBL, models.CategoryCSR, models.CategorySkill,
		}},
	})
}

func moduleMappingsSchema() bson.M {
	return object(bson.A{"term", "module_code", "group_name", "group_name_ci"}, bson.M{
		"term":          nonBlank,
		"module_code":   nonBlank,
		"group_name":    nonBlank,
		"group_name_ci": nonBlank,
	})
}

func expertiseSchema() bson.M {
	return object(bson.A{"module_id", "person_id", "tag", "tag_ci"}, bson.M{
		"module_id": bson.M{"bsonType": "objectId"},
		"person_id": bson.M{"bsonType": "objectId"},
		"tag":       nonBlank,
		"tag_ci":    nonBlank,
	})
}
