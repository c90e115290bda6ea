// internal/app/store/modulemappings/mappingstore.go
package mappingstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	groupstore "github.com/dalemusser/curriculum/internal/app/store/groups"
	modulestore "github.com/dalemusser/curriculum/internal/app/store/modules"
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
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store maps block modules to small groups, one module per group per term.
type Store struct {
	db       *mongo.Database
	mappings *mongo.Collection
	modules  *modulestore.Store
	groups   *groupstore.Store
	log      *zap.Logger
	audit    *auditlog.Logger
}

func New(db *mongo.Database, log *zap.Logger, audit *auditlog.Logger) *Store {
	return &Store{
		db:       db,
		mappings: db.Collection("module_mappings"),
		modules:  modulestore.New(db),
		groups:   groupstore.New(db, log, audit),
		log:      log,
		audit:    audit,
	}
}

// GroupStatus reports whether a small group is mapped and to which module.
type GroupStatus struct {
	Name   string `json:"name"`
	IsUsed bool   `json:"is_used"`
	UsedBy string `json:"used_by,omitempty"`
}

var byGroupName = options.Find().SetSort(bson.D{{Key: "group_name_ci", Value: 1}})

// MapModule replaces the groups mapped to a block module in term. An empty
// list removes every mapping for the module. Returns the stored group names.
func (s *Store) MapModule(ctx context.Context, who actor.Actor, term, moduleCode string, groupNames []string) (names []string, err error) {
	defer func() { metrics.Mutation(metrics.OpMapModule, err) }()

	term = normalize.Code(term)
	moduleCode = normalize.Code(moduleCode)
	if term == "" {
		return nil, apperr.ValidationFields("Term is required.", map[string]string{"Term": "Term is required."})
	}

	mod, err := s.modules.GetByCode(ctx, moduleCode)
	if errors.Is(err, modulestore.ErrNotFound) {
		return nil, apperr.NotFound(fmt.Sprintf("module %q not found", moduleCode))
	}
	if err != nil {
		return nil, apperr.Internal("load module", err)
	}
	if mod.Category != models.CategoryBlock {
		return nil, apperr.Validation("only block modules accept group mappings", mod.Code)
	}

	requested := normalize.Names(groupNames)
	canonical := map[string]string{}
	if len(requested) > 0 {
		existing, err := s.groups.NamesByTerm(ctx, term, models.GroupSmall)
		if err != nil {
			return nil, err
		}
		for _, n := range existing {
			canonical[text.Fold(n)] = n
		}
		var missing []string
		for _, n := range requested {
			if _, ok := canonical[text.Fold(n)]; !ok {
				missing = append(missing, n)
			}
		}
		if len(missing) > 0 {
			if len(existing) == 0 {
				all, err := s.groups.NamesByTerm(ctx, term, "")
				if err != nil {
					return nil, err
				}
				if len(all) == 0 {
					return nil, apperr.Validation("no groups exist")
				}
			}
			return nil, apperr.Validation("groups not found", missing...)
		}

		taken, err := s.mappedElsewhere(ctx, term, mod.Code, normalize.Folded(requested))
		if err != nil {
			return nil, apperr.Internal("check mapped groups", err)
		}
		if len(taken) > 0 {
			return nil, apperr.Conflict("already mapped", taken...)
		}
	}

	now := time.Now().UTC()
	names = make([]string, len(requested))
	rows := make([]interface{}, len(requested))
	for i, n := range requested {
		stored := canonical[text.Fold(n)]
		names[i] = stored
		rows[i] = models.ModuleMapping{
			Term:        term,
			ModuleCode:  mod.Code,
			GroupName:   stored,
			GroupNameCI: text.Fold(stored),
			CreatedAt:   now,
		}
	}

	err = txn.Run(ctx, s.db, s.log, func(ctx context.Context) error {
		if _, err := s.mappings.DeleteMany(ctx, bson.M{"term": term, "module_code": mod.Code}); err != nil {
			return apperr.Internal("delete module mappings", err)
		}
		if len(rows) == 0 {
			return nil
		}
		if _, err := s.mappings.InsertMany(ctx, rows); err != nil {
			if wafflemongo.IsDup(err) {
				return apperr.Conflict("already mapped", names...)
			}
			return apperr.Internal("insert module mappings", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.ModuleMapped(ctx, who, term, mod.Code, len(names))
	return names, nil
}

func (s *Store) mappedElsewhere(ctx context.Context, term, moduleCode string, namesCI []string) ([]string, error) {
	rows, err := s.find(ctx, bson.M{
		"term":          term,
		"group_name_ci": bson.M{"$in": namesCI},
		"module_code":   bson.M{"$ne": moduleCode},
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.GroupName)
	}
	return out, nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.ModuleMapping, error) {
	cur, err := s.mappings.Find(ctx, filter, byGroupName)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var rows []models.ModuleMapping
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// GroupsForModule returns the group names mapped to a module in term.
func (s *Store) GroupsForModule(ctx context.Context, term, moduleCode string) ([]string, error) {
	rows, err := s.find(ctx, bson.M{"term": normalize.Code(term), "module_code": normalize.Code(moduleCode)})
	if err != nil {
		return nil, apperr.Internal("list module mappings", err)
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.GroupName)
	}
	return out, nil
}

// ListAllGroupsWithStatus returns every small group of the term with its
// mapping status, ordered by name.
func (s *Store) ListAllGroupsWithStatus(ctx context.Context, term string) ([]GroupStatus, error) {
	term = normalize.Code(term)
	names, err := s.groups.NamesByTerm(ctx, term, models.GroupSmall)
	if err != nil {
		return nil, err
	}
	rows, err := s.find(ctx, bson.M{"term": term})
	if err != nil {
		return nil, apperr.Internal("list module mappings", err)
	}
	return GroupStatuses(names, rows), nil
}

// ListAvailableGroups returns the small groups of the term not mapped to
// any module.
func (s *Store) ListAvailableGroups(ctx context.Context, term string) ([]string, error) {
	all, err := s.ListAllGroupsWithStatus(ctx, term)
	if err != nil {
		return nil, err
	}
	out := []string{}
	for _, g := range all {
		if !g.IsUsed {
			out = append(out, g.Name)
		}
	}
	return out, nil
}

// GroupStatuses marks each name as used when a mapping row references it.
// Rows for names not in the list are ignored.
func GroupStatuses(names []string, rows []models.ModuleMapping) []GroupStatus {
	usedBy := make(map[string]string, len(rows))
	for _, r := range rows {
		usedBy[r.GroupNameCI] = r.ModuleCode
	}
	out := make([]GroupStatus, len(names))
	for i, n := range names {
		code, ok := usedBy[text.Fold(n)]
		out[i] = GroupStatus{Name: n, IsUsed: ok, UsedBy: code}
	}
	return out
}

// BatchMapping returns the mapped group names for each code in one query.
// Every requested code is a key of the result.
func (s *Store) BatchMapping(ctx context.Context, codes []string, term string) (map[string][]string, error) {
	codes = cleanCodes(codes)
	if len(codes) == 0 {
		return map[string][]string{}, nil
	}
	rows, err := s.find(ctx, bson.M{"term": normalize.Code(term), "module_code": bson.M{"$in": codes}})
	if err != nil {
		return nil, apperr.Internal("batch module mappings", err)
	}
	return GroupByModule(codes, rows), nil
}

// BatchMappingMultiTerm is BatchMapping over several terms, still one query.
// The result is keyed by term, then module code.
func (s *Store) BatchMappingMultiTerm(ctx context.Context, req map[string][]string) (map[string]map[string][]string, error) {
	out := make(map[string]map[string][]string, len(req))
	var or []bson.M
	clean := make(map[string][]string, len(req))
	for term, codes := range req {
		term = normalize.Code(term)
		codes = cleanCodes(codes)
		clean[term] = append(clean[term], codes...)
		if len(codes) > 0 {
			or = append(or, bson.M{"term": term, "module_code": bson.M{"$in": codes}})
		}
	}
	var rows []models.ModuleMapping
	if len(or) > 0 {
		var err error
		rows, err = s.find(ctx, bson.M{"$or": or})
		if err != nil {
			return nil, apperr.Internal("batch module mappings", err)
		}
	}

	byTerm := make(map[string][]models.ModuleMapping, len(clean))
	for _, r := range rows {
		byTerm[r.Term] = append(byTerm[r.Term], r)
	}
	for term, codes := range clean {
		out[term] = GroupByModule(codes, byTerm[term])
	}
	return out, nil
}

// GroupByModule groups rows by module code, keeping row order. Every code
// in codes gets a non-nil slice.
func GroupByModule(codes []string, rows []models.ModuleMapping) map[string][]string {
	out := make(map[string][]string, len(codes))
	for _, c := range codes {
		out[c] = []string{}
	}
	for _, r := range rows {
		if _, ok := out[r.ModuleCode]; ok {
			out[r.ModuleCode] = append(out[r.ModuleCode], r.GroupName)
		}
	}
	return out
}

func cleanCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = normalize.Code(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
