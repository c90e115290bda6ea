// internal/app/store/schedules/schedulestore.go
package schedulestore

import (
	"context"
	"sort"

	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/app/system/timefmt"
	"github.com/dalemusser/curriculum/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Store reads schedule entries for batch views. Entries are written by the
// scheduling screens, outside this service.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("schedule_entries")}
}

// ListByTarget returns a module's or class's entries in term, ordered by
// date and start time, with times in display form.
func (s *Store) ListByTarget(ctx context.Context, term, targetType, code string) ([]models.ScheduleEntry, error) {
	rows, err := s.find(ctx, bson.M{
		"term":        normalize.Code(term),
		"target_type": targetType,
		"target_code": normalize.Code(code),
	})
	if err != nil {
		return nil, err
	}
	return Normalize(rows), nil
}

// ListByTargets is ListByTarget for several codes in one query. Every
// requested code is a key of the result.
func (s *Store) ListByTargets(ctx context.Context, term, targetType string, codes []string) (map[string][]models.ScheduleEntry, error) {
	out := make(map[string][]models.ScheduleEntry, len(codes))
	clean := make([]string, 0, len(codes))
	for _, c := range codes {
		c = normalize.Code(c)
		out[c] = []models.ScheduleEntry{}
		clean = append(clean, c)
	}
	if len(clean) == 0 {
		return out, nil
	}
	rows, err := s.find(ctx, bson.M{
		"term":        normalize.Code(term),
		"target_type": targetType,
		"target_code": bson.M{"$in": clean},
	})
	if err != nil {
		return nil, err
	}
	for _, e := range Normalize(rows) {
		if _, ok := out[e.TargetCode]; ok {
			out[e.TargetCode] = append(out[e.TargetCode], e)
		}
	}
	return out, nil
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.ScheduleEntry, error) {
	cur, err := s.c.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.ScheduleEntry{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Normalize converts every time to display form and sorts by date then
// start time. Rows are stored in mixed formats, so sorting happens after
// conversion.
func Normalize(rows []models.ScheduleEntry) []models.ScheduleEntry {
	for i := range rows {
		rows[i].StartTime = timefmt.Display(rows[i].StartTime)
		rows[i].EndTime = timefmt.Display(rows[i].EndTime)
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].StartTime < rows[j].StartTime
	})
	return rows
}
