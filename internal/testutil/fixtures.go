package testutil

import (
	"context"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/dalemusser/curriculum/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc interface{}) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert test %s: %v", coll, err)
	}
}

// CreateTerm creates a term with the given code.
func (f *Fixtures) CreateTerm(ctx context.Context, code string, active bool) models.Term {
	f.t.Helper()

	now := time.Now().UTC()
	term := models.Term{
		ID:        primitive.NewObjectID(),
		Code:      code,
		Label:     "Term " + code,
		IsActive:  active,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "terms", term)
	return term
}

// CreatePerson creates a person with the given role and expertise.
func (f *Fixtures) CreatePerson(ctx context.Context, fullName, role string, expertise ...string) models.Person {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Person{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Role:       role,
		Expertise:  models.TagSet(expertise),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.insert(ctx, "persons", p)
	return p
}

// CreateStudent creates a student associated with term.
func (f *Fixtures) CreateStudent(ctx context.Context, fullName, term string) models.Person {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Person{
		ID:         primitive.NewObjectID(),
		FullName:   fullName,
		FullNameCI: text.Fold(fullName),
		Role:       models.RoleStudent,
		Expertise:  models.TagSet{},
		Term:       term,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	f.insert(ctx, "persons", p)
	return p
}

// CreateStudents creates n students in term named prefix-1..prefix-n.
func (f *Fixtures) CreateStudents(ctx context.Context, prefix, term string, n int) []models.Person {
	f.t.Helper()
	out := make([]models.Person, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, f.CreateStudent(ctx, prefix+"-"+strconv.Itoa(i), term))
	}
	return out
}

// CreateInstructor creates an instructor with the given expertise tags.
func (f *Fixtures) CreateInstructor(ctx context.Context, fullName string, expertise ...string) models.Person {
	f.t.Helper()
	return f.CreatePerson(ctx, fullName, models.RoleInstructor, expertise...)
}

// CreateRawPerson inserts a person document as-is, for exercising legacy
// storage shapes (e.g. expertise stored as a string).
func (f *Fixtures) CreateRawPerson(ctx context.Context, doc map[string]interface{}) primitive.ObjectID {
	f.t.Helper()
	id := primitive.NewObjectID()
	doc["_id"] = id
	if _, ok := doc["full_name_ci"]; !ok {
		if name, ok := doc["full_name"].(string); ok {
			doc["full_name_ci"] = text.Fold(name)
		}
	}
	f.insert(ctx, "persons", doc)
	return id
}

// CreateModule creates a catalogue module.
func (f *Fixtures) CreateModule(ctx context.Context, code, name, category string) models.Module {
	f.t.Helper()

	now := time.Now().UTC()
	m := models.Module{
		ID:        primitive.NewObjectID(),
		Code:      code,
		Name:      name,
		Category:  category,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "modules", m)
	return m
}

// CreateRoom creates a room.
func (f *Fixtures) CreateRoom(ctx context.Context, name string, capacity int) models.Room {
	f.t.Helper()
	r := models.Room{ID: primitive.NewObjectID(), Name: name, Capacity: capacity}
	f.insert(ctx, "rooms", r)
	return r
}

// CreateTimeSlot creates a time-slot option.
func (f *Fixtures) CreateTimeSlot(ctx context.Context, label, start, end string, order int) models.TimeSlot {
	f.t.Helper()
	s := models.TimeSlot{ID: primitive.NewObjectID(), Label: label, Start: start, End: end, Order: order}
	f.insert(ctx, "time_slots", s)
	return s
}

// CreateScheduleEntry creates a schedule entry; times are stored verbatim.
func (f *Fixtures) CreateScheduleEntry(ctx context.Context, e models.ScheduleEntry) models.ScheduleEntry {
	f.t.Helper()
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	f.insert(ctx, "schedule_entries", e)
	return e
}
