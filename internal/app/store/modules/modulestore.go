// internal/app/store/modules/modulestore.go
package modulestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a module does not exist.
var ErrNotFound = errors.New("module not found")

// Store reads the module catalogue. Catalogue maintenance happens outside
// this service; Create exists for seeding.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("modules")}
}

// Create inserts a catalogue row.
func (s *Store) Create(ctx context.Context, m models.Module) (models.Module, error) {
	now := time.Now().UTC()
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	m.Code = normalize.Code(m.Code)
	m.Name = normalize.Name(m.Name)
	m.CreatedAt = now
	m.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		return models.Module{}, err
	}
	return m, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Module, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) GetByCode(ctx context.Context, code string) (models.Module, error) {
	return s.findOne(ctx, bson.M{"code": normalize.Code(code)})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (models.Module, error) {
	var m models.Module
	if err := s.c.FindOne(ctx, filter).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Module{}, ErrNotFound
		}
		return models.Module{}, err
	}
	return m, nil
}

// List returns the catalogue ordered by code. An empty category lists all.
func (s *Store) List(ctx context.Context, category string) ([]models.Module, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	return s.find(ctx, filter)
}

// ListByCodes returns the modules among codes that exist, ordered by code.
func (s *Store) ListByCodes(ctx context.Context, codes []string) ([]models.Module, error) {
	if len(codes) == 0 {
		return []models.Module{}, nil
	}
	clean := make([]string, 0, len(codes))
	for _, c := range codes {
		if c = normalize.Code(c); c != "" {
			clean = append(clean, c)
		}
	}
	return s.find(ctx, bson.M{"code": bson.M{"$in": clean}})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.Module, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Module{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
