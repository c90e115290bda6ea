// internal/app/store/rooms/roomstore.go
package roomstore

import (
	"context"
	"sort"

	"github.com/dalemusser/curriculum/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store reads the rooms lookup table.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("rooms")}
}

// List returns every room ordered by capacity.
func (s *Store) List(ctx context.Context) ([]models.Room, error) {
	opts := options.Find().SetSort(bson.D{{Key: "capacity", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Room{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FindCandidates lists the rooms and applies Candidates.
func (s *Store) FindCandidates(ctx context.Context, minCapacity int, exclude []primitive.ObjectID) ([]models.Room, error) {
	rooms, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return Candidates(rooms, minCapacity, exclude), nil
}

// Candidates returns the rooms holding at least minCapacity people,
// smallest first, skipping any id in exclude. Ties are ordered by name.
func Candidates(rooms []models.Room, minCapacity int, exclude []primitive.ObjectID) []models.Room {
	skip := make(map[primitive.ObjectID]struct{}, len(exclude))
	for _, id := range exclude {
		skip[id] = struct{}{}
	}
	out := make([]models.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Capacity < minCapacity {
			continue
		}
		if _, ok := skip[r.ID]; ok {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Capacity != out[j].Capacity {
			return out[i].Capacity < out[j].Capacity
		}
		return out[i].Name < out[j].Name
	})
	return out
}
