// internal/app/store/timeslots/timeslotstore.go
package timeslotstore

import (
	"context"

	"github.com/dalemusser/curriculum/internal/app/system/timefmt"
	"github.com/dalemusser/curriculum/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store reads the time slot lookup table.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("time_slots")}
}

// List returns the slots in day order with times in display form.
func (s *Store) List(ctx context.Context) ([]models.TimeSlot, error) {
	opts := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.TimeSlot{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Start = timefmt.Display(out[i].Start)
		out[i].End = timefmt.Display(out[i].End)
	}
	return out, nil
}
