// internal/app/store/persons/personstore.go
package personstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/curriculum/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrNotFound is returned when a person does not exist.
var ErrNotFound = errors.New("person not found")

// Store reads and updates the roster.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("persons")}
}

func (s *Store) Create(ctx context.Context, p models.Person) (models.Person, error) {
	now := time.Now().UTC()
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	p.FullNameCI = text.Fold(p.FullName)
	if p.Expertise == nil {
		p.Expertise = models.TagSet{}
	}
	if p.LoadCount < 0 {
		p.LoadCount = 0
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Person{}, err
	}
	return p, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Person, error) {
	var p models.Person
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Person{}, ErrNotFound
		}
		return models.Person{}, err
	}
	return p, nil
}

// ListByRole returns every person with role, ordered by name.
func (s *Store) ListByRole(ctx context.Context, role string) ([]models.Person, error) {
	opts := options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, bson.M{"role": role}, opts)
}

// ListByIDs returns the persons among ids that exist, ordered by name.
func (s *Store) ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Person, error) {
	if len(ids) == 0 {
		return []models.Person{}, nil
	}
	opts := options.Find().SetSort(bson.D{{Key: "full_name_ci", Value: 1}, {Key: "_id", Value: 1}})
	return s.find(ctx, bson.M{"_id": bson.M{"$in": ids}}, opts)
}

func (s *Store) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Person, error) {
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.Person{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StudentIDs returns which of ids belong to existing students.
func (s *Store) StudentIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]bool, error) {
	out := make(map[primitive.ObjectID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.c.Find(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "role": models.RoleStudent},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		out[row.ID] = true
	}
	return out, cur.Err()
}

// StudentIDsByTerm returns the ids of students associated with term.
func (s *Store) StudentIDsByTerm(ctx context.Context, term string) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx,
		bson.M{"role": models.RoleStudent, "term": term},
		options.Find().SetProjection(bson.M{"_id": 1}).SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := []primitive.ObjectID{}
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// SetExpertise replaces a person's expertise tags.
func (s *Store) SetExpertise(ctx context.Context, id primitive.ObjectID, tags models.TagSet) error {
	if tags == nil {
		tags = models.TagSet{}
	}
	res, err := s.c.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"expertise":  tags,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// IncrementLoad adds one to a person's load counter.
func (s *Store) IncrementLoad(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateByID(ctx, id, bson.M{
		"$inc": bson.M{"load_count": 1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DecrementLoad subtracts one from a person's load counter unless it is
// already zero. It reports whether the counter changed.
func (s *Store) DecrementLoad(ctx context.Context, id primitive.ObjectID) (bool, error) {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "load_count": bson.M{"$gt": 0}},
		bson.M{
			"$inc": bson.M{"load_count": -1},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return false, err
	}
	return res.ModifiedCount > 0, nil
}

// RekeyTerm moves the given students from one term to another and returns
// how many were updated. Students no longer on from are left alone.
func (s *Store) RekeyTerm(ctx context.Context, ids []primitive.ObjectID, from, to string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res, err := s.c.UpdateMany(ctx,
		bson.M{"_id": bson.M{"$in": ids}, "role": models.RoleStudent, "term": from},
		bson.M{"$set": bson.M{"term": to, "updated_at": time.Now().UTC()}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// PartitionStandby splits instructors into the regular and standby pools.
// Order within each pool follows the input.
func PartitionStandby(persons []models.Person) (regular, standby []models.Person) {
	regular = []models.Person{}
	standby = []models.Person{}
	for _, p := range persons {
		if p.Expertise.IsStandby() {
			standby = append(standby, p)
		} else {
			regular = append(regular, p)
		}
	}
	return regular, standby
}
