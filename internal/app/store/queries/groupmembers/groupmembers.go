package groupmembers

import (
	"context"

	"github.com/dalemusser/curriculum/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// GroupMember is one membership row joined with the student's roster row.
type GroupMember struct {
	GroupID primitive.ObjectID `bson:"group_id" json:"group_id"`
	Person  models.Person      `bson:"person" json:"person"`
}

// ListByGroups returns the members of every group in groupIDs in one
// aggregation, ordered by group then student name. Memberships whose
// person row is gone are dropped.
func ListByGroups(ctx context.Context, db *mongo.Database, groupIDs []primitive.ObjectID) ([]GroupMember, error) {
	if len(groupIDs) == 0 {
		return []GroupMember{}, nil
	}
	pipe := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.M{"group_id": bson.M{"$in": groupIDs}}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from":         "persons",
			"localField":   "person_id",
			"foreignField": "_id",
			"as":           "person",
		}}},
		bson.D{{Key: "$unwind", Value: "$person"}},
		bson.D{{Key: "$sort", Value: bson.D{
			{Key: "group_id", Value: 1},
			{Key: "person.full_name_ci", Value: 1},
			{Key: "person._id", Value: 1},
		}}},
		bson.D{{Key: "$project", Value: bson.M{"group_id": 1, "person": "$person"}}},
	}

	cur, err := db.Collection("group_members").Aggregate(ctx, pipe)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []GroupMember{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ByGroup groups rows by group id, keeping row order.
func ByGroup(rows []GroupMember) map[primitive.ObjectID][]models.Person {
	out := make(map[primitive.ObjectID][]models.Person)
	for _, r := range rows {
		out[r.GroupID] = append(out[r.GroupID], r.Person)
	}
	return out
}
