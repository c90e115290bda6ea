// internal/domain/models/group.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Group kinds.
const (
	GroupSmall = "small" // seminar-style modules (PBL, block sub-courses)
	GroupLarge = "large" // lecture-style classes
)

// ValidGroupKind reports whether k is a known group kind.
func ValidGroupKind(k string) bool {
	return k == GroupSmall || k == GroupLarge
}

// Group is a named set of students inside one term.
//
// NOTE:
//   - Members are not stored on the group document. The group_members
//     collection is the authoritative join; MemberIDs is filled on read.
//   - Names are unique per (term, kind), compared on NameCI.
type Group struct {
	ID     primitive.ObjectID `bson:"_id" json:"id"`
	Term   string             `bson:"term" json:"term"`
	Kind   string             `bson:"kind" json:"kind"`
	Name   string             `bson:"name" json:"name"`
	NameCI string             `bson:"name_ci" json:"-"`

	MemberIDs []primitive.ObjectID `bson:"-" json:"member_ids"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// GroupMember places one student in one group.
// Exactly one document per (term, kind, person_id).
type GroupMember struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	GroupID   primitive.ObjectID `bson:"group_id" json:"group_id"`
	Term      string             `bson:"term" json:"term"`
	Kind      string             `bson:"kind" json:"kind"`
	PersonID  primitive.ObjectID `bson:"person_id" json:"person_id"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
