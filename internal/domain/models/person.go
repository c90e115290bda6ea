// internal/domain/models/person.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Person roles.
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleStaff      = "staff"
)

// Person is a student or instructor on the roster.
//
// Expertise is decoded leniently (see TagSet). Term is set for students
// only and is re-keyed when a new term is activated. LoadCount is a
// denormalized count of expertise assignments and never goes below zero.
type Person struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName   string             `bson:"full_name" json:"full_name"`
	FullNameCI string             `bson:"full_name_ci" json:"-"`
	Role       string             `bson:"role" json:"role"`
	Expertise  TagSet             `bson:"expertise" json:"expertise"`
	Term       string             `bson:"term,omitempty" json:"term,omitempty"`
	LoadCount  int                `bson:"load_count" json:"load_count"`
	CreatedAt  time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `bson:"updated_at" json:"updated_at"`
}
