// internal/domain/models/classbinding.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ClassBinding ties a named class to a set of student groups for a term.
//
// NOTE:
//   - The bound group names live in class_binding_groups, one row per
//     (binding, group). GroupNames is filled on read.
//   - A group name may be bound to at most one class per (term, kind);
//     a unique index on class_binding_groups enforces it.
type ClassBinding struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Term        string             `bson:"term" json:"term"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	Kind        string             `bson:"kind" json:"kind"`

	GroupNames []string `bson:"-" json:"group_names"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// ClassBindingGroup is one group linked to a class binding.
type ClassBindingGroup struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BindingID   primitive.ObjectID `bson:"binding_id" json:"binding_id"`
	Term        string             `bson:"term" json:"term"`
	Kind        string             `bson:"kind" json:"kind"`
	GroupName   string             `bson:"group_name" json:"group_name"`
	GroupNameCI string             `bson:"group_name_ci" json:"-"`
}
