// internal/domain/models/term.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Term is an academic period. Groups, bindings and mappings are keyed by
// Code. At most one term is active; a partial unique index enforces it.
type Term struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code      string             `bson:"code" json:"code"` // e.g. "2024/1"
	Label     string             `bson:"label" json:"label"`
	IsActive  bool               `bson:"is_active" json:"is_active"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}
