// internal/domain/models/module.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Module categories.
const (
	CategoryBlock = "block"
	CategoryPBL   = "pbl"
	CategoryCSR   = "csr"
	CategorySkill = "skill"
)

// ValidCategory reports whether c is a known module category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryBlock, CategoryPBL, CategoryCSR, CategorySkill:
		return true
	}
	return false
}

// Module is a catalogue entry. Only block modules accept group mappings.
type Module struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code      string             `bson:"code" json:"code"`
	Name      string             `bson:"name" json:"name"`
	Category  string             `bson:"category" json:"category"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at" json:"updated_at"`
}

// ModuleMapping links a block module to one small group for a term.
// A group is mapped to at most one module per term.
type ModuleMapping struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Term        string             `bson:"term" json:"term"`
	ModuleCode  string             `bson:"module_code" json:"module_code"`
	GroupName   string             `bson:"group_name" json:"group_name"`
	GroupNameCI string             `bson:"group_name_ci" json:"-"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
}

// ExpertiseAssignment records an instructor teaching a module under one
// expertise tag. Unique per (module_id, person_id, tag_ci).
type ExpertiseAssignment struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ModuleID  primitive.ObjectID `bson:"module_id" json:"module_id"`
	PersonID  primitive.ObjectID `bson:"person_id" json:"person_id"`
	Tag       string             `bson:"tag" json:"tag"`
	TagCI     string             `bson:"tag_ci" json:"-"`
	CreatedBy string             `bson:"created_by,omitempty" json:"created_by,omitempty"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`
}
