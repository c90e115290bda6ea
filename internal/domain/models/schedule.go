// internal/domain/models/schedule.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Schedule target types.
const (
	TargetModule = "module"
	TargetClass  = "class"
)

// ScheduleEntry is one dated session for a module or a class.
// StartTime and EndTime are stored as "HH:MM:SS".
type ScheduleEntry struct {
	ID            primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Term          string               `bson:"term" json:"term"`
	TargetType    string               `bson:"target_type" json:"target_type"`
	TargetCode    string               `bson:"target_code" json:"target_code"`
	Date          string               `bson:"date" json:"date"` // YYYY-MM-DD
	StartTime     string               `bson:"start_time" json:"start_time"`
	EndTime       string               `bson:"end_time" json:"end_time"`
	RoomID        *primitive.ObjectID  `bson:"room_id,omitempty" json:"room_id,omitempty"`
	Topic         string               `bson:"topic,omitempty" json:"topic,omitempty"`
	InstructorIDs []primitive.ObjectID `bson:"instructor_ids,omitempty" json:"instructor_ids,omitempty"`
	CreatedAt     time.Time            `bson:"created_at" json:"created_at"`
}

// Room is a teaching space.
type Room struct {
	ID       primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name     string             `bson:"name" json:"name"`
	Capacity int                `bson:"capacity" json:"capacity"`
}

// TimeSlot is a named period of the teaching day ("Session 1", 07.30-09.10).
type TimeSlot struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Label string             `bson:"label" json:"label"`
	Start string             `bson:"start" json:"start"`
	End   string             `bson:"end" json:"end"`
	Order int                `bson:"order" json:"order"`
}
