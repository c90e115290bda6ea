// internal/app/store/audit/store.go
package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Event categories
const (
	CategoryMapping = "mapping" // groups, class bindings, module mappings, expertise
	CategoryTerm    = "term"
)

// Mapping event types
const (
	EventGroupsReplaced      = "groups_replaced"
	EventGroupDeleted        = "group_deleted"
	EventClassBound          = "class_bound"
	EventClassUnbound        = "class_unbound"
	EventModuleMapped        = "module_mapped"
	EventModuleUnmapped      = "module_unmapped"
	EventExpertiseAssigned   = "expertise_assigned"
	EventExpertiseUnassigned = "expertise_unassigned"
)

// Term event types
const (
	EventTermCreated   = "term_created"
	EventTermActivated = "term_activated"
)

// Target types
const (
	TargetGroup  = "group"
	TargetClass  = "class"
	TargetModule = "module"
	TargetPerson = "person"
	TargetTerm   = "term"
)

// Event represents an audit event emitted after a successful mutation.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	RequestID string             `bson:"request_id,omitempty" json:"request_id,omitempty"`

	// Event classification
	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"event_type"`

	// Who (opaque, supplied by the identity collaborator)
	ActorID   string `bson:"actor_id" json:"actor_id"`
	ActorName string `bson:"actor_name,omitempty" json:"actor_name,omitempty"`

	// What
	TargetType string `bson:"target_type" json:"target_type"`
	TargetID   string `bson:"target_id" json:"target_id"`
	Term       string `bson:"term,omitempty" json:"term,omitempty"`
	Message    string `bson:"message" json:"message"`

	// Additional details (varies by event type)
	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	Term       string
	ActorID    string
	Category   string
	EventType  string
	TargetType string
	TargetID   string
	StartTime  *time.Time
	EndTime    *time.Time
	Limit      int64
	Offset     int64
}

// Store manages audit event records.
type Store struct {
	c *mongo.Collection
}

// New creates a new audit Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("audit_events")}
}

// EnsureIndexes creates necessary indexes for efficient querying.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{
				{Key: "term", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "target_type", Value: 1},
				{Key: "target_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "category", Value: 1},
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
	}
	_, err := s.c.Indexes().CreateMany(ctx, indexes)
	return err
}

// Log records an audit event.
func (s *Store) Log(ctx context.Context, event Event) error {
	if event.ID.IsZero() {
		event.ID = primitive.NewObjectID()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, event)
	return err
}

func buildQuery(filter QueryFilter) bson.M {
	query := bson.M{}
	if filter.Term != "" {
		query["term"] = filter.Term
	}
	if filter.ActorID != "" {
		query["actor_id"] = filter.ActorID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.EventType != "" {
		query["event_type"] = filter.EventType
	}
	if filter.TargetType != "" {
		query["target_type"] = filter.TargetType
	}
	if filter.TargetID != "" {
		query["target_id"] = filter.TargetID
	}
	if filter.StartTime != nil || filter.EndTime != nil {
		timeQuery := bson.M{}
		if filter.StartTime != nil {
			timeQuery["$gte"] = *filter.StartTime
		}
		if filter.EndTime != nil {
			timeQuery["$lte"] = *filter.EndTime
		}
		query["timestamp"] = timeQuery
	}
	return query
}

// Query retrieves audit events matching the given filter, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit).
		SetSkip(filter.Offset)

	cursor, err := s.c.Find(ctx, buildQuery(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	events := []Event{}
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// CountByFilter returns the count of events matching the filter.
func (s *Store) CountByFilter(ctx context.Context, filter QueryFilter) (int64, error) {
	return s.c.CountDocuments(ctx, buildQuery(filter))
}

// GetRecent retrieves the most recent audit events.
func (s *Store) GetRecent(ctx context.Context, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{Limit: limit})
}

// GetByTarget retrieves recent events for one target (a class, module, group...).
func (s *Store) GetByTarget(ctx context.Context, targetType, targetID string, limit int64) ([]Event, error) {
	return s.Query(ctx, QueryFilter{TargetType: targetType, TargetID: targetID, Limit: limit})
}
