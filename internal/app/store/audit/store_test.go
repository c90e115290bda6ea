package audit_test

import (
	"testing"
	"time"

	"github.com/dalemusser/curriculum/internal/app/store/audit"
	"github.com/dalemusser/curriculum/internal/testutil"
)

func TestStore_Log(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	event := audit.Event{
		Category:   audit.CategoryMapping,
		EventType:  audit.EventClassBound,
		ActorID:    "u-17",
		TargetType: audit.TargetClass,
		TargetID:   "X",
		Term:       "2024/1",
		Message:    "bound 1 group(s)",
	}

	if err := store.Log(ctx, event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	events, err := store.GetByTarget(ctx, audit.TargetClass, "X", 10)
	if err != nil {
		t.Fatalf("GetByTarget failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].ActorID != "u-17" {
		t.Errorf("ActorID: got %q, want %q", events[0].ActorID, "u-17")
	}
	if events[0].ID.IsZero() {
		t.Error("expected ID to be auto-generated")
	}
}

func TestStore_Log_AutoSetsTimestamp(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	before := time.Now().Add(-time.Second)
	if err := store.Log(ctx, audit.Event{Category: audit.CategoryTerm, EventType: audit.EventTermCreated}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	after := time.Now().Add(time.Second)

	events, err := store.GetRecent(ctx, 10)
	if err != nil {
		t.Fatalf("GetRecent failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ts := events[0].Timestamp
	if ts.Before(before) || ts.After(after) {
		t.Errorf("timestamp %v not between %v and %v", ts, before, after)
	}
}

func TestStore_Query_Filters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	seed := []audit.Event{
		{Category: audit.CategoryMapping, EventType: audit.EventClassBound, Term: "2024/1", ActorID: "a"},
		{Category: audit.CategoryMapping, EventType: audit.EventModuleMapped, Term: "2024/1", ActorID: "b"},
		{Category: audit.CategoryMapping, EventType: audit.EventClassBound, Term: "2024/2", ActorID: "a"},
		{Category: audit.CategoryTerm, EventType: audit.EventTermActivated, Term: "2024/2", ActorID: "a"},
	}
	for _, e := range seed {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter audit.QueryFilter
		want   int
	}{
		{"all", audit.QueryFilter{}, 4},
		{"by term", audit.QueryFilter{Term: "2024/1"}, 2},
		{"by actor", audit.QueryFilter{ActorID: "a"}, 3},
		{"by category", audit.QueryFilter{Category: audit.CategoryTerm}, 1},
		{"by event type", audit.QueryFilter{EventType: audit.EventClassBound}, 2},
		{"combined", audit.QueryFilter{Term: "2024/2", EventType: audit.EventClassBound}, 1},
		{"limit", audit.QueryFilter{Limit: 2}, 2},
		{"offset", audit.QueryFilter{Offset: 3}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events, err := store.Query(ctx, tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(events) != tt.want {
				t.Errorf("got %d events, want %d", len(events), tt.want)
			}
		})
	}
}

func TestStore_Query_ByTimeRange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	now := time.Now().UTC()
	old := now.Add(-48 * time.Hour)
	if err := store.Log(ctx, audit.Event{Category: audit.CategoryMapping, Timestamp: old}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}
	if err := store.Log(ctx, audit.Event{Category: audit.CategoryMapping, Timestamp: now}); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	start := now.Add(-time.Hour)
	events, err := store.Query(ctx, audit.QueryFilter{StartTime: &start})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(events) != 1 {
		t.Errorf("got %d events, want 1", len(events))
	}
}

func TestStore_CountByFilter(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := store.Log(ctx, audit.Event{Category: audit.CategoryMapping, Term: "2024/1"}); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	n, err := store.CountByFilter(ctx, audit.QueryFilter{Term: "2024/1"})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 3 {
		t.Errorf("count: got %d, want 3", n)
	}

	n, err = store.CountByFilter(ctx, audit.QueryFilter{Term: "1999/1"})
	if err != nil {
		t.Fatalf("CountByFilter failed: %v", err)
	}
	if n != 0 {
		t.Errorf("count: got %d, want 0", n)
	}
}

func TestStore_EnsureIndexes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := audit.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes failed: %v", err)
	}
	// Idempotent
	if err := store.EnsureIndexes(ctx); err != nil {
		t.Fatalf("second EnsureIndexes failed: %v", err)
	}
}
