package auditlog

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	apierrors "github.com/dalemusser/curriculum/internal/app/features/errors"
	"github.com/dalemusser/curriculum/internal/app/store/audit"
	"github.com/dalemusser/curriculum/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func TestParseFilter(t *testing.T) {
	q := url.Values{
		"term":       {" 2024/1 "},
		"page":       {"3"},
		"start_date": {"2024-02-01"},
		"end_date":   {"2024-02-01"},
	}
	f, page, err := parseFilter(q)
	if err != nil {
		t.Fatalf("parseFilter: %v", err)
	}
	if page != 3 || f.Offset != 100 || f.Limit != pageSize {
		t.Errorf("paging: got page=%d offset=%d limit=%d", page, f.Offset, f.Limit)
	}
	if f.Term != "2024/1" {
		t.Errorf("term: got %q, want 2024/1", f.Term)
	}
	if f.StartTime == nil || f.EndTime == nil || f.EndTime.Sub(*f.StartTime) >= 24*time.Hour {
		t.Errorf("dates: got %v..%v", f.StartTime, f.EndTime)
	}

	if _, page, _ := parseFilter(url.Values{"page": {"-2"}}); page != 1 {
		t.Errorf("bad page: got %d, want 1", page)
	}
	if _, _, err := parseFilter(url.Values{"start_date": {"Feb 1"}}); err == nil {
		t.Error("bad start_date: expected error")
	}
}

func TestServeList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	logger := zap.NewNop()

	store := audit.New(db)
	for _, e := range []audit.Event{
		{Category: audit.CategoryMapping, EventType: audit.EventClassBound, Term: "2024/1", ActorID: "a", TargetType: audit.TargetClass, TargetID: "c1"},
		{Category: audit.CategoryMapping, EventType: audit.EventModuleMapped, Term: "2024/1", ActorID: "b", TargetType: audit.TargetModule, TargetID: "B1"},
		{Category: audit.CategoryTerm, EventType: audit.EventTermActivated, Term: "2024/2", ActorID: "a", TargetType: audit.TargetTerm, TargetID: "2024/2"},
	} {
		if err := store.Log(ctx, e); err != nil {
			t.Fatalf("Log: %v", err)
		}
	}

	r := chi.NewRouter()
	Register(r, NewHandler(db, apierrors.NewErrorLogger(logger), logger))

	tests := []struct {
		name   string
		query  string
		status int
		total  int64
	}{
		{"all", "", http.StatusOK, 3},
		{"by term", "?term=2024%2F1", http.StatusOK, 2},
		{"by target", "?target_type=module&target_id=B1", http.StatusOK, 1},
		{"by category", "?category=term", http.StatusOK, 1},
		{"bad date", "?end_date=yesterday", http.StatusBadRequest, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := testutil.NewRecorder()
			r.ServeHTTP(rec, testutil.NewRequest("GET", "/audit-events"+tt.query))
			rec.AssertStatus(t, tt.status)
			if tt.status != http.StatusOK {
				return
			}
			var body listResponse
			rec.DecodeJSON(t, &body)
			if body.Total != tt.total || int64(len(body.Events)) != tt.total {
				t.Errorf("events: got total=%d len=%d, want %d", body.Total, len(body.Events), tt.total)
			}
		})
	}
}
