package groupstore_test

import (
	"context"
	"errors"
	"testing"

	groupstore "github.com/dalemusser/curriculum/internal/app/store/groups"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/domain/models"
	"github.com/dalemusser/curriculum/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestFindMemberOverlaps(t *testing.T) {
	a, b, c, d := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	tests := []struct {
		name   string
		groups []groupstore.GroupInput
		want   []primitive.ObjectID
	}{
		{"disjoint", []groupstore.GroupInput{
			{Name: "A", MemberIDs: []primitive.ObjectID{a, b}},
			{Name: "B", MemberIDs: []primitive.ObjectID{c, d}},
		}, nil},
		{"repeat inside one group", []groupstore.GroupInput{
			{Name: "A", MemberIDs: []primitive.ObjectID{a, a}},
		}, nil},
		{"shared member", []groupstore.GroupInput{
			{Name: "A", MemberIDs: []primitive.ObjectID{a, b}},
			{Name: "B", MemberIDs: []primitive.ObjectID{b, c}},
			{Name: "C", MemberIDs: []primitive.ObjectID{b}},
		}, []primitive.ObjectID{b}},
		{"empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := groupstore.FindMemberOverlaps(tt.groups)
			if len(got) != len(tt.want) {
				t.Fatalf("overlaps: got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i].Hex() {
					t.Errorf("overlaps[%d]: got %s, want %s", i, got[i], tt.want[i].Hex())
				}
			}
		})
	}
}

func TestAttachMembers(t *testing.T) {
	g1, g2 := primitive.NewObjectID(), primitive.NewObjectID()
	p1, p2, p3 := primitive.NewObjectID(), primitive.NewObjectID(), primitive.NewObjectID()

	groups := []models.Group{{ID: g1, Name: "A"}, {ID: g2, Name: "B"}}
	rows := []models.GroupMember{
		{GroupID: g1, PersonID: p2},
		{GroupID: g1, PersonID: p1},
		{GroupID: primitive.NewObjectID(), PersonID: p3}, // stale row
	}

	out := groupstore.AttachMembers(groups, rows)
	if len(out[0].MemberIDs) != 2 || out[0].MemberIDs[0] != p2 || out[0].MemberIDs[1] != p1 {
		t.Errorf("A members: got %v, want [%v %v]", out[0].MemberIDs, p2, p1)
	}
	if out[1].MemberIDs == nil || len(out[1].MemberIDs) != 0 {
		t.Errorf("B members: got %v, want empty", out[1].MemberIDs)
	}
}

type env struct {
	store    *groupstore.Store
	fixtures *testutil.Fixtures
	students []models.Person
}

func setup(t *testing.T) (*env, context.Context, context.CancelFunc) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	f := testutil.NewFixtures(t, db)
	f.CreateTerm(ctx, "2024/1", true)
	f.CreateTerm(ctx, "2024/2", false)
	return &env{
		store:    groupstore.New(db, zap.NewNop(), nil),
		fixtures: f,
		students: f.CreateStudents(ctx, "S", "2024/1", 6),
	}, ctx, cancel
}

func ids(ps ...models.Person) []primitive.ObjectID {
	out := make([]primitive.ObjectID, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func TestStore_ReplaceGroups(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()
	s := e.students

	res, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "large", []groupstore.GroupInput{
		{Name: " A ", MemberIDs: ids(s[0], s[1])},
		{Name: "B", MemberIDs: ids(s[2], s[3], s[3])},
	})
	if err != nil {
		t.Fatalf("ReplaceGroups failed: %v", err)
	}
	if len(res.Groups) != 2 {
		t.Fatalf("groups: got %d, want 2", len(res.Groups))
	}

	got, err := e.store.GetByTerm(ctx, "2024/1", "large")
	if err != nil {
		t.Fatalf("GetByTerm failed: %v", err)
	}
	if len(got) != 2 || got[0].Name != "A" || got[1].Name != "B" {
		t.Fatalf("GetByTerm: got %+v", got)
	}
	if len(got[0].MemberIDs) != 2 {
		t.Errorf("A members: got %d, want 2", len(got[0].MemberIDs))
	}
	if len(got[1].MemberIDs) != 2 {
		t.Errorf("B members (deduplicated): got %d, want 2", len(got[1].MemberIDs))
	}

	// Second replace swaps the set entirely.
	_, err = e.store.ReplaceGroups(ctx, actor.System, "2024/1", "large", []groupstore.GroupInput{
		{Name: "C", MemberIDs: ids(s[0], s[2])},
	})
	if err != nil {
		t.Fatalf("second ReplaceGroups failed: %v", err)
	}
	names, err := e.store.NamesByTerm(ctx, "2024/1", "large")
	if err != nil {
		t.Fatalf("NamesByTerm failed: %v", err)
	}
	if len(names) != 1 || names[0] != "C" {
		t.Errorf("names: got %v, want [C]", names)
	}
}

func TestStore_ReplaceGroups_OverlapLeavesGroupsUnchanged(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()
	s := e.students

	if _, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "small", []groupstore.GroupInput{
		{Name: "A", MemberIDs: ids(s[0], s[1])},
	}); err != nil {
		t.Fatalf("seed ReplaceGroups failed: %v", err)
	}

	_, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "small", []groupstore.GroupInput{
		{Name: "X", MemberIDs: ids(s[2], s[3])},
		{Name: "Y", MemberIDs: ids(s[3], s[4])},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("overlap: got %v, want validation", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || len(ae.Names) != 1 || ae.Names[0] != s[3].ID.Hex() {
		t.Errorf("overlap names: got %v, want [%s]", err, s[3].ID.Hex())
	}

	names, err := e.store.NamesByTerm(ctx, "2024/1", "small")
	if err != nil {
		t.Fatalf("NamesByTerm failed: %v", err)
	}
	if len(names) != 1 || names[0] != "A" {
		t.Errorf("names after failed replace: got %v, want [A]", names)
	}
}

func TestStore_ReplaceGroups_Validation(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()
	s := e.students
	instructor := e.fixtures.CreateInstructor(ctx, "Dr. T")

	tests := []struct {
		name string
		term string
		kind string
		in   []groupstore.GroupInput
		want apperr.Kind
	}{
		{"bad kind", "2024/1", "medium", nil, apperr.KindValidation},
		{"blank term", " ", "small", nil, apperr.KindValidation},
		{"blank name", "2024/1", "small", []groupstore.GroupInput{{Name: " "}}, apperr.KindValidation},
		{"duplicate names", "2024/1", "small", []groupstore.GroupInput{{Name: "A"}, {Name: "a"}}, apperr.KindValidation},
		{"non-student member", "2024/1", "small", []groupstore.GroupInput{{Name: "A", MemberIDs: ids(s[0], instructor)}}, apperr.KindValidation},
		{"unknown term", "1999/1", "small", []groupstore.GroupInput{{Name: "A"}}, apperr.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.store.ReplaceGroups(ctx, actor.System, tt.term, tt.kind, tt.in)
			if !apperr.Is(err, tt.want) {
				t.Errorf("got %v, want %s", err, tt.want)
			}
		})
	}
}

func TestStore_ReplaceGroups_ExclusiveAcrossKinds(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()
	s := e.students

	if _, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "large", []groupstore.GroupInput{
		{Name: "L1", MemberIDs: ids(s[0], s[1])},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// Small against existing large.
	_, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "small", []groupstore.GroupInput{
		{Name: "S1", MemberIDs: ids(s[1], s[2])},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("small overlapping large: got %v, want validation", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || len(ae.Names) != 1 || ae.Names[0] != s[1].ID.Hex() {
		t.Errorf("overlap names: got %v, want [%s]", err, s[1].ID.Hex())
	}
	names, err := e.store.NamesByTerm(ctx, "2024/1", "small")
	if err != nil {
		t.Fatalf("NamesByTerm failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("small groups after failed replace: got %v, want none", names)
	}

	// Disjoint small groups are accepted.
	if _, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "small", []groupstore.GroupInput{
		{Name: "S1", MemberIDs: ids(s[2], s[3])},
	}); err != nil {
		t.Fatalf("disjoint small groups: %v", err)
	}

	// Large against existing small.
	_, err = e.store.ReplaceGroups(ctx, actor.System, "2024/1", "large", []groupstore.GroupInput{
		{Name: "L1", MemberIDs: ids(s[0], s[3])},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("large overlapping small: got %v, want validation", err)
	}
	large, err := e.store.GetByTerm(ctx, "2024/1", "large")
	if err != nil {
		t.Fatalf("GetByTerm failed: %v", err)
	}
	if len(large) != 1 || len(large[0].MemberIDs) != 2 {
		t.Errorf("large groups after failed replace: got %+v, want L1 with 2 members", large)
	}

	// The same student in another term is unaffected.
	if _, err := e.store.ReplaceGroups(ctx, actor.System, "2024/2", "small", []groupstore.GroupInput{
		{Name: "S1", MemberIDs: ids(s[0])},
	}); err != nil {
		t.Errorf("other term: %v", err)
	}
}

func TestStore_ReplaceGroups_UnlinksDroppedNames(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()
	db := e.fixtures.DB()
	s := e.students

	if _, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "small", []groupstore.GroupInput{
		{Name: "A", MemberIDs: ids(s[0])},
		{Name: "B", MemberIDs: ids(s[1])},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	for _, n := range []string{"a", "b"} {
		if _, err := db.Collection("module_mappings").InsertOne(ctx, bson.M{
			"term": "2024/1", "module_code": "BLK1", "group_name": n, "group_name_ci": n,
		}); err != nil {
			t.Fatalf("insert mapping: %v", err)
		}
	}

	res, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "small", []groupstore.GroupInput{
		{Name: "A", MemberIDs: ids(s[0], s[1])},
	})
	if err != nil {
		t.Fatalf("ReplaceGroups failed: %v", err)
	}
	if len(res.Dropped) != 1 || res.Dropped[0] != "B" {
		t.Errorf("Dropped: got %v, want [B]", res.Dropped)
	}

	n, err := db.Collection("module_mappings").CountDocuments(ctx, bson.M{"term": "2024/1"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("mappings left: got %d, want 1", n)
	}
}

func TestStore_DeleteGroup_Cascades(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()
	db := e.fixtures.DB()
	s := e.students

	res, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "large", []groupstore.GroupInput{
		{Name: "A", MemberIDs: ids(s[0], s[1])},
		{Name: "B", MemberIDs: ids(s[2])},
	})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	bindingID := primitive.NewObjectID()
	for _, n := range []string{"a", "b"} {
		if _, err := db.Collection("class_binding_groups").InsertOne(ctx, bson.M{
			"binding_id": bindingID, "term": "2024/1", "kind": "large", "group_name": n, "group_name_ci": n,
		}); err != nil {
			t.Fatalf("insert link: %v", err)
		}
	}

	if err := e.store.DeleteGroup(ctx, actor.System, res.Groups[0].ID); err != nil {
		t.Fatalf("DeleteGroup failed: %v", err)
	}

	links, err := db.Collection("class_binding_groups").CountDocuments(ctx, bson.M{"binding_id": bindingID})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if links != 1 {
		t.Errorf("links left: got %d, want 1", links)
	}
	members, err := db.Collection("group_members").CountDocuments(ctx, bson.M{"group_id": res.Groups[0].ID})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if members != 0 {
		t.Errorf("members left: got %d, want 0", members)
	}

	if err := e.store.DeleteGroup(ctx, actor.System, res.Groups[0].ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("second delete: got %v, want not found", err)
	}
}

func TestStore_GetByNames(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()
	s := e.students

	if _, err := e.store.ReplaceGroups(ctx, actor.System, "2024/1", "small", []groupstore.GroupInput{
		{Name: "Alpha", MemberIDs: ids(s[0])},
		{Name: "Beta", MemberIDs: ids(s[1])},
	}); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	got, err := e.store.GetByNames(ctx, "2024/1", "", []string{"ALPHA", "gamma"})
	if err != nil {
		t.Fatalf("GetByNames failed: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Alpha" || len(got[0].MemberIDs) != 1 {
		t.Errorf("GetByNames: got %+v", got)
	}
}
