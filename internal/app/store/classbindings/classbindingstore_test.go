package classbindingstore_test

import (
	"context"
	"errors"
	"testing"

	classbindingstore "github.com/dalemusser/curriculum/internal/app/store/classbindings"
	groupstore "github.com/dalemusser/curriculum/internal/app/store/groups"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/domain/models"
	"github.com/dalemusser/curriculum/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestAttachGroupNames(t *testing.T) {
	b1, b2 := primitive.NewObjectID(), primitive.NewObjectID()
	bs := []models.ClassBinding{{ID: b1, Name: "X"}, {ID: b2, Name: "Y"}}
	rows := []models.ClassBindingGroup{
		{BindingID: b1, GroupName: "A"},
		{BindingID: b1, GroupName: "C"},
	}

	out := classbindingstore.AttachGroupNames(bs, rows)
	if len(out[0].GroupNames) != 2 || out[0].GroupNames[0] != "A" || out[0].GroupNames[1] != "C" {
		t.Errorf("X groups: got %v, want [A C]", out[0].GroupNames)
	}
	if out[1].GroupNames == nil || len(out[1].GroupNames) != 0 {
		t.Errorf("Y groups: got %v, want empty", out[1].GroupNames)
	}
}

type env struct {
	store    *classbindingstore.Store
	groups   *groupstore.Store
	fixtures *testutil.Fixtures
}

// setup seeds term 2024/1 with large groups A:[s0,s1] and B:[s2,s3].
func setup(t *testing.T) (*env, context.Context, context.CancelFunc) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	f := testutil.NewFixtures(t, db)
	f.CreateTerm(ctx, "2024/1", true)
	f.CreateTerm(ctx, "2024/2", false)
	s := f.CreateStudents(ctx, "S", "2024/1", 4)

	groups := groupstore.New(db, zap.NewNop(), nil)
	_, err := groups.ReplaceGroups(ctx, actor.System, "2024/1", models.GroupLarge, []groupstore.GroupInput{
		{Name: "A", MemberIDs: []primitive.ObjectID{s[0].ID, s[1].ID}},
		{Name: "B", MemberIDs: []primitive.ObjectID{s[2].ID, s[3].ID}},
	})
	if err != nil {
		cancel()
		t.Fatalf("seed groups: %v", err)
	}
	return &env{
		store:    classbindingstore.New(db, zap.NewNop(), nil),
		groups:   groups,
		fixtures: f,
	}, ctx, cancel
}

func TestStore_Bind_Exclusive(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	x, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "X", GroupNames: []string{"a"},
	})
	if err != nil {
		t.Fatalf("bind X: %v", err)
	}
	if x.Kind != models.GroupLarge {
		t.Errorf("kind: got %q, want %q", x.Kind, models.GroupLarge)
	}
	if len(x.GroupNames) != 1 || x.GroupNames[0] != "A" {
		t.Errorf("X groups: got %v, want [A] (stored spelling)", x.GroupNames)
	}

	_, err = e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "Y", GroupNames: []string{"A"},
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("bind Y to A: got %v, want conflict", err)
	}
	var ae *apperr.Error
	if !errors.As(err, &ae) || len(ae.Names) != 1 || ae.Names[0] != "A" {
		t.Errorf("conflict names: got %v, want [A]", err)
	}

	if _, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "Y", GroupNames: []string{"B"},
	}); err != nil {
		t.Fatalf("bind Y to B: %v", err)
	}

	list, err := e.store.ListByTerm(ctx, "2024/1")
	if err != nil {
		t.Fatalf("ListByTerm: %v", err)
	}
	if len(list) != 2 || list[0].Name != "X" || list[1].Name != "Y" {
		t.Fatalf("ListByTerm: got %+v", list)
	}
	if len(list[1].GroupNames) != 1 || list[1].GroupNames[0] != "B" {
		t.Errorf("Y groups: got %v, want [B]", list[1].GroupNames)
	}
}

func TestStore_Bind_Failures(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	if _, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "X", GroupNames: []string{"A"},
	}); err != nil {
		t.Fatalf("bind X: %v", err)
	}

	tests := []struct {
		name string
		in   classbindingstore.BindInput
		want apperr.Kind
	}{
		{"missing class name", classbindingstore.BindInput{Term: "2024/1", GroupNames: []string{"B"}}, apperr.KindValidation},
		{"missing term", classbindingstore.BindInput{ClassName: "Z", GroupNames: []string{"B"}}, apperr.KindValidation},
		{"bad kind", classbindingstore.BindInput{Term: "2024/1", ClassName: "Z", Kind: "huge"}, apperr.KindValidation},
		{"no groups in term", classbindingstore.BindInput{Term: "2024/2", ClassName: "Z", GroupNames: []string{"A"}}, apperr.KindValidation},
		{"unknown group", classbindingstore.BindInput{Term: "2024/1", ClassName: "Z", GroupNames: []string{"B", "Q"}}, apperr.KindValidation},
		{"duplicate class name", classbindingstore.BindInput{Term: "2024/1", ClassName: "x", GroupNames: []string{"B"}}, apperr.KindConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.store.Bind(ctx, actor.System, tt.in)
			if got := apperr.KindOf(err); got != tt.want {
				t.Errorf("kind: got %v, want %v (err=%v)", got, tt.want, err)
			}
		})
	}
}

func TestStore_Bind_ReplacesGroupsAtomically(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	x, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "X", GroupNames: []string{"A"},
	})
	if err != nil {
		t.Fatalf("bind X: %v", err)
	}
	if _, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "Y", GroupNames: []string{"B"},
	}); err != nil {
		t.Fatalf("bind Y: %v", err)
	}

	// Moving X onto B fails and leaves A linked.
	_, err = e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		BindingID: &x.ID, ClassName: "X", GroupNames: []string{"B"},
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("rebind onto B: got %v, want conflict", err)
	}
	got, err := e.store.Get(ctx, x.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.GroupNames) != 1 || got.GroupNames[0] != "A" {
		t.Errorf("X groups after failed rebind: got %v, want [A]", got.GroupNames)
	}

	// Rebinding to its own group and renaming is allowed.
	upd, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		BindingID: &x.ID, ClassName: "X2", Description: "lecture", GroupNames: []string{"A"},
	})
	if err != nil {
		t.Fatalf("rebind X: %v", err)
	}
	if upd.ID != x.ID || upd.Name != "X2" {
		t.Errorf("rebind: got %+v", upd)
	}
	byName, err := e.store.GetByName(ctx, "2024/1", "x2")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if byName.ID != x.ID || byName.Description != "lecture" {
		t.Errorf("GetByName: got %+v", byName)
	}

	// Clearing the list releases A.
	if _, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		BindingID: &x.ID, ClassName: "X2",
	}); err != nil {
		t.Fatalf("clear X: %v", err)
	}
	if _, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "Z", GroupNames: []string{"A"},
	}); err != nil {
		t.Errorf("bind Z to released A: %v", err)
	}
}

func TestStore_Unbind(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	x, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "X", GroupNames: []string{"A", "B"},
	})
	if err != nil {
		t.Fatalf("bind X: %v", err)
	}
	if err := e.store.Unbind(ctx, actor.System, x.ID); err != nil {
		t.Fatalf("Unbind: %v", err)
	}
	if _, err := e.store.Get(ctx, x.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("Get after unbind: got %v, want not found", err)
	}
	if err := e.store.Unbind(ctx, actor.System, x.ID); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("second Unbind: got %v, want not found", err)
	}
	if _, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "Y", GroupNames: []string{"A", "B"},
	}); err != nil {
		t.Errorf("bind Y after unbind: %v", err)
	}
}

func TestStore_Bind_GroupDeleteReleasesLink(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	if _, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "X", GroupNames: []string{"A"},
	}); err != nil {
		t.Fatalf("bind X: %v", err)
	}
	gs, err := e.groups.GetByNames(ctx, "2024/1", models.GroupLarge, []string{"A"})
	if err != nil || len(gs) != 1 {
		t.Fatalf("GetByNames: %v %v", gs, err)
	}
	if err := e.groups.DeleteGroup(ctx, actor.System, gs[0].ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	x, err := e.store.GetByName(ctx, "2024/1", "X")
	if err != nil {
		t.Fatalf("GetByName: %v", err)
	}
	if len(x.GroupNames) != 0 {
		t.Errorf("X groups after delete: got %v, want none", x.GroupNames)
	}
}

func TestStore_Bind_UpdateKeepsKind(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	s := e.fixtures.CreateStudents(ctx, "T", "2024/1", 2)
	if _, err := e.groups.ReplaceGroups(ctx, actor.System, "2024/1", models.GroupSmall, []groupstore.GroupInput{
		{Name: "S1", MemberIDs: []primitive.ObjectID{s[0].ID}},
		{Name: "S2", MemberIDs: []primitive.ObjectID{s[1].ID}},
	}); err != nil {
		t.Fatalf("seed small groups: %v", err)
	}

	x, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "Tutorial", Kind: models.GroupSmall, GroupNames: []string{"S1"},
	})
	if err != nil {
		t.Fatalf("bind small: %v", err)
	}

	// An update that leaves kind out keeps the stored kind.
	upd, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		BindingID: &x.ID, ClassName: "Tutorial", GroupNames: []string{"S1", "S2"},
	})
	if err != nil {
		t.Fatalf("update without kind: %v", err)
	}
	if upd.Kind != models.GroupSmall {
		t.Errorf("kind after update: got %q, want %q", upd.Kind, models.GroupSmall)
	}
	got, err := e.store.Get(ctx, x.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Kind != models.GroupSmall || len(got.GroupNames) != 2 {
		t.Errorf("stored binding: got kind %q groups %v, want small [S1 S2]", got.Kind, got.GroupNames)
	}

	// A new binding without kind still defaults to large.
	y, err := e.store.Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "Lecture", GroupNames: []string{"A"},
	})
	if err != nil {
		t.Fatalf("bind large: %v", err)
	}
	if y.Kind != models.GroupLarge {
		t.Errorf("default kind: got %q, want %q", y.Kind, models.GroupLarge)
	}
}

func TestStore_Bind_MissingGroupMessages(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	tests := []struct {
		name string
		in   classbindingstore.BindInput
		want string
	}{
		{"term without groups", classbindingstore.BindInput{Term: "2024/2", ClassName: "Z", GroupNames: []string{"A"}}, "no groups exist"},
		{"no groups of that kind", classbindingstore.BindInput{Term: "2024/1", ClassName: "Z", Kind: models.GroupSmall, GroupNames: []string{"A"}}, "groups not found"},
		{"unknown name", classbindingstore.BindInput{Term: "2024/1", ClassName: "Z", GroupNames: []string{"Q"}}, "groups not found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.store.Bind(ctx, actor.System, tt.in)
			var ae *apperr.Error
			if !errors.As(err, &ae) || ae.Kind != apperr.KindValidation {
				t.Fatalf("got %v, want validation", err)
			}
			if ae.Message != tt.want {
				t.Errorf("message: got %q, want %q", ae.Message, tt.want)
			}
		})
	}
}
