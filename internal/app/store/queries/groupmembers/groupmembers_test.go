package groupmembers_test

import (
	"testing"

	groupstore "github.com/dalemusser/curriculum/internal/app/store/groups"
	"github.com/dalemusser/curriculum/internal/app/store/queries/groupmembers"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/domain/models"
	"github.com/dalemusser/curriculum/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func TestListByGroups(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	f := testutil.NewFixtures(t, db)
	f.CreateTerm(ctx, "2024/1", true)
	zed := f.CreateStudent(ctx, "Zed", "2024/1")
	amy := f.CreateStudent(ctx, "Amy", "2024/1")
	bob := f.CreateStudent(ctx, "Bob", "2024/1")

	res, err := groupstore.New(db, zap.NewNop(), nil).ReplaceGroups(ctx, actor.System, "2024/1", models.GroupSmall, []groupstore.GroupInput{
		{Name: "A", MemberIDs: []primitive.ObjectID{zed.ID, amy.ID}},
		{Name: "B", MemberIDs: []primitive.ObjectID{bob.ID}},
	})
	if err != nil {
		t.Fatalf("ReplaceGroups: %v", err)
	}
	a := res.Groups[0]

	rows, err := groupmembers.ListByGroups(ctx, db, []primitive.ObjectID{a.ID})
	if err != nil {
		t.Fatalf("ListByGroups: %v", err)
	}
	byGroup := groupmembers.ByGroup(rows)
	got := byGroup[a.ID]
	if len(got) != 2 || got[0].FullName != "Amy" || got[1].FullName != "Zed" {
		t.Errorf("A members: got %+v", got)
	}
	if len(byGroup) != 1 {
		t.Errorf("groups: got %d, want 1", len(byGroup))
	}
}
