package batchview_test

import (
	"context"
	"reflect"
	"testing"

	classbindingstore "github.com/dalemusser/curriculum/internal/app/store/classbindings"
	expertisestore "github.com/dalemusser/curriculum/internal/app/store/expertise"
	groupstore "github.com/dalemusser/curriculum/internal/app/store/groups"
	mappingstore "github.com/dalemusser/curriculum/internal/app/store/modulemappings"
	"github.com/dalemusser/curriculum/internal/app/store/queries/batchview"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/domain/models"
	"github.com/dalemusser/curriculum/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestSplitGroupViews(t *testing.T) {
	g1 := batchview.GroupView{ID: primitive.NewObjectID(), Name: "G1"}
	g2 := batchview.GroupView{ID: primitive.NewObjectID(), Name: "G2"}
	mapped := map[string][]string{
		"B1": {"g1", "Deleted"},
		"B2": {"G2"},
		"B3": {},
	}
	got := batchview.SplitGroupViews(mapped, []batchview.GroupView{g1, g2})
	if len(got["B1"]) != 1 || got["B1"][0].ID != g1.ID {
		t.Errorf("B1: got %+v, want [G1]", got["B1"])
	}
	if len(got["B2"]) != 1 || got["B2"][0].ID != g2.ID {
		t.Errorf("B2: got %+v, want [G2]", got["B2"])
	}
	if got["B3"] == nil || len(got["B3"]) != 0 {
		t.Errorf("B3: got %v, want empty", got["B3"])
	}
}

func TestMissingCodes(t *testing.T) {
	found := []models.Module{{Code: "B1"}, {Code: "B2"}}
	got := batchview.MissingCodes([]string{"B1", " X ", "B2", "X", "", "Y"}, found)
	want := []string{"X", "Y"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("missing: got %v, want %v", got, want)
	}
}

type env struct {
	db  *mongo.Database
	a   *batchview.Assembler
	b1  models.Module
	csr models.Module
}

// setup builds term 2024/1 with small groups G1:[Amy,Bob] and G2:[Cy],
// large group L:[Dee,Eve,Fay], block modules B1 (mapped to G1) and B2
// (mapped to G2), class Lecture bound to L, two instructors (one standby
// stored as a legacy string) and some schedule rows.
func setup(t *testing.T) (*env, context.Context, context.CancelFunc) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	f := testutil.NewFixtures(t, db)
	log := zap.NewNop()

	f.CreateTerm(ctx, "2024/1", true)
	amy := f.CreateStudent(ctx, "Amy", "2024/1")
	bob := f.CreateStudent(ctx, "Bob", "2024/1")
	cy := f.CreateStudent(ctx, "Cy", "2024/1")
	dee := f.CreateStudent(ctx, "Dee", "2024/1")
	eve := f.CreateStudent(ctx, "Eve", "2024/1")
	fay := f.CreateStudent(ctx, "Fay", "2024/1")
	b1 := f.CreateModule(ctx, "B1", "Block 1", models.CategoryBlock)
	f.CreateModule(ctx, "B2", "Block 2", models.CategoryBlock)
	csr := f.CreateModule(ctx, "CSR01", "Clinical Reasoning", models.CategoryCSR)
	regular := f.CreateInstructor(ctx, "Dr. Regular", "Anatomy")
	f.CreateRawPerson(ctx, map[string]interface{}{
		"full_name": "Dr. Reserve",
		"role":      models.RoleInstructor,
		"expertise": "Anatomy, STANDBY",
	})
	f.CreateRoom(ctx, "Hall", 200)
	f.CreateTimeSlot(ctx, "Session 1", "07:30:00", "09:10:00", 1)
	f.CreateScheduleEntry(ctx, models.ScheduleEntry{
		Term: "2024/1", TargetType: models.TargetModule, TargetCode: "B1",
		Date: "2024-02-01", StartTime: "09:50:00", EndTime: "11:30:00",
	})
	f.CreateScheduleEntry(ctx, models.ScheduleEntry{
		Term: "2024/1", TargetType: models.TargetClass, TargetCode: "Lecture",
		Date: "2024-02-01", StartTime: "13.00", EndTime: "14.40",
	})

	fail := func(what string, err error) {
		cancel()
		t.Fatalf("%s: %v", what, err)
	}
	groups := groupstore.New(db, log, nil)
	if _, err := groups.ReplaceGroups(ctx, actor.System, "2024/1", models.GroupSmall, []groupstore.GroupInput{
		{Name: "G1", MemberIDs: []primitive.ObjectID{amy.ID, bob.ID}},
		{Name: "G2", MemberIDs: []primitive.ObjectID{cy.ID}},
	}); err != nil {
		fail("small groups", err)
	}
	if _, err := groups.ReplaceGroups(ctx, actor.System, "2024/1", models.GroupLarge, []groupstore.GroupInput{
		{Name: "L", MemberIDs: []primitive.ObjectID{dee.ID, eve.ID, fay.ID}},
	}); err != nil {
		fail("large groups", err)
	}
	mappings := mappingstore.New(db, log, nil)
	if _, err := mappings.MapModule(ctx, actor.System, "2024/1", "B1", []string{"G1"}); err != nil {
		fail("map B1", err)
	}
	if _, err := mappings.MapModule(ctx, actor.System, "2024/1", "B2", []string{"G2"}); err != nil {
		fail("map B2", err)
	}
	if _, err := classbindingstore.New(db, log, nil).Bind(ctx, actor.System, classbindingstore.BindInput{
		Term: "2024/1", ClassName: "Lecture", GroupNames: []string{"L"},
	}); err != nil {
		fail("bind Lecture", err)
	}
	if _, err := expertisestore.New(db, log, nil).Assign(ctx, actor.System, b1.ID, regular.ID, "Anatomy"); err != nil {
		fail("assign", err)
	}

	return &env{db: db, a: batchview.New(db, log), b1: b1, csr: csr}, ctx, cancel
}

func TestAssembler_ModuleDetail(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	v, err := e.a.ModuleDetail(ctx, "2024/1", "B1")
	if err != nil {
		t.Fatalf("ModuleDetail: %v", err)
	}
	if len(v.Degraded) != 0 {
		t.Errorf("degraded: got %v, want none", v.Degraded)
	}
	if len(v.Groups) != 1 || v.Groups[0].Name != "G1" || len(v.Groups[0].Members) != 2 {
		t.Fatalf("groups: got %+v", v.Groups)
	}
	if v.Groups[0].Members[0].FullName != "Amy" {
		t.Errorf("first member: got %s, want Amy", v.Groups[0].Members[0].FullName)
	}
	if len(v.Expertise) != 1 || v.Expertise[0].LoadCount != 1 {
		t.Errorf("expertise: got %+v", v.Expertise)
	}
	if len(v.Instructors.Regular) != 1 || v.Instructors.Regular[0].FullName != "Dr. Regular" {
		t.Errorf("regular: got %+v", v.Instructors.Regular)
	}
	if len(v.Instructors.Standby) != 1 || v.Instructors.Standby[0].FullName != "Dr. Reserve" {
		t.Errorf("standby: got %+v", v.Instructors.Standby)
	}
	if len(v.Schedule) != 1 || v.Schedule[0].StartTime != "09.50" || v.Schedule[0].EndTime != "11.30" {
		t.Errorf("schedule: got %+v", v.Schedule)
	}
	if len(v.Rooms) != 1 || len(v.TimeSlots) != 1 || v.TimeSlots[0].Start != "07.30" {
		t.Errorf("lookups: got %+v", v.Lookups)
	}
}

func TestAssembler_ModuleDetail_NotFound(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	if _, err := e.a.ModuleDetail(ctx, "2024/1", "NOPE"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("ModuleDetail: got %v, want not found", err)
	}
	if _, err := e.a.ClassDetail(ctx, "2024/1", "Nope"); !apperr.Is(err, apperr.KindNotFound) {
		t.Errorf("ClassDetail: got %v, want not found", err)
	}
}

func TestAssembler_ModuleDetail_DegradesBrokenSection(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	// start_time as a document cannot decode into the entry type.
	_, err := e.db.Collection("schedule_entries").InsertOne(ctx, bson.M{
		"term": "2024/1", "target_type": models.TargetModule, "target_code": "B1",
		"date": "2024-02-02", "start_time": bson.M{"h": 9},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	v, err := e.a.ModuleDetail(ctx, "2024/1", "B1")
	if err != nil {
		t.Fatalf("ModuleDetail: %v", err)
	}
	if !reflect.DeepEqual(v.Degraded, []string{batchview.SectionSchedule}) {
		t.Errorf("degraded: got %v, want [schedule]", v.Degraded)
	}
	if v.Schedule == nil || len(v.Schedule) != 0 {
		t.Errorf("schedule: got %v, want empty", v.Schedule)
	}
	if len(v.Groups) != 1 {
		t.Errorf("groups still assembled: got %d, want 1", len(v.Groups))
	}
}

func TestAssembler_ClassDetail(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	v, err := e.a.ClassDetail(ctx, "2024/1", "lecture")
	if err != nil {
		t.Fatalf("ClassDetail: %v", err)
	}
	if v.Class.Name != "Lecture" {
		t.Errorf("class: got %q", v.Class.Name)
	}
	if len(v.Groups) != 1 || v.Groups[0].Kind != models.GroupLarge || len(v.Groups[0].Members) != 3 {
		t.Errorf("groups: got %+v", v.Groups)
	}
	if len(v.Schedule) != 1 || v.Schedule[0].StartTime != "13.00" {
		t.Errorf("schedule: got %+v", v.Schedule)
	}
}

func TestAssembler_BatchMatchesSingle(t *testing.T) {
	e, ctx, cancel := setup(t)
	defer cancel()

	batch, err := e.a.BatchModuleDetails(ctx, "2024/1", []string{"B1", "B2", "CSR01", "GONE"})
	if err != nil {
		t.Fatalf("BatchModuleDetails: %v", err)
	}
	if !reflect.DeepEqual(batch.Missing, []string{"GONE"}) {
		t.Errorf("missing: got %v, want [GONE]", batch.Missing)
	}
	if len(batch.Modules) != 3 {
		t.Fatalf("modules: got %d, want 3", len(batch.Modules))
	}
	for _, code := range []string{"B1", "B2", "CSR01"} {
		single, err := e.a.ModuleDetail(ctx, "2024/1", code)
		if err != nil {
			t.Fatalf("ModuleDetail(%s): %v", code, err)
		}
		got := batch.Modules[code]
		if !reflect.DeepEqual(groupNames(got.Groups), groupNames(single.Groups)) {
			t.Errorf("%s groups: got %v, want %v", code, groupNames(got.Groups), groupNames(single.Groups))
		}
		if len(got.Expertise) != len(single.Expertise) {
			t.Errorf("%s expertise: got %d, want %d", code, len(got.Expertise), len(single.Expertise))
		}
		if len(got.Schedule) != len(single.Schedule) {
			t.Errorf("%s schedule: got %d, want %d", code, len(got.Schedule), len(single.Schedule))
		}
	}
	if got := batch.Modules["CSR01"].Module.ID; got != e.csr.ID {
		t.Errorf("CSR01 id: got %v, want %v", got, e.csr.ID)
	}
}

func groupNames(gs []batchview.GroupView) []string {
	out := []string{}
	for _, g := range gs {
		out = append(out, g.Name)
	}
	return out
}
