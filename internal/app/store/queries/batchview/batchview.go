// Package batchview assembles the read models behind the module and class
// detail screens in one round trip.
//
// The primary row is required; every other section is read concurrently
// and a failed section degrades to an empty list, named in Degraded.
package batchview

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	classbindingstore "github.com/dalemusser/curriculum/internal/app/store/classbindings"
	expertisestore "github.com/dalemusser/curriculum/internal/app/store/expertise"
	groupstore "github.com/dalemusser/curriculum/internal/app/store/groups"
	mappingstore "github.com/dalemusser/curriculum/internal/app/store/modulemappings"
	modulestore "github.com/dalemusser/curriculum/internal/app/store/modules"
	personstore "github.com/dalemusser/curriculum/internal/app/store/persons"
	"github.com/dalemusser/curriculum/internal/app/store/queries/groupmembers"
	roomstore "github.com/dalemusser/curriculum/internal/app/store/rooms"
	schedulestore "github.com/dalemusser/curriculum/internal/app/store/schedules"
	timeslotstore "github.com/dalemusser/curriculum/internal/app/store/timeslots"
	"github.com/dalemusser/curriculum/internal/app/system/apperr"
	"github.com/dalemusser/curriculum/internal/app/system/metrics"
	"github.com/dalemusser/curriculum/internal/app/system/normalize"
	"github.com/dalemusser/curriculum/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Section names reported in Degraded.
const (
	SectionInstructors = "instructors"
	SectionExpertise   = "expertise"
	SectionGroups      = "groups"
	SectionSchedule    = "schedule"
	SectionRooms       = "rooms"
	SectionTimeSlots   = "time_slots"
)

// GroupView is a group with its members' roster rows.
type GroupView struct {
	ID      primitive.ObjectID `json:"id"`
	Name    string             `json:"name"`
	Kind    string             `json:"kind"`
	Members []models.Person    `json:"members"`
}

// Instructors holds the instructor roster split by the standby marker.
type Instructors struct {
	Regular []models.Person `json:"regular"`
	Standby []models.Person `json:"standby"`
}

// Lookups are the side tables every detail screen offers as options.
type Lookups struct {
	Rooms     []models.Room     `json:"rooms"`
	TimeSlots []models.TimeSlot `json:"time_slots"`
}

// ModuleView is the module detail read model.
type ModuleView struct {
	Term        string                        `json:"term"`
	Module      models.Module                 `json:"module"`
	Groups      []GroupView                   `json:"groups"`
	Expertise   []expertisestore.ModuleExpert `json:"expertise"`
	Instructors Instructors                   `json:"instructors"`
	Schedule    []models.ScheduleEntry        `json:"schedule"`
	Lookups
	Degraded []string `json:"degraded,omitempty"`
}

// ClassView is the class detail read model.
type ClassView struct {
	Term        string                 `json:"term"`
	Class       models.ClassBinding    `json:"class"`
	Groups      []GroupView            `json:"groups"`
	Instructors Instructors            `json:"instructors"`
	Schedule    []models.ScheduleEntry `json:"schedule"`
	Lookups
	Degraded []string `json:"degraded,omitempty"`
}

// ModuleBatch is the result of BatchModuleDetails.
type ModuleBatch struct {
	Modules map[string]ModuleView `json:"modules"`
	Missing []string              `json:"missing"`
}

// Assembler reads from the stores; it never writes.
type Assembler struct {
	db        *mongo.Database
	log       *zap.Logger
	modules   *modulestore.Store
	bindings  *classbindingstore.Store
	mappings  *mappingstore.Store
	groups    *groupstore.Store
	persons   *personstore.Store
	expertise *expertisestore.Store
	schedules *schedulestore.Store
	rooms     *roomstore.Store
	timeslots *timeslotstore.Store
}

func New(db *mongo.Database, log *zap.Logger) *Assembler {
	return &Assembler{
		db:        db,
		log:       log,
		modules:   modulestore.New(db),
		bindings:  classbindingstore.New(db, log, nil),
		mappings:  mappingstore.New(db, log, nil),
		groups:    groupstore.New(db, log, nil),
		persons:   personstore.New(db),
		expertise: expertisestore.New(db, log, nil),
		schedules: schedulestore.New(db),
		rooms:     roomstore.New(db),
		timeslots: timeslotstore.New(db),
	}
}

// run executes sections concurrently. A failing section is logged and
// recorded; it never cancels the others.
type run struct {
	g        errgroup.Group
	mu       sync.Mutex
	degraded []string
	log      *zap.Logger
	target   string
}

func (a *Assembler) newRun(target string) *run {
	return &run{log: a.log, target: target}
}

func (r *run) section(name string, fn func() error) {
	r.g.Go(func() error {
		if err := fn(); err != nil {
			metrics.Degraded(name)
			r.log.Warn("batch view section degraded",
				zap.String("target", r.target),
				zap.String("section", name),
				zap.Error(err))
			r.mu.Lock()
			r.degraded = append(r.degraded, name)
			r.mu.Unlock()
		}
		return nil
	})
}

func (r *run) wait() []string {
	_ = r.g.Wait()
	sort.Strings(r.degraded)
	return r.degraded
}

// ModuleDetail assembles the detail view of one module in term.
func (a *Assembler) ModuleDetail(ctx context.Context, term, code string) (ModuleView, error) {
	term = normalize.Code(term)
	mod, err := a.modules.GetByCode(ctx, code)
	if errors.Is(err, modulestore.ErrNotFound) {
		return ModuleView{}, apperr.NotFound(fmt.Sprintf("module %q not found", normalize.Code(code)))
	}
	if err != nil {
		return ModuleView{}, apperr.Internal("load module", err)
	}

	v := ModuleView{
		Term:        term,
		Module:      mod,
		Groups:      []GroupView{},
		Expertise:   []expertisestore.ModuleExpert{},
		Instructors: emptyInstructors(),
		Schedule:    []models.ScheduleEntry{},
		Lookups:     emptyLookups(),
	}

	r := a.newRun("module:" + mod.Code)
	a.lookups(ctx, r, &v.Lookups)
	a.instructors(ctx, r, &v.Instructors)
	r.section(SectionExpertise, func() error {
		rows, err := a.expertise.ListByModule(ctx, mod.ID)
		if err != nil {
			return err
		}
		v.Expertise = rows
		return nil
	})
	r.section(SectionGroups, func() error {
		names, err := a.mappings.GroupsForModule(ctx, term, mod.Code)
		if err != nil {
			return err
		}
		gv, err := a.groupViews(ctx, term, models.GroupSmall, names)
		if err != nil {
			return err
		}
		v.Groups = gv
		return nil
	})
	r.section(SectionSchedule, func() error {
		rows, err := a.schedules.ListByTarget(ctx, term, models.TargetModule, mod.Code)
		if err != nil {
			return err
		}
		v.Schedule = rows
		return nil
	})
	v.Degraded = r.wait()
	return v, nil
}

// ClassDetail assembles the detail view of one class in term.
func (a *Assembler) ClassDetail(ctx context.Context, term, className string) (ClassView, error) {
	term = normalize.Code(term)
	b, err := a.bindings.GetByName(ctx, term, className)
	if err != nil {
		return ClassView{}, err
	}

	v := ClassView{
		Term:        term,
		Class:       b,
		Groups:      []GroupView{},
		Instructors: emptyInstructors(),
		Schedule:    []models.ScheduleEntry{},
		Lookups:     emptyLookups(),
	}

	r := a.newRun("class:" + b.Name)
	a.lookups(ctx, r, &v.Lookups)
	a.instructors(ctx, r, &v.Instructors)
	r.section(SectionGroups, func() error {
		gv, err := a.groupViews(ctx, term, b.Kind, b.GroupNames)
		if err != nil {
			return err
		}
		v.Groups = gv
		return nil
	})
	r.section(SectionSchedule, func() error {
		rows, err := a.schedules.ListByTarget(ctx, term, models.TargetClass, b.Name)
		if err != nil {
			return err
		}
		v.Schedule = rows
		return nil
	})
	v.Degraded = r.wait()
	return v, nil
}

// BatchModuleDetails assembles ModuleDetail for every code with a fixed
// number of queries. Codes without a module are listed in Missing.
func (a *Assembler) BatchModuleDetails(ctx context.Context, term string, codes []string) (ModuleBatch, error) {
	term = normalize.Code(term)
	mods, err := a.modules.ListByCodes(ctx, codes)
	if err != nil {
		return ModuleBatch{}, apperr.Internal("load modules", err)
	}
	out := ModuleBatch{Modules: make(map[string]ModuleView, len(mods)), Missing: MissingCodes(codes, mods)}
	if len(mods) == 0 {
		return out, nil
	}

	ids := make([]primitive.ObjectID, len(mods))
	found := make([]string, len(mods))
	for i, m := range mods {
		ids[i] = m.ID
		found[i] = m.Code
	}

	var (
		lookups     = emptyLookups()
		instructors = emptyInstructors()
		expertise   = map[primitive.ObjectID][]expertisestore.ModuleExpert{}
		groupsByMod = map[string][]GroupView{}
		schedule    = map[string][]models.ScheduleEntry{}
	)
	r := a.newRun("modules:" + term)
	a.lookups(ctx, r, &lookups)
	a.instructors(ctx, r, &instructors)
	r.section(SectionExpertise, func() error {
		rows, err := a.expertise.ListByModules(ctx, ids)
		if err != nil {
			return err
		}
		expertise = rows
		return nil
	})
	r.section(SectionGroups, func() error {
		mapped, err := a.mappings.BatchMapping(ctx, found, term)
		if err != nil {
			return err
		}
		var all []string
		for _, code := range found {
			all = append(all, mapped[code]...)
		}
		gv, err := a.groupViews(ctx, term, models.GroupSmall, all)
		if err != nil {
			return err
		}
		groupsByMod = SplitGroupViews(mapped, gv)
		return nil
	})
	r.section(SectionSchedule, func() error {
		rows, err := a.schedules.ListByTargets(ctx, term, models.TargetModule, found)
		if err != nil {
			return err
		}
		schedule = rows
		return nil
	})
	degraded := r.wait()

	for _, m := range mods {
		v := ModuleView{
			Term:        term,
			Module:      m,
			Groups:      orEmpty(groupsByMod[m.Code]),
			Expertise:   expertise[m.ID],
			Instructors: instructors,
			Schedule:    schedule[m.Code],
			Lookups:     lookups,
			Degraded:    degraded,
		}
		if v.Expertise == nil {
			v.Expertise = []expertisestore.ModuleExpert{}
		}
		if v.Schedule == nil {
			v.Schedule = []models.ScheduleEntry{}
		}
		out.Modules[m.Code] = v
	}
	return out, nil
}

func (a *Assembler) lookups(ctx context.Context, r *run, l *Lookups) {
	r.section(SectionRooms, func() error {
		rooms, err := a.rooms.List(ctx)
		if err != nil {
			return err
		}
		l.Rooms = rooms
		return nil
	})
	r.section(SectionTimeSlots, func() error {
		slots, err := a.timeslots.List(ctx)
		if err != nil {
			return err
		}
		l.TimeSlots = slots
		return nil
	})
}

func (a *Assembler) instructors(ctx context.Context, r *run, in *Instructors) {
	r.section(SectionInstructors, func() error {
		all, err := a.persons.ListByRole(ctx, models.RoleInstructor)
		if err != nil {
			return err
		}
		in.Regular, in.Standby = personstore.PartitionStandby(all)
		return nil
	})
}

// groupViews loads the named groups with their members. Names that no
// longer resolve to a group are skipped.
func (a *Assembler) groupViews(ctx context.Context, term, kind string, names []string) ([]GroupView, error) {
	if len(names) == 0 {
		return []GroupView{}, nil
	}
	groups, err := a.groups.GetByNames(ctx, term, kind, names)
	if err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, len(groups))
	for i, g := range groups {
		ids[i] = g.ID
	}
	rows, err := groupmembers.ListByGroups(ctx, a.db, ids)
	if err != nil {
		return nil, err
	}
	members := groupmembers.ByGroup(rows)

	out := make([]GroupView, len(groups))
	for i, g := range groups {
		out[i] = GroupView{ID: g.ID, Name: g.Name, Kind: g.Kind, Members: orEmptyPersons(members[g.ID])}
	}
	return out, nil
}

// SplitGroupViews distributes loaded groups to the modules that map them.
// Mapped names without a loaded group are dropped.
func SplitGroupViews(mapped map[string][]string, groups []GroupView) map[string][]GroupView {
	byName := make(map[string]GroupView, len(groups))
	for _, g := range groups {
		byName[text.Fold(g.Name)] = g
	}
	out := make(map[string][]GroupView, len(mapped))
	for code, names := range mapped {
		views := []GroupView{}
		for _, n := range normalize.Folded(names) {
			if g, ok := byName[n]; ok {
				views = append(views, g)
			}
		}
		out[code] = views
	}
	return out
}

// MissingCodes returns the requested codes with no module, in request
// order, without duplicates.
func MissingCodes(codes []string, found []models.Module) []string {
	have := make(map[string]bool, len(found))
	for _, m := range found {
		have[m.Code] = true
	}
	out := []string{}
	for _, c := range codes {
		c = normalize.Code(c)
		if c == "" || have[c] {
			continue
		}
		have[c] = true
		out = append(out, c)
	}
	return out
}

func emptyInstructors() Instructors {
	return Instructors{Regular: []models.Person{}, Standby: []models.Person{}}
}

func emptyLookups() Lookups {
	return Lookups{Rooms: []models.Room{}, TimeSlots: []models.TimeSlot{}}
}

func orEmpty(v []GroupView) []GroupView {
	if v == nil {
		return []GroupView{}
	}
	return v
}

func orEmptyPersons(v []models.Person) []models.Person {
	if v == nil {
		return []models.Person{}
	}
	return v
}
