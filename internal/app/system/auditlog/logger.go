// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dalemusser/curriculum/internal/app/store/audit"
	"github.com/dalemusser/curriculum/internal/app/system/actor"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Mapping controls logging for group, binding, mapping and expertise events.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Mapping string
	// Term controls logging for term creation and activation.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Term string
}

// Logger emits fire-and-forget audit events after successful mutations.
// It logs to both MongoDB (via audit.Store) and structured logs (via zap).
// A failed write is logged and never surfaces to the caller.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// requestID prefers the chi request id so audit rows line up with access logs.
func requestID(ctx context.Context) string {
	if id := middleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.String("actor_id", event.ActorID),
		zap.String("target_type", event.TargetType),
		zap.String("target_id", event.TargetID),
		zap.String("request_id", event.RequestID),
	}
	if event.Term != "" {
		fields = append(fields, zap.String("term", event.Term))
	}
	if event.Message != "" {
		fields = append(fields, zap.String("message", event.Message))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}
	l.zapLog.Info("audit event", fields...)
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryMapping:
		setting = l.config.Mapping
	case audit.CategoryTerm:
		setting = l.config.Term
	}
	if setting == "" {
		setting = "all"
	}
	if setting == "off" {
		return
	}

	if event.RequestID == "" {
		event.RequestID = requestID(ctx)
	}

	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

func mapping(who actor.Actor, eventType, targetType, targetID, term, msg string, details map[string]string) audit.Event {
	return audit.Event{
		Category:   audit.CategoryMapping,
		EventType:  eventType,
		ActorID:    who.ID,
		ActorName:  who.Name,
		TargetType: targetType,
		TargetID:   targetID,
		Term:       term,
		Message:    msg,
		Details:    details,
	}
}

// --- Group Events ---

// GroupsReplaced logs a bulk replace of a term's groups of one kind.
func (l *Logger) GroupsReplaced(ctx context.Context, who actor.Actor, term, kind string, groups, members int) {
	l.Log(ctx, mapping(who, audit.EventGroupsReplaced, audit.TargetGroup, kind, term,
		fmt.Sprintf("replaced %s groups: %d group(s), %d member(s)", kind, groups, members),
		map[string]string{
			"kind":    kind,
			"groups":  strconv.Itoa(groups),
			"members": strconv.Itoa(members),
		}))
}

// GroupDeleted logs removal of a single group and its downstream links.
func (l *Logger) GroupDeleted(ctx context.Context, who actor.Actor, term, groupID, name string, unlinked int) {
	l.Log(ctx, mapping(who, audit.EventGroupDeleted, audit.TargetGroup, groupID, term,
		fmt.Sprintf("deleted group %s", name),
		map[string]string{
			"name":     name,
			"unlinked": strconv.Itoa(unlinked),
		}))
}

// --- Class Binding Events ---

// ClassBound logs a create or replace of a class binding.
func (l *Logger) ClassBound(ctx context.Context, who actor.Actor, term, bindingID, className string, groupCount int) {
	l.Log(ctx, mapping(who, audit.EventClassBound, audit.TargetClass, bindingID, term,
		fmt.Sprintf("bound class %s to %d group(s)", className, groupCount),
		map[string]string{
			"class":       className,
			"group_count": strconv.Itoa(groupCount),
		}))
}

// ClassUnbound logs removal of a class binding.
func (l *Logger) ClassUnbound(ctx context.Context, who actor.Actor, term, bindingID, className string) {
	l.Log(ctx, mapping(who, audit.EventClassUnbound, audit.TargetClass, bindingID, term,
		fmt.Sprintf("unbound class %s", className),
		map[string]string{"class": className}))
}

// --- Module Mapping Events ---

// ModuleMapped logs a replace of a module's group mappings. Zero groups is
// logged as an unmap.
func (l *Logger) ModuleMapped(ctx context.Context, who actor.Actor, term, moduleCode string, groupCount int) {
	eventType := audit.EventModuleMapped
	msg := fmt.Sprintf("mapped module %s to %d group(s)", moduleCode, groupCount)
	if groupCount == 0 {
		eventType = audit.EventModuleUnmapped
		msg = fmt.Sprintf("cleared group mappings for module %s", moduleCode)
	}
	l.Log(ctx, mapping(who, eventType, audit.TargetModule, moduleCode, term, msg,
		map[string]string{"group_count": strconv.Itoa(groupCount)}))
}

// --- Expertise Events ---

// ExpertiseAssigned logs an instructor assigned to a module under a tag.
func (l *Logger) ExpertiseAssigned(ctx context.Context, who actor.Actor, moduleID, personID, tag string) {
	l.Log(ctx, mapping(who, audit.EventExpertiseAssigned, audit.TargetModule, moduleID, "",
		fmt.Sprintf("assigned %s as %s", personID, tag),
		map[string]string{"person_id": personID, "tag": tag}))
}

// ExpertiseUnassigned logs removal of an expertise assignment.
func (l *Logger) ExpertiseUnassigned(ctx context.Context, who actor.Actor, moduleID, personID, tag string) {
	l.Log(ctx, mapping(who, audit.EventExpertiseUnassigned, audit.TargetModule, moduleID, "",
		fmt.Sprintf("unassigned %s from %s", personID, tag),
		map[string]string{"person_id": personID, "tag": tag}))
}

// --- Term Events ---

// TermCreated logs a new term.
func (l *Logger) TermCreated(ctx context.Context, who actor.Actor, code string) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryTerm,
		EventType:  audit.EventTermCreated,
		ActorID:    who.ID,
		ActorName:  who.Name,
		TargetType: audit.TargetTerm,
		TargetID:   code,
		Term:       code,
		Message:    "created term " + code,
	})
}

// TermActivated logs an applied activation plan.
func (l *Logger) TermActivated(ctx context.Context, who actor.Actor, planID, from, to string, rekeyed int) {
	l.Log(ctx, audit.Event{
		Category:   audit.CategoryTerm,
		EventType:  audit.EventTermActivated,
		ActorID:    who.ID,
		ActorName:  who.Name,
		TargetType: audit.TargetTerm,
		TargetID:   to,
		Term:       to,
		Message:    fmt.Sprintf("activated term %s (re-keyed %d student(s))", to, rekeyed),
		Details: map[string]string{
			"plan_id": planID,
			"from":    from,
			"rekeyed": strconv.Itoa(rekeyed),
		},
	})
}
