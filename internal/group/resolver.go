// Package group implements the per-group membership resolver: time-bounded
// assignment rows, recursive membership verdicts with traces, and full-member
// enumeration. A resolver serves one resolution session and memoizes
// aggressively; every assignment mutation clears the caches wholesale.
package group

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/contentguard/contentguard/internal/config"
	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/registry"
	"github.com/contentguard/contentguard/internal/store"
)

// membership is one memoized verdict with its justifying trace.
type membership struct {
	member bool
	trace  model.Trace
}

// Resolver answers membership questions for one access group.
type Resolver struct {
	group *model.Group
	st    store.Store
	reg   *registry.Registry
	cfg   *config.Config
	clock Clock
	log   zerolog.Logger

	assignedObjects      map[model.ObjectKind]map[int64]*model.AssignmentInformation
	roleMembership       map[int64]*membership
	userMembership       map[int64]*membership
	termMembership       map[int64]*membership
	postMembership       map[int64]*membership
	pluggableMembership  map[string]map[int64]*membership
	fullObjectMembership map[model.ObjectKind]map[int64]*model.AssignmentInformation
}

func newResolver(g *model.Group, st store.Store, reg *registry.Registry, cfg *config.Config, clock Clock, log zerolog.Logger) *Resolver {
	r := &Resolver{
		group: g,
		st:    st,
		reg:   reg,
		cfg:   cfg,
		clock: clock,
		log:   log.With().Str("group_id", g.GroupID).Str("group_type", g.GroupType).Logger(),
	}
	r.resetCaches()
	return r
}

func (r *Resolver) resetCaches() {
	r.assignedObjects = make(map[model.ObjectKind]map[int64]*model.AssignmentInformation)
	r.roleMembership = make(map[int64]*membership)
	r.userMembership = make(map[int64]*membership)
	r.termMembership = make(map[int64]*membership)
	r.postMembership = make(map[int64]*membership)
	r.pluggableMembership = make(map[string]map[int64]*membership)
	r.fullObjectMembership = make(map[model.ObjectKind]map[int64]*model.AssignmentInformation)
}

// Group returns the underlying group record.
func (r *Resolver) Group() *model.Group { return r.group }

func (r *Resolver) Name() string                { return r.group.Name }
func (r *Resolver) SetName(v string)            { r.group.Name = v }
func (r *Resolver) Description() string         { return r.group.Description }
func (r *Resolver) SetDescription(v string)     { r.group.Description = v }
func (r *Resolver) ReadAccess() string          { return r.group.ReadAccess }
func (r *Resolver) SetReadAccess(v string)      { r.group.ReadAccess = v }
func (r *Resolver) WriteAccess() string         { return r.group.WriteAccess }
func (r *Resolver) SetWriteAccess(v string)     { r.group.WriteAccess = v }
func (r *Resolver) IPRanges() []string          { return r.group.IPRangeList() }
func (r *Resolver) SetIPRanges(ranges []string) { r.group.SetIPRanges(ranges) }

// Save persists the descriptive fields.
func (r *Resolver) Save(ctx context.Context) error {
	return r.st.Groups().Update(ctx, r.group)
}

// ref identifies this group for pluggable handlers.
func (r *Resolver) ref() registry.GroupRef {
	return registry.GroupRef{GroupID: r.group.GroupID, GroupType: r.group.GroupType}
}

// assigned returns the active direct assignments for a canonical kind,
// memoized including the empty result. Window filtering happens here against
// the resolver's clock, not in SQL.
func (r *Resolver) assigned(ctx context.Context, kind model.ObjectKind) (map[int64]*model.AssignmentInformation, error) {
	if m, ok := r.assignedObjects[kind]; ok {
		return m, nil
	}
	rows, err := r.st.Assignments().ListForType(ctx, r.group.GroupID, r.group.GroupType, string(kind))
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	m := make(map[int64]*model.AssignmentInformation)
	for _, row := range rows {
		info := &model.AssignmentInformation{Type: row.ObjectType, FromDate: row.FromDate, ToDate: row.ToDate}
		if info.ActiveAt(now) {
			m[row.ObjectID] = info
		}
	}
	r.assignedObjects[kind] = m
	return m, nil
}

// GetAssignedObjects returns the active direct assignments for a canonical
// kind as id → assignment information.
func (r *Resolver) GetAssignedObjects(ctx context.Context, kind model.ObjectKind) (map[int64]*model.AssignmentInformation, error) {
	return r.assigned(ctx, kind)
}

// GetAssignedObjectsByType returns the active direct assignments whose
// concrete type matches objectType. Passing a canonical kind name returns the
// whole bucket.
func (r *Resolver) GetAssignedObjectsByType(ctx context.Context, objectType string) (map[int64]*model.AssignmentInformation, error) {
	kind, err := r.reg.Classify(ctx, objectType)
	if err != nil {
		return nil, err
	}
	all, err := r.assigned(ctx, kind)
	if err != nil {
		return nil, err
	}
	if objectType == string(kind) {
		return all, nil
	}
	out := make(map[int64]*model.AssignmentInformation)
	for id, info := range all {
		if info.Type == objectType {
			out[id] = info
		}
	}
	return out, nil
}

// AddObject persists one assignment row for the group. The object type must
// classify to a canonical kind; all membership caches are cleared on success,
// not before, so a failed insert leaves prior verdicts intact.
func (r *Resolver) AddObject(ctx context.Context, objectType string, objectID int64, fromDate, toDate *time.Time) error {
	kind, err := r.reg.Classify(ctx, objectType)
	if err != nil {
		return err
	}
	err = r.st.Assignments().Insert(ctx, &model.Assignment{
		GroupID:     r.group.GroupID,
		GroupType:   r.group.GroupType,
		ObjectID:    objectID,
		GeneralType: kind,
		ObjectType:  objectType,
		FromDate:    fromDate,
		ToDate:      toDate,
	})
	if err != nil {
		return err
	}
	r.resetCaches()
	r.log.Debug().Str("object_type", objectType).Int64("object_id", objectID).Msg("assignment added")
	return nil
}

// RemoveObject deletes assignment rows for the object type. A nil objectID
// removes every row of that type. Matching zero rows is a not-found error;
// caches are cleared only when rows were actually deleted.
func (r *Resolver) RemoveObject(ctx context.Context, objectType string, objectID *int64) error {
	if _, err := r.reg.Classify(ctx, objectType); err != nil {
		return err
	}
	n, err := r.st.Assignments().Delete(ctx, r.group.GroupID, r.group.GroupType, objectType, objectID)
	if err != nil {
		return err
	}
	if n == 0 {
		return model.NewNotFoundError("assignment", fmt.Sprintf("no %s assignments matched", objectType))
	}
	r.resetCaches()
	r.log.Debug().Str("object_type", objectType).Int64("rows", n).Msg("assignments removed")
	return nil
}

// Delete removes the group identity and all its assignment rows. Caches are
// cleared pessimistically before touching storage; the operation is
// idempotent.
func (r *Resolver) Delete(ctx context.Context) error {
	r.resetCaches()
	if _, err := r.st.Assignments().DeleteAllForGroup(ctx, r.group.GroupID, r.group.GroupType); err != nil {
		return err
	}
	return r.st.Groups().Delete(ctx, r.group.GroupID)
}
