// Package services orchestrates use cases over the store, registry and
// resolver, keeping HTTP handlers thin.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/contentguard/contentguard/internal/config"
	"github.com/contentguard/contentguard/internal/group"
	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/registry"
	"github.com/contentguard/contentguard/internal/store"
)

// MembershipVerdict is the answer to one membership question.
type MembershipVerdict struct {
	Member          bool        `json:"member"`
	LockedRecursive bool        `json:"lockedRecursive"`
	Trace           model.Trace `json:"trace"`
}

// GroupService owns group CRUD, assignment mutations and membership queries.
// Resolvers are constructed per call; the registry is shared and invalidated
// through the event bus when mirrored content changes.
type GroupService struct {
	store   store.Store
	factory *group.Factory
	log     zerolog.Logger
}

// NewGroupService wires a group service. A nil clock means wall-clock time.
func NewGroupService(st store.Store, reg *registry.Registry, cfg *config.Config, clock group.Clock, log zerolog.Logger) *GroupService {
	return &GroupService{
		store:   st,
		factory: group.NewFactory(st, reg, cfg, clock, log),
		log:     log,
	}
}

// CreateGroup stores a new access group. Missing ids are generated; the
// group type defaults to a regular user group.
func (s *GroupService) CreateGroup(ctx context.Context, g *model.Group) (*model.Group, error) {
	if g.Name == "" {
		return nil, model.NewValidationError("name", "group name is required")
	}
	if g.GroupID == "" {
		g.GroupID = uuid.New().String()
	}
	if g.GroupType == "" {
		g.GroupType = model.GroupTypeUserGroup
	}
	if g.ReadAccess == "" {
		g.ReadAccess = "group"
	}
	if g.WriteAccess == "" {
		g.WriteAccess = "group"
	}
	if _, err := s.factory.ForGroup(g); err != nil {
		return nil, model.NewValidationError("groupType", err.Error())
	}
	return s.store.Groups().Create(ctx, g)
}

// GetGroup returns one stored group.
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*model.Group, error) {
	return s.store.Groups().Get(ctx, groupID)
}

// ListGroups returns every stored group.
func (s *GroupService) ListGroups(ctx context.Context) ([]*model.Group, error) {
	return s.store.Groups().List(ctx)
}

// UpdateGroup persists the descriptive fields of a group.
func (s *GroupService) UpdateGroup(ctx context.Context, g *model.Group) (*model.Group, error) {
	if g.Name == "" {
		return nil, model.NewValidationError("name", "group name is required")
	}
	if err := s.store.Groups().Update(ctx, g); err != nil {
		return nil, err
	}
	return s.store.Groups().Get(ctx, g.GroupID)
}

// DeleteGroup removes the group and all its assignments.
func (s *GroupService) DeleteGroup(ctx context.Context, groupID string) error {
	res, err := s.resolver(ctx, groupID)
	if err != nil {
		if model.IsNotFoundError(err) {
			return nil
		}
		return err
	}
	return res.Delete(ctx)
}

// AddAssignment binds an object to the group with an optional validity window.
func (s *GroupService) AddAssignment(ctx context.Context, groupID, objectType string, objectID int64, fromDate, toDate *time.Time) error {
	res, err := s.resolver(ctx, groupID)
	if err != nil {
		return err
	}
	return res.AddObject(ctx, objectType, objectID, fromDate, toDate)
}

// RemoveAssignment deletes assignment rows; a nil objectID removes every row
// of the type.
func (s *GroupService) RemoveAssignment(ctx context.Context, groupID, objectType string, objectID *int64) error {
	res, err := s.resolver(ctx, groupID)
	if err != nil {
		return err
	}
	return res.RemoveObject(ctx, objectType, objectID)
}

// CheckMembership answers whether (objectType, objectID) is a member of the
// group, with the justifying trace.
func (s *GroupService) CheckMembership(ctx context.Context, groupID, objectType string, objectID int64) (*MembershipVerdict, error) {
	res, err := s.resolver(ctx, groupID)
	if err != nil {
		return nil, err
	}
	member, trace, err := res.IsObjectMember(ctx, objectType, objectID)
	if err != nil {
		return nil, err
	}
	return &MembershipVerdict{
		Member:          member,
		LockedRecursive: member && !trace.Empty(),
		Trace:           trace,
	}, nil
}

// ListMembers enumerates every member id of a canonical kind or pluggable
// type name.
func (s *GroupService) ListMembers(ctx context.Context, groupID, objectType string) (map[int64]*model.AssignmentInformation, error) {
	res, err := s.resolver(ctx, groupID)
	if err != nil {
		return nil, err
	}
	kind, err := s.factory.Registry().Classify(ctx, objectType)
	if err != nil {
		return nil, err
	}
	return res.GetFullObjects(ctx, kind)
}

// ListAssignedByType returns the active direct assignments whose concrete
// type matches objectType.
func (s *GroupService) ListAssignedByType(ctx context.Context, groupID, objectType string) (map[int64]*model.AssignmentInformation, error) {
	res, err := s.resolver(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return res.GetAssignedObjectsByType(ctx, objectType)
}

func (s *GroupService) resolver(ctx context.Context, groupID string) (*group.Resolver, error) {
	g, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return s.factory.ForGroup(g)
}
