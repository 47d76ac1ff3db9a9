package registry

import (
	"context"

	"github.com/contentguard/contentguard/internal/model"
)

// GroupRef identifies one access group for pluggable handlers without
// exposing the resolver itself.
type GroupRef struct {
	GroupID   string
	GroupType string
}

// PluggableType is an externally-defined object kind. The handler owns all
// recursion for its domain: the resolver only combines its verdicts.
type PluggableType interface {
	// Name is the concrete type name the handler registers under.
	Name() string
	// GeneralKind is the canonical bucket the handler's objects group under,
	// normally the handler's own name.
	GeneralKind() model.ObjectKind
	// MembershipTrace returns the intermediate objects that justify a
	// transitive membership of objectID in the group. An empty trace with a
	// nil error means "not a transitive member".
	MembershipTrace(ctx context.Context, group GroupRef, objectID int64) (model.Trace, error)
	// FullMemberSet enumerates every transitive member id of the group.
	FullMemberSet(ctx context.Context, group GroupRef) (map[int64]*model.AssignmentInformation, error)
}
