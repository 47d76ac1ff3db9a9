package group

import (
	"context"

	"github.com/contentguard/contentguard/internal/model"
)

// IsObjectMember answers "is (objectType, objectID) a member of this group"
// and returns the trace of intermediate objects justifying a transitive
// verdict. An unknown object type fails closed: false verdict, empty trace,
// nil error.
func (r *Resolver) IsObjectMember(ctx context.Context, objectType string, objectID int64) (bool, model.Trace, error) {
	kind, err := r.reg.Classify(ctx, objectType)
	if err != nil {
		if model.IsValidationError(err) {
			return false, model.Trace{}, nil
		}
		return false, model.Trace{}, err
	}

	var m *membership
	switch kind {
	case model.KindRole:
		m, err = r.roleMember(ctx, objectID)
	case model.KindUser:
		m, err = r.userMember(ctx, objectID)
	case model.KindTerm:
		m, err = r.termMember(ctx, objectID)
	case model.KindPost:
		m, err = r.postMember(ctx, objectID)
	default:
		m, err = r.pluggableMember(ctx, objectType, kind, objectID)
	}
	if err != nil {
		return false, model.Trace{}, err
	}
	return m.member, m.trace, nil
}

// IsLockedRecursive reports whether the object's membership rests on
// recursive expansion: a member with a non-empty trace.
func (r *Resolver) IsLockedRecursive(ctx context.Context, objectType string, objectID int64) (bool, error) {
	member, trace, err := r.IsObjectMember(ctx, objectType, objectID)
	if err != nil {
		return false, err
	}
	return member && !trace.Empty(), nil
}

// roleMember checks direct role assignment. Roles are leaves: no recursion.
func (r *Resolver) roleMember(ctx context.Context, roleID int64) (*membership, error) {
	if m, ok := r.roleMembership[roleID]; ok {
		return m, nil
	}
	assigned, err := r.assigned(ctx, model.KindRole)
	if err != nil {
		return nil, err
	}
	m := &membership{member: assigned[roleID] != nil, trace: model.Trace{}}
	r.roleMembership[roleID] = m
	return m, nil
}

// userMember checks direct user assignment and, when recursion is enabled
// for users, expands the user's role set from the host record. The trace
// records each assigned role.
func (r *Resolver) userMember(ctx context.Context, userID int64) (*membership, error) {
	if m, ok := r.userMembership[userID]; ok {
		return m, nil
	}
	assigned, err := r.assigned(ctx, model.KindUser)
	if err != nil {
		return nil, err
	}
	direct := assigned[userID] != nil

	trace := model.Trace{}
	if r.cfg.LockRecursive(model.KindUser) {
		user, err := r.st.Content().GetUser(ctx, userID)
		if err != nil && !model.IsNotFoundError(err) {
			return nil, err
		}
		if user != nil {
			roleAssigned, err := r.assigned(ctx, model.KindRole)
			if err != nil {
				return nil, err
			}
			for _, roleID := range user.RoleIDs {
				rm, err := r.roleMember(ctx, roleID)
				if err != nil {
					return nil, err
				}
				if !rm.member {
					continue
				}
				info := roleAssigned[roleID]
				if info == nil {
					info = &model.AssignmentInformation{Type: model.TypeRole}
				}
				trace.Add(model.KindRole, roleID, info)
			}
		}
	}

	m := &membership{member: direct || !trace.Empty(), trace: trace}
	r.userMembership[userID] = m
	return m, nil
}

// termMember checks direct term assignment and walks direct parents when
// term recursion is enabled. The trace records the nearest member ancestor
// found on the walk, not the originally-assigned root.
func (r *Resolver) termMember(ctx context.Context, termID int64) (*membership, error) {
	if m, ok := r.termMembership[termID]; ok {
		return m, nil
	}
	assigned, err := r.assigned(ctx, model.KindTerm)
	if err != nil {
		return nil, err
	}
	direct := assigned[termID] != nil

	trace := model.Trace{}
	if r.cfg.LockRecursive(model.KindTerm) {
		tm, err := r.reg.TreeMap(ctx, model.KindTerm)
		if err != nil {
			return nil, err
		}
		for _, parentID := range tm.DirectParents(termID) {
			pm, err := r.termMember(ctx, parentID)
			if err != nil {
				return nil, err
			}
			if !pm.member {
				continue
			}
			info := assigned[parentID]
			if info == nil {
				info = &model.AssignmentInformation{Type: nodeTypeOr(tm.NodeType(parentID), model.TypeTerm)}
			}
			trace.Add(model.KindTerm, parentID, info)
		}
	}

	m := &membership{member: direct || !trace.Empty(), trace: trace}
	r.termMembership[termID] = m
	return m, nil
}

// postMember checks direct post assignment, walks direct parents when post
// recursion is enabled, and always consults cross-linked terms: a post is a
// member when any term it is linked to is a term member.
func (r *Resolver) postMember(ctx context.Context, postID int64) (*membership, error) {
	if m, ok := r.postMembership[postID]; ok {
		return m, nil
	}
	assigned, err := r.assigned(ctx, model.KindPost)
	if err != nil {
		return nil, err
	}
	direct := assigned[postID] != nil

	trace := model.Trace{}
	if r.cfg.LockRecursive(model.KindPost) {
		tm, err := r.reg.TreeMap(ctx, model.KindPost)
		if err != nil {
			return nil, err
		}
		for _, parentID := range tm.DirectParents(postID) {
			pm, err := r.postMember(ctx, parentID)
			if err != nil {
				return nil, err
			}
			if !pm.member {
				continue
			}
			info := assigned[parentID]
			if info == nil {
				info = &model.AssignmentInformation{Type: nodeTypeOr(tm.NodeType(parentID), model.TypePost)}
			}
			trace.Add(model.KindPost, parentID, info)
		}
	}

	links, err := r.reg.PostTermLinks(ctx, postID)
	if err != nil {
		return nil, err
	}
	if len(links) > 0 {
		termAssigned, err := r.assigned(ctx, model.KindTerm)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			tmm, err := r.termMember(ctx, link.TermID)
			if err != nil {
				return nil, err
			}
			if !tmm.member {
				continue
			}
			info := termAssigned[link.TermID]
			if info == nil {
				info = &model.AssignmentInformation{Type: nodeTypeOr(link.Taxonomy, model.TypeTerm)}
			}
			trace.Add(model.KindTerm, link.TermID, info)
		}
	}

	m := &membership{member: direct || !trace.Empty(), trace: trace}
	r.postMembership[postID] = m
	return m, nil
}

// pluggableMember combines direct assignment under the handler's kind with
// the handler's own recursion.
func (r *Resolver) pluggableMember(ctx context.Context, objectType string, kind model.ObjectKind, objectID int64) (*membership, error) {
	if byID, ok := r.pluggableMembership[objectType]; ok {
		if m, ok := byID[objectID]; ok {
			return m, nil
		}
	}
	p, ok := r.reg.Pluggable(objectType)
	if !ok {
		if p, ok = r.reg.PluggableForKind(kind); !ok {
			return &membership{member: false, trace: model.Trace{}}, nil
		}
	}
	assigned, err := r.assigned(ctx, p.GeneralKind())
	if err != nil {
		return nil, err
	}
	direct := assigned[objectID] != nil

	trace, err := p.MembershipTrace(ctx, r.ref(), objectID)
	if err != nil {
		return nil, err
	}
	if trace == nil {
		trace = model.Trace{}
	}

	m := &membership{member: direct || !trace.Empty(), trace: trace}
	byID, ok := r.pluggableMembership[objectType]
	if !ok {
		byID = make(map[int64]*membership)
		r.pluggableMembership[objectType] = byID
	}
	byID[objectID] = m
	return m, nil
}

func nodeTypeOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
