package group

import (
	"context"
	"fmt"

	"github.com/contentguard/contentguard/internal/model"
)

// fullMembers enumerates every member id of a canonical kind: direct
// assignments unioned with everything reachable through the kind's recursion
// rule. The result agrees with the per-id membership check and is memoized
// until the next mutation.
func (r *Resolver) fullMembers(ctx context.Context, kind model.ObjectKind) (map[int64]*model.AssignmentInformation, error) {
	if m, ok := r.fullObjectMembership[kind]; ok {
		return m, nil
	}

	var (
		full map[int64]*model.AssignmentInformation
		err  error
	)
	switch kind {
	case model.KindRole:
		full, err = r.fullRoles(ctx)
	case model.KindUser:
		full, err = r.fullUsers(ctx)
	case model.KindTerm:
		full, err = r.fullTerms(ctx)
	case model.KindPost:
		full, err = r.fullPosts(ctx)
	default:
		full, err = r.fullPluggable(ctx, kind)
	}
	if err != nil {
		return nil, err
	}
	r.fullObjectMembership[kind] = full
	return full, nil
}

func (r *Resolver) fullRoles(ctx context.Context) (map[int64]*model.AssignmentInformation, error) {
	assigned, err := r.assigned(ctx, model.KindRole)
	if err != nil {
		return nil, err
	}
	full := make(map[int64]*model.AssignmentInformation, len(assigned))
	for id, info := range assigned {
		full[id] = info
	}
	return full, nil
}

func (r *Resolver) fullUsers(ctx context.Context) (map[int64]*model.AssignmentInformation, error) {
	assigned, err := r.assigned(ctx, model.KindUser)
	if err != nil {
		return nil, err
	}
	full := make(map[int64]*model.AssignmentInformation, len(assigned))
	for id, info := range assigned {
		full[id] = info
	}
	ids, err := r.st.Content().ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := full[id]; ok {
			continue
		}
		m, err := r.userMember(ctx, id)
		if err != nil {
			return nil, err
		}
		if m.member {
			full[id] = &model.AssignmentInformation{Type: model.TypeUser}
		}
	}
	return full, nil
}

func (r *Resolver) fullTerms(ctx context.Context) (map[int64]*model.AssignmentInformation, error) {
	assigned, err := r.assigned(ctx, model.KindTerm)
	if err != nil {
		return nil, err
	}
	full := make(map[int64]*model.AssignmentInformation, len(assigned))
	for id, info := range assigned {
		full[id] = info
	}
	if r.cfg.LockRecursive(model.KindTerm) {
		tm, err := r.reg.TreeMap(ctx, model.KindTerm)
		if err != nil {
			return nil, err
		}
		for id := range assigned {
			for desc := range tm.Descendants(id) {
				if _, ok := full[desc]; ok {
					continue
				}
				full[desc] = &model.AssignmentInformation{Type: nodeTypeOr(tm.NodeType(desc), model.TypeTerm)}
			}
		}
	}
	return full, nil
}

func (r *Resolver) fullPosts(ctx context.Context) (map[int64]*model.AssignmentInformation, error) {
	assigned, err := r.assigned(ctx, model.KindPost)
	if err != nil {
		return nil, err
	}
	full := make(map[int64]*model.AssignmentInformation, len(assigned))
	for id, info := range assigned {
		full[id] = info
	}
	if r.cfg.LockRecursive(model.KindPost) {
		tm, err := r.reg.TreeMap(ctx, model.KindPost)
		if err != nil {
			return nil, err
		}
		for id := range assigned {
			for desc := range tm.Descendants(id) {
				if _, ok := full[desc]; ok {
					continue
				}
				full[desc] = &model.AssignmentInformation{Type: nodeTypeOr(tm.NodeType(desc), model.TypePost)}
			}
		}
	}

	// Posts linked to any full member term are members regardless of the
	// post recursion switch.
	terms, err := r.fullMembers(ctx, model.KindTerm)
	if err != nil {
		return nil, err
	}
	for termID := range terms {
		links, err := r.reg.TermPostLinks(ctx, termID)
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			if _, ok := full[link.ObjectID]; ok {
				continue
			}
			full[link.ObjectID] = &model.AssignmentInformation{Type: nodeTypeOr(link.PostType, model.TypePost)}
		}
	}
	return full, nil
}

func (r *Resolver) fullPluggable(ctx context.Context, kind model.ObjectKind) (map[int64]*model.AssignmentInformation, error) {
	p, ok := r.reg.PluggableForKind(kind)
	if !ok {
		return nil, fmt.Errorf("no handler registered for kind %q", kind)
	}
	assigned, err := r.assigned(ctx, kind)
	if err != nil {
		return nil, err
	}
	full := make(map[int64]*model.AssignmentInformation, len(assigned))
	for id, info := range assigned {
		full[id] = info
	}
	members, err := p.FullMemberSet(ctx, r.ref())
	if err != nil {
		return nil, err
	}
	for id, info := range members {
		if _, ok := full[id]; ok {
			continue
		}
		full[id] = info
	}
	return full, nil
}

// GetFullUsers enumerates every member user id.
func (r *Resolver) GetFullUsers(ctx context.Context) (map[int64]*model.AssignmentInformation, error) {
	return r.fullMembers(ctx, model.KindUser)
}

// GetFullTerms enumerates every member term id.
func (r *Resolver) GetFullTerms(ctx context.Context) (map[int64]*model.AssignmentInformation, error) {
	return r.fullMembers(ctx, model.KindTerm)
}

// GetFullPosts enumerates every member post id.
func (r *Resolver) GetFullPosts(ctx context.Context) (map[int64]*model.AssignmentInformation, error) {
	return r.fullMembers(ctx, model.KindPost)
}

// GetFullObjects enumerates every member id of an arbitrary canonical kind,
// including pluggable kinds.
func (r *Resolver) GetFullObjects(ctx context.Context, kind model.ObjectKind) (map[int64]*model.AssignmentInformation, error) {
	return r.fullMembers(ctx, kind)
}
