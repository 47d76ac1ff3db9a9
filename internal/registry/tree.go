package registry

import (
	"fmt"

	"github.com/contentguard/contentguard/internal/model"
)

// TreeMap holds the closed ancestor/descendant relation for one hierarchical
// kind, plus the direct parent adjacency the membership walk recurses over.
// Instances are immutable once built.
type TreeMap struct {
	parents     map[int64][]int64
	children    map[int64][]int64
	descendants map[int64]map[int64]struct{}
	ancestors   map[int64]map[int64]struct{}
	nodeTypes   map[int64]string
}

// buildTreeMap closes a flat parent relation transitively. A parent id of
// zero marks a root. Cycles and chains deeper than maxDepth are configuration
// errors and abort the build.
func buildTreeMap(rels []model.ParentRelation, maxDepth int) (*TreeMap, error) {
	tm := &TreeMap{
		parents:     make(map[int64][]int64),
		children:    make(map[int64][]int64),
		descendants: make(map[int64]map[int64]struct{}),
		ancestors:   make(map[int64]map[int64]struct{}),
		nodeTypes:   make(map[int64]string),
	}
	for _, rel := range rels {
		tm.nodeTypes[rel.ID] = rel.Type
		if rel.ParentID == 0 || rel.ParentID == rel.ID {
			continue
		}
		tm.parents[rel.ID] = append(tm.parents[rel.ID], rel.ParentID)
		tm.children[rel.ParentID] = append(tm.children[rel.ParentID], rel.ID)
	}

	// Post-order accumulation: each node's descendant set is the union of its
	// direct children and their already-closed sets.
	inProgress := make(map[int64]bool)
	var descend func(id int64, depth int) (map[int64]struct{}, error)
	descend = func(id int64, depth int) (map[int64]struct{}, error) {
		if depth > maxDepth {
			return nil, fmt.Errorf("hierarchy deeper than %d levels at node %d", maxDepth, id)
		}
		if set, ok := tm.descendants[id]; ok {
			return set, nil
		}
		if inProgress[id] {
			return nil, fmt.Errorf("hierarchy cycle detected at node %d", id)
		}
		inProgress[id] = true
		set := make(map[int64]struct{})
		for _, child := range tm.children[id] {
			set[child] = struct{}{}
			childSet, err := descend(child, depth+1)
			if err != nil {
				return nil, err
			}
			for d := range childSet {
				set[d] = struct{}{}
			}
		}
		delete(inProgress, id)
		tm.descendants[id] = set
		return set, nil
	}
	for id := range tm.nodeTypes {
		if _, err := descend(id, 0); err != nil {
			return nil, err
		}
	}
	// A parent id may carry child edges without a mirrored row of its own.
	// Close over those too so assignments to such an id still expand.
	for id := range tm.children {
		if _, err := descend(id, 0); err != nil {
			return nil, err
		}
	}

	// Ancestors are the exact inverse of the closed descendant relation.
	for id, set := range tm.descendants {
		for d := range set {
			anc, ok := tm.ancestors[d]
			if !ok {
				anc = make(map[int64]struct{})
				tm.ancestors[d] = anc
			}
			anc[id] = struct{}{}
		}
	}
	return tm, nil
}

// DirectParents returns the immediate parents of id.
func (tm *TreeMap) DirectParents(id int64) []int64 { return tm.parents[id] }

// Descendants returns every id in the subtree below id.
func (tm *TreeMap) Descendants(id int64) map[int64]struct{} { return tm.descendants[id] }

// Ancestors returns every id on the parent chain above id.
func (tm *TreeMap) Ancestors(id int64) map[int64]struct{} { return tm.ancestors[id] }

// NodeType returns the concrete type recorded for id, or "" when unknown.
func (tm *TreeMap) NodeType(id int64) string { return tm.nodeTypes[id] }

// Nodes returns every node id the relation mentions.
func (tm *TreeMap) Nodes() []int64 {
	out := make([]int64, 0, len(tm.nodeTypes))
	for id := range tm.nodeTypes {
		out = append(out, id)
	}
	return out
}
