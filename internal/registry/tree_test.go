package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentguard/contentguard/internal/model"
)

func termRelations() []model.ParentRelation {
	return []model.ParentRelation{
		{ID: 3, ParentID: 0, Type: "category"},
		{ID: 1, ParentID: 3, Type: "category"},
		{ID: 2, ParentID: 3, Type: "category"},
		{ID: 4, ParentID: 1, Type: "category"},
	}
}

func TestBuildTreeMapClosure(t *testing.T) {
	tm, err := buildTreeMap(termRelations(), 64)
	require.NoError(t, err)

	assert.Len(t, tm.Descendants(3), 3)
	assert.Contains(t, tm.Descendants(3), int64(4))
	assert.Len(t, tm.Descendants(1), 1)
	assert.Empty(t, tm.Descendants(4))

	assert.Len(t, tm.Ancestors(4), 2)
	assert.Contains(t, tm.Ancestors(4), int64(1))
	assert.Contains(t, tm.Ancestors(4), int64(3))

	assert.Equal(t, []int64{1}, tm.DirectParents(4))
	assert.Equal(t, "category", tm.NodeType(2))
}

// Descendant and ancestor maps must be exact inverses.
func TestTreeMapClosureBijection(t *testing.T) {
	tm, err := buildTreeMap(termRelations(), 64)
	require.NoError(t, err)

	for _, a := range tm.Nodes() {
		for b := range tm.Descendants(a) {
			_, ok := tm.Ancestors(b)[a]
			assert.True(t, ok, "%d in descendants(%d) but %d not in ancestors(%d)", b, a, a, b)
		}
		for b := range tm.Ancestors(a) {
			_, ok := tm.Descendants(b)[a]
			assert.True(t, ok, "%d in ancestors(%d) but %d not in descendants(%d)", b, a, a, b)
		}
	}
}

func TestBuildTreeMapDetectsCycle(t *testing.T) {
	rels := []model.ParentRelation{
		{ID: 1, ParentID: 2, Type: "category"},
		{ID: 2, ParentID: 1, Type: "category"},
	}
	_, err := buildTreeMap(rels, 64)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycle")
}

func TestBuildTreeMapDepthCutoff(t *testing.T) {
	rels := []model.ParentRelation{
		{ID: 1, ParentID: 0, Type: "category"},
		{ID: 2, ParentID: 1, Type: "category"},
		{ID: 3, ParentID: 2, Type: "category"},
		{ID: 4, ParentID: 3, Type: "category"},
	}
	_, err := buildTreeMap(rels, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deeper than")

	_, err = buildTreeMap(rels, 64)
	require.NoError(t, err)
}

// A child may reference a parent id that never appears as a node of its own.
// The closure must still expand below that id.
func TestBuildTreeMapClosesOverUnmirroredParent(t *testing.T) {
	rels := []model.ParentRelation{
		{ID: 4, ParentID: 5, Type: "category"},
		{ID: 6, ParentID: 4, Type: "category"},
	}
	tm, err := buildTreeMap(rels, 64)
	require.NoError(t, err)

	assert.Len(t, tm.Descendants(5), 2)
	assert.Contains(t, tm.Descendants(5), int64(4))
	assert.Contains(t, tm.Descendants(5), int64(6))

	assert.Contains(t, tm.Ancestors(4), int64(5))
	assert.Contains(t, tm.Ancestors(6), int64(5))
}

func TestBuildTreeMapIgnoresSelfParent(t *testing.T) {
	rels := []model.ParentRelation{
		{ID: 1, ParentID: 1, Type: "category"},
	}
	tm, err := buildTreeMap(rels, 64)
	require.NoError(t, err)
	assert.Empty(t, tm.Descendants(1))
}
