package group

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentguard/contentguard/internal/config"
	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/registry"
	"github.com/contentguard/contentguard/internal/store"
	"github.com/contentguard/contentguard/internal/store/sqlite"
)

type fixture struct {
	st      store.Store
	cfg     *config.Config
	reg     *registry.Registry
	factory *Factory
	res     *Resolver
}

func newFixture(t *testing.T, cfg *config.Config, clock Clock) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "group.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, sqlite.Bootstrap(db))
	st := sqlite.New(db)

	if cfg == nil {
		cfg = config.NewForTesting()
	}
	reg := registry.New(st, cfg.MaxTreeDepth)
	f := NewFactory(st, reg, cfg, clock, zerolog.Nop())

	g, err := st.Groups().Create(ctx, &model.Group{
		GroupID: "g1", GroupType: model.GroupTypeUserGroup, Name: "editors",
	})
	require.NoError(t, err)
	res, err := f.ForGroup(g)
	require.NoError(t, err)

	return &fixture{st: st, cfg: cfg, reg: reg, factory: f, res: res}
}

// seedTermTree stores the tree 3 → {1, 2}, 1 → {4}.
func seedTermTree(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 3, Taxonomy: "category"}))
	require.NoError(t, st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 1, Taxonomy: "category", ParentID: 3}))
	require.NoError(t, st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 2, Taxonomy: "category", ParentID: 3}))
	require.NoError(t, st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 4, Taxonomy: "category", ParentID: 1}))
}

func TestFactoryRejectsUnknownGroupType(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.factory.ForGroup(&model.Group{GroupID: "g2", GroupType: "mystery_group"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unrecognized group type")
}

func TestAddObjectRejectsUnknownType(t *testing.T) {
	f := newFixture(t, nil, nil)
	err := f.res.AddObject(context.Background(), "widget", 1, nil, nil)
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestIsObjectMemberFailsClosedOnUnknownType(t *testing.T) {
	f := newFixture(t, nil, nil)
	member, trace, err := f.res.IsObjectMember(context.Background(), "widget", 1)
	require.NoError(t, err)
	assert.False(t, member)
	assert.True(t, trace.Empty())
}

func TestDirectTermMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	seedTermTree(t, f.st)
	require.NoError(t, f.res.AddObject(ctx, "category", 3, nil, nil))

	member, trace, err := f.res.IsObjectMember(ctx, model.TypeTerm, 3)
	require.NoError(t, err)
	assert.True(t, member)
	assert.True(t, trace.Empty())

	locked, err := f.res.IsLockedRecursive(ctx, model.TypeTerm, 3)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestHierarchyTraceRecordsNearestAncestor(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	seedTermTree(t, f.st)
	require.NoError(t, f.res.AddObject(ctx, "category", 3, nil, nil))

	// child of the assigned term: trace names 3 with its real assignment info
	member, trace, err := f.res.IsObjectMember(ctx, model.TypeTerm, 1)
	require.NoError(t, err)
	assert.True(t, member)
	require.Contains(t, trace, model.KindTerm)
	require.Len(t, trace[model.KindTerm], 1)
	require.Contains(t, trace[model.KindTerm], int64(3))
	assert.Equal(t, "category", trace[model.KindTerm][3].Type)

	// grandchild: trace names the nearest member ancestor 1, not the root 3
	member, trace, err = f.res.IsObjectMember(ctx, model.TypeTerm, 4)
	require.NoError(t, err)
	assert.True(t, member)
	require.Contains(t, trace, model.KindTerm)
	require.Len(t, trace[model.KindTerm], 1)
	assert.Contains(t, trace[model.KindTerm], int64(1))

	locked, err := f.res.IsLockedRecursive(ctx, model.TypeTerm, 4)
	require.NoError(t, err)
	assert.True(t, locked)

	// sibling subtree stays out
	member, _, err = f.res.IsObjectMember(ctx, model.TypeTerm, 5)
	require.NoError(t, err)
	assert.False(t, member)
}

// The host may mirror a term whose parent id has no mirrored row. Assigning
// that parent must still expand, and the per-id verdict must agree with the
// full enumeration.
func TestAssignedUnmirroredParentStillExpands(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	require.NoError(t, f.st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 4, Taxonomy: "category", ParentID: 5}))
	require.NoError(t, f.res.AddObject(ctx, "category", 5, nil, nil))

	member, trace, err := f.res.IsObjectMember(ctx, model.TypeTerm, 4)
	require.NoError(t, err)
	assert.True(t, member)
	require.Contains(t, trace, model.KindTerm)
	assert.Contains(t, trace[model.KindTerm], int64(5))

	full, err := f.res.GetFullTerms(ctx)
	require.NoError(t, err)
	assert.Contains(t, full, int64(4))
	assert.Contains(t, full, int64(5))
}

func TestTermRecursionSwitchedOff(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.LockRecursiveTerms = false
	ctx := context.Background()
	f := newFixture(t, cfg, nil)
	seedTermTree(t, f.st)
	require.NoError(t, f.res.AddObject(ctx, "category", 3, nil, nil))

	member, _, err := f.res.IsObjectMember(ctx, model.TypeTerm, 1)
	require.NoError(t, err)
	assert.False(t, member)

	member, _, err = f.res.IsObjectMember(ctx, model.TypeTerm, 3)
	require.NoError(t, err)
	assert.True(t, member)
}

func TestPostMembershipThroughCrossLinkedTerm(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	seedTermTree(t, f.st)
	// post 2 is linked to term 9, a child of the assigned term 3
	require.NoError(t, f.st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 9, Taxonomy: "category", ParentID: 3}))
	require.NoError(t, f.st.Content().UpsertPost(ctx, &model.HostPost{PostID: 2, PostType: model.TypePost}))
	require.NoError(t, f.st.Content().LinkTerm(ctx, 2, 9))
	require.NoError(t, f.res.AddObject(ctx, "category", 3, nil, nil))

	member, trace, err := f.res.IsObjectMember(ctx, model.TypePost, 2)
	require.NoError(t, err)
	assert.True(t, member)
	require.Contains(t, trace, model.KindTerm)
	assert.Contains(t, trace[model.KindTerm], int64(9))
}

func TestCrossLinkIgnoresPostRecursionSwitch(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.LockRecursivePosts = false
	ctx := context.Background()
	f := newFixture(t, cfg, nil)
	require.NoError(t, f.st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 9, Taxonomy: "category"}))
	require.NoError(t, f.st.Content().UpsertPost(ctx, &model.HostPost{PostID: 2, PostType: model.TypePost}))
	require.NoError(t, f.st.Content().LinkTerm(ctx, 2, 9))
	require.NoError(t, f.res.AddObject(ctx, "category", 9, nil, nil))

	member, trace, err := f.res.IsObjectMember(ctx, model.TypePost, 2)
	require.NoError(t, err)
	assert.True(t, member)
	assert.Contains(t, trace, model.KindTerm)
}

func TestPostHierarchyMembership(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	require.NoError(t, f.st.Content().UpsertPost(ctx, &model.HostPost{PostID: 10, PostType: model.TypePage}))
	require.NoError(t, f.st.Content().UpsertPost(ctx, &model.HostPost{PostID: 11, PostType: model.TypePage, ParentID: 10}))
	require.NoError(t, f.res.AddObject(ctx, model.TypePage, 10, nil, nil))

	member, trace, err := f.res.IsObjectMember(ctx, model.TypePost, 11)
	require.NoError(t, err)
	assert.True(t, member)
	require.Contains(t, trace, model.KindPost)
	assert.Contains(t, trace[model.KindPost], int64(10))
}

func TestUserMembershipThroughRoles(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	require.NoError(t, f.st.Content().UpsertRole(ctx, 1, "administrator"))
	require.NoError(t, f.st.Content().UpsertUser(ctx, &model.HostUser{UserID: 7, Login: "alice", RoleIDs: []int64{1, 2}}))
	require.NoError(t, f.res.AddObject(ctx, model.TypeRole, 1, nil, nil))

	member, trace, err := f.res.IsObjectMember(ctx, model.TypeUser, 7)
	require.NoError(t, err)
	assert.True(t, member)
	require.Contains(t, trace, model.KindRole)
	require.Len(t, trace[model.KindRole], 1)
	assert.Contains(t, trace[model.KindRole], int64(1))
	assert.Equal(t, model.TypeRole, trace[model.KindRole][1].Type)

	locked, err := f.res.IsLockedRecursive(ctx, model.TypeUser, 7)
	require.NoError(t, err)
	assert.True(t, locked)

	// unknown user id has no role expansion
	member, _, err = f.res.IsObjectMember(ctx, model.TypeUser, 99)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestUserRecursionSwitchedOff(t *testing.T) {
	cfg := config.NewForTesting()
	cfg.LockRecursiveUsers = false
	ctx := context.Background()
	f := newFixture(t, cfg, nil)
	require.NoError(t, f.st.Content().UpsertUser(ctx, &model.HostUser{UserID: 7, Login: "alice", RoleIDs: []int64{1}}))
	require.NoError(t, f.res.AddObject(ctx, model.TypeRole, 1, nil, nil))

	member, _, err := f.res.IsObjectMember(ctx, model.TypeUser, 7)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestAssignmentTimeWindow(t *testing.T) {
	ctx := context.Background()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)

	inside := newFixture(t, nil, FixedClock(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, inside.st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 5, Taxonomy: "category"}))
	require.NoError(t, inside.res.AddObject(ctx, "category", 5, &from, &to))
	member, _, err := inside.res.IsObjectMember(ctx, model.TypeTerm, 5)
	require.NoError(t, err)
	assert.True(t, member)

	after := newFixture(t, nil, FixedClock(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, after.st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 5, Taxonomy: "category"}))
	require.NoError(t, after.res.AddObject(ctx, "category", 5, &from, &to))
	member, _, err = after.res.IsObjectMember(ctx, model.TypeTerm, 5)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestMutationClearsCaches(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	require.NoError(t, f.st.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 5, Taxonomy: "category"}))

	member, _, err := f.res.IsObjectMember(ctx, model.TypeTerm, 5)
	require.NoError(t, err)
	assert.False(t, member)

	require.NoError(t, f.res.AddObject(ctx, "category", 5, nil, nil))
	member, _, err = f.res.IsObjectMember(ctx, model.TypeTerm, 5)
	require.NoError(t, err)
	assert.True(t, member)

	require.NoError(t, f.res.RemoveObject(ctx, "category", ptr(int64(5))))
	member, _, err = f.res.IsObjectMember(ctx, model.TypeTerm, 5)
	require.NoError(t, err)
	assert.False(t, member)
}

func TestRemoveObjectZeroRowsIsNotFound(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	err := f.res.RemoveObject(ctx, model.TypeRole, nil)
	require.Error(t, err)
	assert.True(t, model.IsNotFoundError(err))

	require.NoError(t, f.res.AddObject(ctx, model.TypeRole, 1, nil, nil))
	require.NoError(t, f.res.AddObject(ctx, model.TypeRole, 2, nil, nil))
	// no id removes every row of the type
	require.NoError(t, f.res.RemoveObject(ctx, model.TypeRole, nil))

	assigned, err := f.res.GetAssignedObjects(ctx, model.KindRole)
	require.NoError(t, err)
	assert.Empty(t, assigned)
}

func TestRemoveObjectRejectsUnknownType(t *testing.T) {
	f := newFixture(t, nil, nil)
	err := f.res.RemoveObject(context.Background(), "widget", nil)
	require.Error(t, err)
	assert.True(t, model.IsValidationError(err))
}

func TestGetAssignedObjectsByType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	require.NoError(t, f.res.AddObject(ctx, model.TypePage, 1, nil, nil))
	require.NoError(t, f.res.AddObject(ctx, model.TypePost, 2, nil, nil))

	pages, err := f.res.GetAssignedObjectsByType(ctx, model.TypePage)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Contains(t, pages, int64(1))

	// the canonical kind name returns the whole bucket
	posts, err := f.res.GetAssignedObjectsByType(ctx, string(model.KindPost))
	require.NoError(t, err)
	assert.Len(t, posts, 2)
}

func TestDeleteGroupIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)
	require.NoError(t, f.res.AddObject(ctx, model.TypeRole, 1, nil, nil))

	require.NoError(t, f.res.Delete(ctx))
	require.NoError(t, f.res.Delete(ctx))

	_, err := f.st.Groups().Get(ctx, "g1")
	assert.True(t, model.IsNotFoundError(err))
}

func TestSaveDescriptiveFields(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil, nil)

	f.res.SetName("reviewers")
	f.res.SetDescription("review queue access")
	f.res.SetReadAccess("all")
	f.res.SetWriteAccess("group")
	f.res.SetIPRanges([]string{"10.0.0.0-10.0.0.255"})
	require.NoError(t, f.res.Save(ctx))

	g, err := f.st.Groups().Get(ctx, "g1")
	require.NoError(t, err)
	assert.Equal(t, "reviewers", g.Name)
	assert.Equal(t, "all", g.ReadAccess)
	assert.Equal(t, []string{"10.0.0.0-10.0.0.255"}, g.IPRangeList())
}

func ptr[T any](v T) *T { return &v }
