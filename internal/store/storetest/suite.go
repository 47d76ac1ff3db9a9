// Package storetest holds a driver-agnostic compliance suite for store.Store
// implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a clean, isolated store from makeStore.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	groupID := "g-" + uuid.New().String()

	// Groups
	g := &model.Group{GroupID: groupID, GroupType: model.GroupTypeUserGroup, Name: "editors"}
	if _, err := s.Groups().Create(ctx, g); err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if g.CreationTime.IsZero() {
		t.Fatalf("CreateGroup: creation time not set")
	}
	if _, err := s.Groups().Create(ctx, &model.Group{GroupID: groupID, GroupType: model.GroupTypeUserGroup, Name: "dup"}); !model.IsConflictError(err) {
		t.Fatalf("CreateGroup duplicate: want conflict, got %v", err)
	}
	got, err := s.Groups().Get(ctx, groupID)
	if err != nil || got.Name != "editors" {
		t.Fatalf("GetGroup: got=%v err=%v", got, err)
	}
	if _, err := s.Groups().Get(ctx, "g-missing"); !model.IsNotFoundError(err) {
		t.Fatalf("GetGroup missing: want not found, got %v", err)
	}
	got.Description = "edit everything"
	got.SetIPRanges([]string{"10.0.0.1-10.0.0.9", "192.168.1.1"})
	if err := s.Groups().Update(ctx, got); err != nil {
		t.Fatalf("UpdateGroup: %v", err)
	}
	got, err = s.Groups().Get(ctx, groupID)
	if err != nil || got.Description != "edit everything" || len(got.IPRangeList()) != 2 {
		t.Fatalf("GetGroup after update: got=%v err=%v", got, err)
	}
	if err := s.Groups().Update(ctx, &model.Group{GroupID: "g-missing"}); !model.IsNotFoundError(err) {
		t.Fatalf("UpdateGroup missing: want not found, got %v", err)
	}
	if lst, err := s.Groups().List(ctx); err != nil || len(lst) == 0 {
		t.Fatalf("ListGroups: n=%d err=%v", len(lst), err)
	}

	// Assignments: concrete type rows must come back for both the concrete
	// name and the general kind.
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)
	asg := &model.Assignment{
		GroupID: groupID, GroupType: model.GroupTypeUserGroup,
		ObjectID: 1, GeneralType: model.KindPost, ObjectType: model.TypePage,
		FromDate: &from, ToDate: &to,
	}
	if err := s.Assignments().Insert(ctx, asg); err != nil {
		t.Fatalf("InsertAssignment: %v", err)
	}
	if err := s.Assignments().Insert(ctx, &model.Assignment{
		GroupID: groupID, GroupType: model.GroupTypeUserGroup,
		ObjectID: 2, GeneralType: model.KindPost, ObjectType: model.TypePost,
	}); err != nil {
		t.Fatalf("InsertAssignment post: %v", err)
	}

	byConcrete, err := s.Assignments().ListForType(ctx, groupID, model.GroupTypeUserGroup, model.TypePage)
	if err != nil || len(byConcrete) != 1 || byConcrete[0].ObjectID != 1 {
		t.Fatalf("ListForType page: n=%d err=%v", len(byConcrete), err)
	}
	if byConcrete[0].FromDate == nil || !byConcrete[0].FromDate.Equal(from) {
		t.Fatalf("ListForType page: window not round-tripped: %+v", byConcrete[0])
	}
	byGeneral, err := s.Assignments().ListForType(ctx, groupID, model.GroupTypeUserGroup, string(model.KindPost))
	if err != nil || len(byGeneral) != 2 {
		t.Fatalf("ListForType general post: n=%d err=%v", len(byGeneral), err)
	}

	// Re-insert replaces the window instead of erroring.
	if err := s.Assignments().Insert(ctx, &model.Assignment{
		GroupID: groupID, GroupType: model.GroupTypeUserGroup,
		ObjectID: 1, GeneralType: model.KindPost, ObjectType: model.TypePage,
	}); err != nil {
		t.Fatalf("InsertAssignment replace: %v", err)
	}
	byConcrete, err = s.Assignments().ListForType(ctx, groupID, model.GroupTypeUserGroup, model.TypePage)
	if err != nil || len(byConcrete) != 1 || byConcrete[0].FromDate != nil {
		t.Fatalf("ListForType after replace: n=%d err=%v rows=%+v", len(byConcrete), err, byConcrete)
	}

	// Delete single object, then zero-row delete.
	oid := int64(1)
	n, err := s.Assignments().Delete(ctx, groupID, model.GroupTypeUserGroup, model.TypePage, &oid)
	if err != nil || n != 1 {
		t.Fatalf("DeleteAssignment: n=%d err=%v", n, err)
	}
	n, err = s.Assignments().Delete(ctx, groupID, model.GroupTypeUserGroup, model.TypePage, &oid)
	if err != nil || n != 0 {
		t.Fatalf("DeleteAssignment repeat: n=%d err=%v", n, err)
	}
	n, err = s.Assignments().DeleteAllForGroup(ctx, groupID, model.GroupTypeUserGroup)
	if err != nil || n != 1 {
		t.Fatalf("DeleteAllForGroup: n=%d err=%v", n, err)
	}

	// Content mirror
	if err := s.Content().UpsertPost(ctx, &model.HostPost{PostID: 10, PostType: model.TypePost}); err != nil {
		t.Fatalf("UpsertPost: %v", err)
	}
	if err := s.Content().UpsertPost(ctx, &model.HostPost{PostID: 11, PostType: model.TypePage, ParentID: 10}); err != nil {
		t.Fatalf("UpsertPost child: %v", err)
	}
	if p, err := s.Content().GetPost(ctx, 11); err != nil || p.ParentID != 10 || p.PostType != model.TypePage {
		t.Fatalf("GetPost: got=%+v err=%v", p, err)
	}
	if _, err := s.Content().GetPost(ctx, 999); !model.IsNotFoundError(err) {
		t.Fatalf("GetPost missing: want not found, got %v", err)
	}
	rels, err := s.Content().PostParents(ctx)
	if err != nil || len(rels) != 2 {
		t.Fatalf("PostParents: n=%d err=%v", len(rels), err)
	}

	if err := s.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 3, Taxonomy: "category"}); err != nil {
		t.Fatalf("UpsertTerm: %v", err)
	}
	if err := s.Content().UpsertTerm(ctx, &model.HostTerm{TermID: 4, Taxonomy: "category", ParentID: 3}); err != nil {
		t.Fatalf("UpsertTerm child: %v", err)
	}
	if tm, err := s.Content().GetTerm(ctx, 4, "category"); err != nil || tm.ParentID != 3 {
		t.Fatalf("GetTerm: got=%+v err=%v", tm, err)
	}
	if _, err := s.Content().GetTerm(ctx, 4, "nav_menu"); !model.IsNotFoundError(err) {
		t.Fatalf("GetTerm wrong taxonomy: want not found, got %v", err)
	}
	if rels, err := s.Content().TermParents(ctx); err != nil || len(rels) != 2 {
		t.Fatalf("TermParents: n=%d err=%v", len(rels), err)
	}

	if err := s.Content().LinkTerm(ctx, 11, 4); err != nil {
		t.Fatalf("LinkTerm: %v", err)
	}
	if err := s.Content().LinkTerm(ctx, 11, 4); err != nil {
		t.Fatalf("LinkTerm repeat: %v", err)
	}
	links, err := s.Content().TermLinks(ctx)
	if err != nil || len(links) != 1 {
		t.Fatalf("TermLinks: n=%d err=%v", len(links), err)
	}
	if links[0].PostType != model.TypePage || links[0].Taxonomy != "category" {
		t.Fatalf("TermLinks: joined types wrong: %+v", links[0])
	}

	// Users and roles
	if err := s.Content().UpsertRole(ctx, 1, "administrator"); err != nil {
		t.Fatalf("UpsertRole: %v", err)
	}
	if err := s.Content().UpsertUser(ctx, &model.HostUser{UserID: 7, Login: "alice", RoleIDs: []int64{1, 2}}); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	u, err := s.Content().GetUser(ctx, 7)
	if err != nil || u.Login != "alice" || len(u.RoleIDs) != 2 {
		t.Fatalf("GetUser: got=%+v err=%v", u, err)
	}
	if err := s.Content().UpsertUser(ctx, &model.HostUser{UserID: 7, Login: "alice", RoleIDs: []int64{2}}); err != nil {
		t.Fatalf("UpsertUser replace roles: %v", err)
	}
	if u, err := s.Content().GetUser(ctx, 7); err != nil || len(u.RoleIDs) != 1 || u.RoleIDs[0] != 2 {
		t.Fatalf("GetUser after role replace: got=%+v err=%v", u, err)
	}
	if _, err := s.Content().GetUser(ctx, 999); !model.IsNotFoundError(err) {
		t.Fatalf("GetUser missing: want not found, got %v", err)
	}
	if ids, err := s.Content().ListUserIDs(ctx); err != nil || len(ids) != 1 || ids[0] != 7 {
		t.Fatalf("ListUserIDs: got=%v err=%v", ids, err)
	}

	// Content types
	if err := s.Content().RegisterContentType(ctx, model.ContentType{Name: "product", Kind: model.ContentKindPost}); err != nil {
		t.Fatalf("RegisterContentType: %v", err)
	}
	if err := s.Content().RegisterContentType(ctx, model.ContentType{Name: "brand", Kind: model.ContentKindTaxonomy}); err != nil {
		t.Fatalf("RegisterContentType taxonomy: %v", err)
	}
	if cts, err := s.Content().ContentTypes(ctx, model.ContentKindPost); err != nil || len(cts) != 1 || cts[0].Name != "product" {
		t.Fatalf("ContentTypes post: got=%v err=%v", cts, err)
	}
	if cts, err := s.Content().ContentTypes(ctx, ""); err != nil || len(cts) != 2 {
		t.Fatalf("ContentTypes all: got=%v err=%v", cts, err)
	}

	// Group delete is idempotent.
	if err := s.Groups().Delete(ctx, groupID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	if err := s.Groups().Delete(ctx, groupID); err != nil {
		t.Fatalf("DeleteGroup repeat: %v", err)
	}
	if _, err := s.Groups().Get(ctx, groupID); !model.IsNotFoundError(err) {
		t.Fatalf("GetGroup after delete: want not found, got %v", err)
	}
}
