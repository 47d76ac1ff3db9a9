package store

import (
	"context"

	"github.com/contentguard/contentguard/internal/model"
)

// Store exposes persistence operations required by the registry and resolver.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
type Store interface {
	Groups() Groups
	Assignments() Assignments
	Content() Content
}

// Groups persists access-group identity rows.
type Groups interface {
	Create(ctx context.Context, g *model.Group) (*model.Group, error)
	Get(ctx context.Context, groupID string) (*model.Group, error)
	List(ctx context.Context) ([]*model.Group, error)
	Update(ctx context.Context, g *model.Group) error
	Delete(ctx context.Context, groupID string) error
}

// Assignments persists the rows binding objects to groups.
type Assignments interface {
	Insert(ctx context.Context, a *model.Assignment) error
	// ListForType returns every row for the group whose general or concrete
	// type matches objectType. Window filtering is the caller's concern.
	ListForType(ctx context.Context, groupID, groupType, objectType string) ([]*model.Assignment, error)
	// Delete removes rows whose general or concrete type matches objectType;
	// a non-nil objectID limits the delete to that object. Returns the number
	// of rows removed.
	Delete(ctx context.Context, groupID, groupType, objectType string, objectID *int64) (int64, error)
	// DeleteAllForGroup removes every assignment row of the group.
	DeleteAllForGroup(ctx context.Context, groupID, groupType string) (int64, error)
}

// Content reads and mirrors the host environment's object data: the flat
// parent relations the hierarchy builder closes over, term links, user/role
// records and registered type names. Get* return model.NotFoundError for
// absent records.
type Content interface {
	PostParents(ctx context.Context) ([]model.ParentRelation, error)
	TermParents(ctx context.Context) ([]model.ParentRelation, error)
	TermLinks(ctx context.Context) ([]model.TermLink, error)

	GetUser(ctx context.Context, userID int64) (*model.HostUser, error)
	GetPost(ctx context.Context, postID int64) (*model.HostPost, error)
	GetTerm(ctx context.Context, termID int64, taxonomy string) (*model.HostTerm, error)
	ListUserIDs(ctx context.Context) ([]int64, error)

	ContentTypes(ctx context.Context, kind string) ([]model.ContentType, error)
	RegisterContentType(ctx context.Context, ct model.ContentType) error

	UpsertUser(ctx context.Context, u *model.HostUser) error
	UpsertPost(ctx context.Context, p *model.HostPost) error
	UpsertTerm(ctx context.Context, t *model.HostTerm) error
	UpsertRole(ctx context.Context, roleID int64, name string) error
	LinkTerm(ctx context.Context, objectID, termID int64) error
}
