package model

import (
	"strings"
	"time"
)

// ObjectKind is the canonical bucket a concrete object type name resolves to.
// The fixed kinds below are always known; registered pluggable kinds extend
// the set at runtime under their own names.
type ObjectKind string

const (
	KindPost ObjectKind = "post"
	KindTerm ObjectKind = "term"
	KindUser ObjectKind = "user"
	KindRole ObjectKind = "role"
)

// Built-in concrete type names. Registered post types and taxonomies extend
// the postable and term sets.
const (
	TypePost       = "post"
	TypePage       = "page"
	TypeAttachment = "attachment"
	TypeTerm       = "term"
	TypeUser       = "user"
	TypeRole       = "role"
)

// ContentType kinds stored in the content_types table.
const (
	ContentKindPost     = "post"
	ContentKindTaxonomy = "taxonomy"
)

// Group is an access-control group. IPRange is persisted as a ';'-joined
// string; use SetIPRanges/IPRangeList for the slice view.
type Group struct {
	GroupID      string    `json:"groupId"`
	GroupType    string    `json:"groupType"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	ReadAccess   string    `json:"readAccess"`
	WriteAccess  string    `json:"writeAccess"`
	IPRange      string    `json:"ipRange,omitempty"`
	CreationTime time.Time `json:"creationTime"`
}

// Group type discriminators. Constructing a resolver with any other value is
// a wiring bug and fails fast.
const (
	GroupTypeUserGroup = "user_group"
	GroupTypeDynamic   = "dynamic_user_group"
)

const ipRangeSeparator = ";"

// IPRangeList splits the stored range string into its entries.
func (g *Group) IPRangeList() []string {
	if g.IPRange == "" {
		return nil
	}
	return strings.Split(g.IPRange, ipRangeSeparator)
}

// SetIPRanges joins the entries into the stored representation.
func (g *Group) SetIPRanges(ranges []string) {
	g.IPRange = strings.Join(ranges, ipRangeSeparator)
}

// Assignment is one row binding an object to a group, optionally bounded by a
// validity window. Rows are immutable; a window change is delete+insert.
type Assignment struct {
	GroupID      string     `json:"groupId"`
	GroupType    string     `json:"groupType"`
	ObjectID     int64      `json:"objectId"`
	GeneralType  ObjectKind `json:"generalType"`
	ObjectType   string     `json:"objectType"`
	FromDate     *time.Time `json:"fromDate,omitempty"`
	ToDate       *time.Time `json:"toDate,omitempty"`
	CreationTime time.Time  `json:"creationTime"`
}

// AssignmentInformation explains one membership: the concrete type of the
// matched assignment and its validity window.
type AssignmentInformation struct {
	Type     string     `json:"type"`
	FromDate *time.Time `json:"fromDate,omitempty"`
	ToDate   *time.Time `json:"toDate,omitempty"`
}

// ActiveAt reports whether the window contains t. Unset bounds are open.
func (ai *AssignmentInformation) ActiveAt(t time.Time) bool {
	if ai.FromDate != nil && t.Before(*ai.FromDate) {
		return false
	}
	if ai.ToDate != nil && t.After(*ai.ToDate) {
		return false
	}
	return true
}

// Trace maps canonical kind → intermediate object id → the assignment
// information that justifies a transitive membership verdict.
type Trace map[ObjectKind]map[int64]*AssignmentInformation

// Add records one intermediate object in the trace.
func (t Trace) Add(kind ObjectKind, id int64, info *AssignmentInformation) {
	m, ok := t[kind]
	if !ok {
		m = make(map[int64]*AssignmentInformation)
		t[kind] = m
	}
	m[id] = info
}

// Empty reports whether the trace holds no entries.
func (t Trace) Empty() bool {
	for _, m := range t {
		if len(m) > 0 {
			return false
		}
	}
	return true
}

// HostUser is the host environment's user record.
type HostUser struct {
	UserID  int64   `json:"userId"`
	Login   string  `json:"login"`
	RoleIDs []int64 `json:"roleIds,omitempty"`
}

// HostPost is the host environment's content object record.
type HostPost struct {
	PostID   int64  `json:"postId"`
	PostType string `json:"postType"`
	ParentID int64  `json:"parentId,omitempty"`
}

// HostTerm is the host environment's taxonomy term record.
type HostTerm struct {
	TermID   int64  `json:"termId"`
	Taxonomy string `json:"taxonomy"`
	ParentID int64  `json:"parentId,omitempty"`
}

// ParentRelation is one edge of a flat parent-id relation read from storage.
type ParentRelation struct {
	ID       int64
	ParentID int64
	Type     string
}

// TermLink associates a content object with a taxonomy term.
type TermLink struct {
	ObjectID int64
	TermID   int64
	PostType string
	Taxonomy string
}

// ContentType is a registered concrete type name and its content kind.
type ContentType struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}
