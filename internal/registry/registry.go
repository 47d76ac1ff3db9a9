// Package registry normalizes concrete content-type names into canonical
// kinds and builds the closed hierarchy and cross-link maps the membership
// resolver walks. One instance is shared across requests; the caches are
// read-mostly behind a mutex, and built tree maps are immutable so callers
// may keep using one across an invalidation.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/store"
)

// Built-in taxonomy names always present in the host environment.
var builtinTaxonomies = []string{"category", "post_tag"}

// Built-in postable type names.
var builtinPostTypes = []string{model.TypePost, model.TypePage, model.TypeAttachment}

type Registry struct {
	st       store.Store
	maxDepth int

	mu            sync.Mutex
	postTypes     map[string]struct{}
	taxonomies    map[string]struct{}
	typesLoaded   bool
	pluggables    map[string]PluggableType
	trees         map[model.ObjectKind]*TreeMap
	postTermLinks map[int64][]model.TermLink
	termPostLinks map[int64][]model.TermLink
	linksLoaded   bool
}

// New constructs a registry over the given store. maxDepth bounds the
// hierarchy closure depth.
func New(st store.Store, maxDepth int) *Registry {
	return &Registry{
		st:         st,
		maxDepth:   maxDepth,
		pluggables: make(map[string]PluggableType),
		trees:      make(map[model.ObjectKind]*TreeMap),
	}
}

// RegisterPluggable registers an externally-defined object kind. A handler
// with the same name overwrites the previous registration.
func (r *Registry) RegisterPluggable(p PluggableType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pluggables[p.Name()] = p
}

// Pluggable returns the handler registered under name.
func (r *Registry) Pluggable(name string) (PluggableType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pluggables[name]
	return p, ok
}

// PluggableForKind returns a handler whose general kind matches kind.
func (r *Registry) PluggableForKind(kind model.ObjectKind) (PluggableType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.pluggables {
		if p.GeneralKind() == kind {
			return p, true
		}
	}
	return nil, false
}

func (r *Registry) ensureTypesLocked(ctx context.Context) error {
	if r.typesLoaded {
		return nil
	}
	posts := make(map[string]struct{})
	for _, n := range builtinPostTypes {
		posts[n] = struct{}{}
	}
	taxes := make(map[string]struct{})
	for _, n := range builtinTaxonomies {
		taxes[n] = struct{}{}
	}
	cts, err := r.st.Content().ContentTypes(ctx, "")
	if err != nil {
		return err
	}
	for _, ct := range cts {
		switch ct.Kind {
		case model.ContentKindPost:
			posts[ct.Name] = struct{}{}
		case model.ContentKindTaxonomy:
			taxes[ct.Name] = struct{}{}
		}
	}
	r.postTypes = posts
	r.taxonomies = taxes
	r.typesLoaded = true
	return nil
}

// Classify maps a concrete type name to its canonical kind. Unknown names
// yield a model.ValidationError.
func (r *Registry) Classify(ctx context.Context, objectType string) (model.ObjectKind, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch objectType {
	case model.TypeUser:
		return model.KindUser, nil
	case model.TypeRole:
		return model.KindRole, nil
	case model.TypeTerm:
		return model.KindTerm, nil
	}
	if p, ok := r.pluggables[objectType]; ok {
		return p.GeneralKind(), nil
	}
	if err := r.ensureTypesLocked(ctx); err != nil {
		return "", err
	}
	if _, ok := r.postTypes[objectType]; ok {
		return model.KindPost, nil
	}
	if _, ok := r.taxonomies[objectType]; ok {
		return model.KindTerm, nil
	}
	return "", model.NewValidationError("objectType", fmt.Sprintf("unknown object type %q", objectType))
}

// IsValidType reports whether the name classifies to any canonical kind.
func (r *Registry) IsValidType(ctx context.Context, objectType string) bool {
	_, err := r.Classify(ctx, objectType)
	return err == nil
}

// PostableTypes returns the known postable type names.
func (r *Registry) PostableTypes(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureTypesLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(r.postTypes))
	for n := range r.postTypes {
		out = append(out, n)
	}
	return out, nil
}

// Taxonomies returns the known taxonomy names.
func (r *Registry) Taxonomies(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureTypesLocked(ctx); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(r.taxonomies))
	for n := range r.taxonomies {
		out = append(out, n)
	}
	return out, nil
}

// TreeMap returns the closed hierarchy for a hierarchical kind, building it
// from the flat parent relation on first use.
func (r *Registry) TreeMap(ctx context.Context, kind model.ObjectKind) (*TreeMap, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tm, ok := r.trees[kind]; ok {
		return tm, nil
	}

	var rels []model.ParentRelation
	var err error
	switch kind {
	case model.KindPost:
		rels, err = r.st.Content().PostParents(ctx)
	case model.KindTerm:
		rels, err = r.st.Content().TermParents(ctx)
	default:
		return nil, fmt.Errorf("kind %q has no hierarchy", kind)
	}
	if err != nil {
		return nil, err
	}
	tm, err := buildTreeMap(rels, r.maxDepth)
	if err != nil {
		return nil, err
	}
	r.trees[kind] = tm
	return tm, nil
}

func (r *Registry) ensureLinksLocked(ctx context.Context) error {
	if r.linksLoaded {
		return nil
	}
	links, err := r.st.Content().TermLinks(ctx)
	if err != nil {
		return err
	}
	byPost := make(map[int64][]model.TermLink)
	byTerm := make(map[int64][]model.TermLink)
	for _, l := range links {
		byPost[l.ObjectID] = append(byPost[l.ObjectID], l)
		byTerm[l.TermID] = append(byTerm[l.TermID], l)
	}
	r.postTermLinks = byPost
	r.termPostLinks = byTerm
	r.linksLoaded = true
	return nil
}

// PostTermLinks returns the terms linked to a post.
func (r *Registry) PostTermLinks(ctx context.Context, postID int64) ([]model.TermLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLinksLocked(ctx); err != nil {
		return nil, err
	}
	return r.postTermLinks[postID], nil
}

// TermPostLinks returns the posts linked to a term.
func (r *Registry) TermPostLinks(ctx context.Context, termID int64) ([]model.TermLink, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.ensureLinksLocked(ctx); err != nil {
		return nil, err
	}
	return r.termPostLinks[termID], nil
}

// InvalidateTypes drops the memoized type sets so the next classification
// reloads registered content types. Hierarchy maps are left alone: a new
// type name does not restructure existing trees.
func (r *Registry) InvalidateTypes() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.typesLoaded = false
	r.postTypes = nil
	r.taxonomies = nil
}

// InvalidateHierarchy drops the memoized trees and cross-link maps after a
// structural mutation of the mirrored content.
func (r *Registry) InvalidateHierarchy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trees = make(map[model.ObjectKind]*TreeMap)
	r.linksLoaded = false
	r.postTermLinks = nil
	r.termPostLinks = nil
}
