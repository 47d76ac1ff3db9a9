package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/contentguard/contentguard/internal/events"
	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/store"
)

// ContentService ingests the host environment's content mirror: posts,
// terms, users, roles, term links and registered content types. Mutations
// publish events so long-lived registry caches can be invalidated.
type ContentService struct {
	store store.Store
	bus   *events.Bus
	log   zerolog.Logger
}

// NewContentService wires a content service. bus may be nil in tests.
func NewContentService(st store.Store, bus *events.Bus, log zerolog.Logger) *ContentService {
	return &ContentService{store: st, bus: bus, log: log}
}

// RegisterContentType registers a postable type or taxonomy name.
func (s *ContentService) RegisterContentType(ctx context.Context, ct model.ContentType) error {
	if ct.Name == "" {
		return model.NewValidationError("name", "content type name is required")
	}
	if ct.Kind != model.ContentKindPost && ct.Kind != model.ContentKindTaxonomy {
		return model.NewValidationError("kind", fmt.Sprintf("kind must be %q or %q", model.ContentKindPost, model.ContentKindTaxonomy))
	}
	if err := s.store.Content().RegisterContentType(ctx, ct); err != nil {
		return err
	}
	s.publish(events.Event{Kind: events.EventContentTypeRegistered, TypeName: ct.Name, TypeKind: ct.Kind})
	return nil
}

// ListContentTypes returns the registered type names, optionally filtered by
// kind.
func (s *ContentService) ListContentTypes(ctx context.Context, kind string) ([]model.ContentType, error) {
	return s.store.Content().ContentTypes(ctx, kind)
}

// UpsertPost mirrors one content object.
func (s *ContentService) UpsertPost(ctx context.Context, p *model.HostPost) error {
	if p.PostType == "" {
		return model.NewValidationError("postType", "post type is required")
	}
	if err := s.store.Content().UpsertPost(ctx, p); err != nil {
		return err
	}
	s.publish(events.Event{Kind: events.EventContentMirrorUpdated})
	return nil
}

// UpsertTerm mirrors one taxonomy term.
func (s *ContentService) UpsertTerm(ctx context.Context, t *model.HostTerm) error {
	if t.Taxonomy == "" {
		return model.NewValidationError("taxonomy", "taxonomy is required")
	}
	if err := s.store.Content().UpsertTerm(ctx, t); err != nil {
		return err
	}
	s.publish(events.Event{Kind: events.EventContentMirrorUpdated})
	return nil
}

// UpsertUser mirrors one host user with its role ids.
func (s *ContentService) UpsertUser(ctx context.Context, u *model.HostUser) error {
	if err := s.store.Content().UpsertUser(ctx, u); err != nil {
		return err
	}
	s.publish(events.Event{Kind: events.EventContentMirrorUpdated})
	return nil
}

// UpsertRole mirrors one host role.
func (s *ContentService) UpsertRole(ctx context.Context, roleID int64, name string) error {
	if err := s.store.Content().UpsertRole(ctx, roleID, name); err != nil {
		return err
	}
	s.publish(events.Event{Kind: events.EventContentMirrorUpdated})
	return nil
}

// LinkTerm associates a content object with a term.
func (s *ContentService) LinkTerm(ctx context.Context, objectID, termID int64) error {
	if err := s.store.Content().LinkTerm(ctx, objectID, termID); err != nil {
		return err
	}
	s.publish(events.Event{Kind: events.EventContentMirrorUpdated})
	return nil
}

func (s *ContentService) publish(evt events.Event) {
	if s.bus == nil {
		return
	}
	if !s.bus.Publish(evt) {
		s.log.Warn().Str("event", string(evt.Kind)).Msg("event bus full, dropping invalidation event")
	}
}
