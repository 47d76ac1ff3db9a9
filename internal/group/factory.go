package group

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/contentguard/contentguard/internal/config"
	"github.com/contentguard/contentguard/internal/model"
	"github.com/contentguard/contentguard/internal/registry"
	"github.com/contentguard/contentguard/internal/store"
)

// Factory constructs resolvers for stored groups. An unrecognized group type
// discriminator is a wiring bug and fails fast.
type Factory struct {
	st    store.Store
	reg   *registry.Registry
	cfg   *config.Config
	clock Clock
	log   zerolog.Logger
}

// NewFactory wires a resolver factory over one registry and store.
func NewFactory(st store.Store, reg *registry.Registry, cfg *config.Config, clock Clock, log zerolog.Logger) *Factory {
	if clock == nil {
		clock = SystemClock()
	}
	return &Factory{st: st, reg: reg, cfg: cfg, clock: clock, log: log}
}

// ForGroup returns a resolver for the group record.
func (f *Factory) ForGroup(g *model.Group) (*Resolver, error) {
	switch g.GroupType {
	case model.GroupTypeUserGroup, model.GroupTypeDynamic:
		return newResolver(g, f.st, f.reg, f.cfg, f.clock, f.log), nil
	default:
		return nil, fmt.Errorf("unrecognized group type %q for group %s", g.GroupType, g.GroupID)
	}
}

// NewUserGroup constructs a resolver for a regular user group record.
func (f *Factory) NewUserGroup(g *model.Group) (*Resolver, error) {
	g.GroupType = model.GroupTypeUserGroup
	return f.ForGroup(g)
}

// NewDynamicGroup constructs a resolver for a dynamic group record. Dynamic
// groups live outside the stored group table lifecycle but resolve
// membership the same way.
func (f *Factory) NewDynamicGroup(g *model.Group) (*Resolver, error) {
	g.GroupType = model.GroupTypeDynamic
	return f.ForGroup(g)
}

// Registry exposes the shared registry, mainly for pluggable registration.
func (f *Factory) Registry() *registry.Registry { return f.reg }
