package access

import (
	"context"
	"fmt"
	"sort"

	"example.com/socialapi/internal/apperr"
)

// Default group names.
const (
	GroupViewers = "Viewers"
	GroupEditors = "Editors"
	GroupAdmins  = "Admins"
)

// Grant is one group's capabilities on one resource.
type Grant struct {
	Group        string
	Resource     Resource
	Capabilities []Capability
}

// Policy maps group -> resource -> capabilities. It is built once at startup
// and never mutated, so it is safe for concurrent use.
type Policy struct {
	groups map[string]map[Resource]capSet
}

// NewPolicy builds a Policy from grants. Grants for the same group and
// resource are merged.
func NewPolicy(grants []Grant) (*Policy, error) {
	p := &Policy{groups: make(map[string]map[Resource]capSet)}
	for _, g := range grants {
		if g.Group == "" {
			return nil, fmt.Errorf("grant without group name")
		}
		if !knownResources[g.Resource] {
			return nil, fmt.Errorf("group %s: unknown resource %q", g.Group, g.Resource)
		}
		byRes, ok := p.groups[g.Group]
		if !ok {
			byRes = make(map[Resource]capSet)
			p.groups[g.Group] = byRes
		}
		set := byRes[g.Resource]
		for _, c := range g.Capabilities {
			if c > CanDelete {
				return nil, fmt.Errorf("group %s: invalid capability %d", g.Group, c)
			}
			set = set.with(c)
		}
		byRes[g.Resource] = set
	}
	return p, nil
}

// DefaultGrants is the built-in group table used when no groups file is configured.
func DefaultGrants() []Grant {
	all := AllCapabilities
	return []Grant{
		{GroupViewers, ResourceBook, []Capability{CanView}},
		{GroupViewers, ResourceAuthor, []Capability{CanView}},

		{GroupEditors, ResourceBook, []Capability{CanView, CanCreate, CanEdit}},
		{GroupEditors, ResourceAuthor, []Capability{CanView, CanCreate, CanEdit}},

		{GroupAdmins, ResourceBook, all},
		{GroupAdmins, ResourceAuthor, all},
		{GroupAdmins, ResourcePost, []Capability{CanEdit, CanDelete}},
		{GroupAdmins, ResourceAccount, []Capability{CanDelete}},
		{GroupAdmins, ResourceGroup, []Capability{CanView, CanEdit}},
	}
}

// DefaultPolicy returns the Policy built from DefaultGrants.
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultGrants())
	if err != nil {
		panic(err)
	}
	return p
}

// Grants reports whether group grants c on r.
func (p *Policy) Grants(group string, r Resource, c Capability) bool {
	return p.groups[group][r].has(c)
}

// Authorize succeeds iff at least one of the actor's groups grants c on r.
// It has no side effects.
func (p *Policy) Authorize(a Actor, r Resource, c Capability) error {
	for _, g := range a.Groups {
		if p.Grants(g, r, c) {
			return nil
		}
	}
	return apperr.PermissionDenied("missing %s:%s permission", r, c)
}

// Can is Authorize as a boolean.
func (p *Policy) Can(a Actor, r Resource, c Capability) bool {
	return p.Authorize(a, r, c) == nil
}

// HasGroup reports whether the group is defined.
func (p *Policy) HasGroup(name string) bool {
	_, ok := p.groups[name]
	return ok
}

// Groups returns the defined group names, sorted.
func (p *Policy) Groups() []string {
	names := make([]string, 0, len(p.groups))
	for name := range p.groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Table lists every grant, sorted by group then resource.
func (p *Policy) Table() []Grant {
	var out []Grant
	for _, name := range p.Groups() {
		byRes := p.groups[name]
		resources := make([]string, 0, len(byRes))
		for r := range byRes {
			resources = append(resources, string(r))
		}
		sort.Strings(resources)
		for _, r := range resources {
			set := byRes[Resource(r)]
			var caps []Capability
			for _, c := range AllCapabilities {
				if set.has(c) {
					caps = append(caps, c)
				}
			}
			out = append(out, Grant{Group: name, Resource: Resource(r), Capabilities: caps})
		}
	}
	return out
}

// Actor is the authenticated caller of a request.
type Actor struct {
	AccountID string
	Groups    []string
}

type actorKey struct{}

// WithActor stores the actor in ctx.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}
