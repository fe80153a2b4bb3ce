// Package access implements the role-based permission gate: a fixed set of
// capabilities, resources they apply to, and an immutable mapping of group
// names to the capabilities they grant.
package access

import (
	"fmt"
	"strings"
)

// Capability is an atomic permission token scoped to a Resource.
type Capability uint8

const (
	CanView Capability = iota
	CanCreate
	CanEdit
	CanDelete
)

// AllCapabilities lists every capability in display order.
var AllCapabilities = []Capability{CanView, CanCreate, CanEdit, CanDelete}

func (c Capability) String() string {
	switch c {
	case CanView:
		return "view"
	case CanCreate:
		return "create"
	case CanEdit:
		return "edit"
	case CanDelete:
		return "delete"
	default:
		return fmt.Sprintf("capability(%d)", uint8(c))
	}
}

// Codename is the permission codename, e.g. "can_edit".
func (c Capability) Codename() string {
	return "can_" + c.String()
}

// ParseCapability accepts both "edit" and "can_edit".
func ParseCapability(s string) (Capability, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "can_") {
	case "view":
		return CanView, nil
	case "create":
		return CanCreate, nil
	case "edit":
		return CanEdit, nil
	case "delete":
		return CanDelete, nil
	}
	return 0, fmt.Errorf("unknown capability %q", s)
}

// Resource is a resource type capabilities are bound to.
type Resource string

const (
	ResourceBook    Resource = "book"
	ResourceAuthor  Resource = "author"
	ResourcePost    Resource = "post"
	ResourceAccount Resource = "account"
	ResourceGroup   Resource = "group"
)

var knownResources = map[Resource]bool{
	ResourceBook:    true,
	ResourceAuthor:  true,
	ResourcePost:    true,
	ResourceAccount: true,
	ResourceGroup:   true,
}

// ParseResource validates a resource name.
func ParseResource(s string) (Resource, error) {
	r := Resource(strings.ToLower(strings.TrimSpace(s)))
	if !knownResources[r] {
		return "", fmt.Errorf("unknown resource %q", s)
	}
	return r, nil
}

// capSet is a bitmask of capabilities.
type capSet uint8

func (s capSet) has(c Capability) bool { return s&(1<<c) != 0 }

func (s capSet) with(c Capability) capSet { return s | 1<<c }
