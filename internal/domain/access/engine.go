// Package access decides whether a principal may act on a resource.
//
// Decisions are pure functions of (principal, resource). The engine never
// panics and has no side effects; callers translate a Deny into the same
// not-found response used for absent resources.
package access

import (
	"github.com/target/seclab-api/internal/domain/auth"
	apperrors "github.com/target/seclab-api/internal/errors"
)

// Decision is the outcome of an access check.
type Decision int

const (
	Deny Decision = iota
	Allow
)

func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// Kind names the resource family being checked; it only feeds logs and metrics.
type Kind string

const (
	KindOrder       Kind = "order"
	KindTransaction Kind = "transaction"
	KindFile        Kind = "file"
	KindUser        Kind = "user"
	KindStation     Kind = "station"
)

// Resource is the view of a record the engine needs.
// OwnerID of zero means the resource has no owner; an empty Region means it has no region tag.
type Resource struct {
	Kind    Kind
	ID      int64
	OwnerID int64
	Region  string
}

// Decide returns Allow iff the principal owns the resource, or holds a
// region-scoped role whose department matches the resource region.
func Decide(p *auth.Principal, r Resource) Decision {
	if p == nil || p.ID == 0 {
		return Deny
	}
	if r.OwnerID != 0 && r.OwnerID == p.ID {
		return Allow
	}
	if p.Role.RegionScoped() && p.Department != "" && r.Region == p.Department {
		return Allow
	}
	return Deny
}

// Authorize folds lookup and decision into one error. A missing resource and
// a denied one produce identical errors.
func Authorize(p *auth.Principal, r Resource, found bool) error {
	if !found || Decide(p, r) == Deny {
		return ErrNotFound(r.Kind)
	}
	return nil
}

// ErrNotFound builds the not-found error returned for both absent and denied resources.
func ErrNotFound(k Kind) error {
	if k == "" {
		return apperrors.NotFound("not found")
	}
	return apperrors.NotFoundf("%s not found", k)
}

// ListScope is the filter a list endpoint applies so that every returned
// row would be allowed by Decide.
type ListScope struct {
	OwnerID int64
	Region  string
}

// Empty reports whether the scope matches nothing.
func (s ListScope) Empty() bool { return s.OwnerID == 0 && s.Region == "" }

// Scope returns the list filter for p. A nil principal gets an empty scope.
func Scope(p *auth.Principal) ListScope {
	if p == nil || p.ID == 0 {
		return ListScope{}
	}
	s := ListScope{OwnerID: p.ID}
	if p.Role.RegionScoped() && p.Department != "" {
		s.Region = p.Department
	}
	return s
}
