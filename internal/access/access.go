// Package access maps caller roles onto retrieval visibility predicates.
package access

import (
	"strings"

	"ragchat/internal/domain"
)

// Role is the closed set of caller roles.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleLecturer  Role = "lecturer"
	RoleStudent   Role = "student"
	RoleAnonymous Role = "anonymous"
)

// ParseRole maps a caller-supplied role string onto the closed Role set.
// Anything unrecognized collapses to RoleAnonymous, the most restrictive
// case.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleLecturer:
		return RoleLecturer
	case RoleStudent:
		return RoleStudent
	default:
		return RoleAnonymous
	}
}

// Resolve returns the visibility predicate for a role. Pure function; the
// predicate is built per request and never cached across callers.
//
// admin sees everything, lecturer sees public and internal, student and
// anonymous see public only.
func Resolve(r Role) domain.Predicate {
	switch r {
	case RoleAdmin:
		return domain.UnrestrictedPredicate()
	case RoleLecturer:
		return domain.PredicateOf(domain.VisibilityPublic, domain.VisibilityInternal)
	case RoleStudent, RoleAnonymous:
		return domain.PredicateOf(domain.VisibilityPublic)
	default:
		return domain.PredicateOf(domain.VisibilityPublic)
	}
}
