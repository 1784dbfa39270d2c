// Package token issues and verifies the signed identity tokens carried by
// storefront requests. Every request ends up with exactly one identity:
// a registered user decoded from a valid bearer token, or an ephemeral
// anonymous visitor minted on the spot. Invalid and expired tokens never
// fail a request; they downgrade to a fresh anonymous identity.
package token

import (
	"time"
)

// Role is the authorization level carried by an authenticated identity.
type Role string

const (
	// RoleCustomer is the default role; anonymous visitors always have it.
	RoleCustomer Role = "customer"

	// RoleAdmin can manage catalog and orders.
	RoleAdmin Role = "admin"

	// RoleSuperAdmin can additionally manage admins.
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole maps a wire value onto a known role. Unknown values degrade to
// customer; a token can never smuggle in an elevated role by typo.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin
	case RoleSuperAdmin:
		return RoleSuperAdmin
	default:
		return RoleCustomer
	}
}

// Identity is the decoded subject of a token: exactly one of Authenticated
// or Anonymous. Consumers branch with a type switch; there are no optional
// fields gated by a flag.
type Identity interface {
	// Subject returns the identifier downstream systems key caches by.
	Subject() string

	sealed()
}

// Authenticated is the identity of a registered user.
type Authenticated struct {
	UserID string
	Email  string // optional, empty when the directory has no record
	Role   Role
}

// Subject returns the user ID.
func (a Authenticated) Subject() string { return a.UserID }

func (Authenticated) sealed() {}

// Anonymous is the identity of an ephemeral visitor. Anonymous identities
// are cheap to reissue, so their tokens live longer to reduce churn.
type Anonymous struct {
	VisitorID string
	SessionID string
	CreatedAt time.Time
}

// Subject returns the visitor ID.
func (a Anonymous) Subject() string { return a.VisitorID }

func (Anonymous) sealed() {}

// Access is the set of authorization booleans derived from an identity.
// Derived, never stored: there is no "authenticated but unauthorized"
// state to persist.
type Access struct {
	IsAuthenticated bool
	IsAdmin         bool
	IsSuperAdmin    bool
}

// AccessFor derives authorization from an identity.
func AccessFor(id Identity) Access {
	switch v := id.(type) {
	case Authenticated:
		return Access{
			IsAuthenticated: true,
			IsAdmin:         v.Role == RoleAdmin || v.Role == RoleSuperAdmin,
			IsSuperAdmin:    v.Role == RoleSuperAdmin,
		}
	case Anonymous:
		return Access{}
	default:
		return Access{}
	}
}
