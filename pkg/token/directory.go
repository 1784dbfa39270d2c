package token

import (
	"context"
	"errors"
)

// ErrNoProfile indicates the identity backend has no record for a user.
var ErrNoProfile = errors.New("no profile record")

// Directory is the identity backend consulted when issuing authenticated
// tokens. Lookups that fail or find nothing degrade to role customer and
// an empty email; issuance never fails because enrichment failed.
type Directory interface {
	// UserRole returns the role on a user's profile, or ErrNoProfile.
	UserRole(ctx context.Context, userID string) (Role, error)

	// UserEmail returns the email on a user's profile, or ErrNoProfile.
	UserEmail(ctx context.Context, userID string) (string, error)
}

// NopDirectory is a Directory with no records. Every lookup reports
// ErrNoProfile, so every issued token carries role customer.
type NopDirectory struct{}

// UserRole implements Directory.
func (NopDirectory) UserRole(ctx context.Context, userID string) (Role, error) {
	return "", ErrNoProfile
}

// UserEmail implements Directory.
func (NopDirectory) UserEmail(ctx context.Context, userID string) (string, error) {
	return "", ErrNoProfile
}
