// Package identity holds caller identities, role assignments, and user
// profiles. Identities are opaque tokens minted by an external identity
// provider; this service never issues or verifies them, it only keys
// state by them.
package identity

import "context"

// ID is an opaque caller identity. The zero value means the caller is
// unauthenticated.
type ID string

// Anonymous reports whether the identity is absent (unauthenticated caller).
func (id ID) Anonymous() bool { return id == "" }

// Role governs what a caller may do. An identity with no stored
// assignment defaults to RoleUser when authenticated and RoleGuest
// otherwise.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleUser, RoleGuest:
		return true
	}
	return false
}

// Profile is a user-maintained display profile. Email is optional.
type Profile struct {
	Name  string
	Email string
}

// Repository defines persistence for role assignments and profiles.
// GetRole and GetProfile return ErrRoleNotSet / ErrProfileNotSet when no
// row exists for the identity; defaulting is the service's concern.
type Repository interface {
	GetRole(ctx context.Context, id ID) (Role, error)
	AssignRole(ctx context.Context, id ID, role Role) error
	GetProfile(ctx context.Context, id ID) (*Profile, error)
	SaveProfile(ctx context.Context, id ID, p Profile) error
}
