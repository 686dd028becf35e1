package identity

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/card-market/internal/domain/fault"
)

// Sentinel errors returned by repositories when no row exists for an
// identity. The service translates absence into defaults (roles) or a
// nil profile; repositories never default.
var (
	ErrRoleNotSet    = errors.New("role not set")
	ErrProfileNotSet = errors.New("profile not set")
)

// Service implements role resolution, role assignment, and profile
// management on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates an identity Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Role resolves the effective role of an identity. Unauthenticated
// callers are guests; authenticated callers with no stored assignment
// are users. Role never fails on absence.
func (s *Service) Role(ctx context.Context, id ID) (Role, error) {
	if id.Anonymous() {
		return RoleGuest, nil
	}
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		if errors.Is(err, ErrRoleNotSet) {
			return RoleUser, nil
		}
		return "", errors.Wrap(err, "get role")
	}
	return role, nil
}

// IsAdmin reports whether the identity currently holds the admin role.
func (s *Service) IsAdmin(ctx context.Context, id ID) (bool, error) {
	role, err := s.Role(ctx, id)
	if err != nil {
		return false, err
	}
	return role == RoleAdmin, nil
}

// AssignRole overwrites the role of target. Only an admin may assign
// roles, including granting admin and demoting themselves; there is no
// last-admin guard, the grant-admin bootstrap tool can always restore
// access out of band.
func (s *Service) AssignRole(ctx context.Context, caller ID, target ID, role Role) error {
	callerRole, err := s.Role(ctx, caller)
	if err != nil {
		return err
	}
	if callerRole != RoleAdmin {
		return fault.New(fault.Unauthorized, "only admins may assign roles")
	}
	if target.Anonymous() {
		return fault.New(fault.InvalidArgument, "target identity required")
	}
	if !role.Valid() {
		return fault.New(fault.InvalidArgument, "unknown role %q", role)
	}
	return s.repo.AssignRole(ctx, target, role)
}

// SaveProfile validates and overwrites the caller's own profile.
// Cross-identity writes are impossible by construction: the profile is
// always stored under the caller's identity.
func (s *Service) SaveProfile(ctx context.Context, caller ID, p Profile) error {
	role, err := s.Role(ctx, caller)
	if err != nil {
		return err
	}
	if caller.Anonymous() || role == RoleGuest {
		return fault.New(fault.Unauthorized, "sign in to save a profile")
	}
	if strings.TrimSpace(p.Name) == "" {
		return fault.New(fault.InvalidArgument, "profile name must not be empty")
	}
	return s.repo.SaveProfile(ctx, caller, p)
}

// Profile returns the stored profile of an identity, or nil when the
// identity has not set one. Profiles are non-sensitive; no authorization
// restriction applies.
func (s *Service) Profile(ctx context.Context, id ID) (*Profile, error) {
	p, err := s.repo.GetProfile(ctx, id)
	if err != nil {
		if errors.Is(err, ErrProfileNotSet) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "get profile")
	}
	return p, nil
}
