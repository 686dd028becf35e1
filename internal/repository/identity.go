package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/card-market/internal/domain/identity"
)

const (
	getRoleSQL = `SELECT role FROM user_roles WHERE identity = $1`

	assignRoleSQL = `INSERT INTO user_roles (identity, role) VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE SET role = EXCLUDED.role`

	getProfileSQL = `SELECT name, email FROM user_profiles WHERE identity = $1`

	// Last write wins; there is no profile deletion path.
	saveProfileSQL = `INSERT INTO user_profiles (identity, name, email) VALUES ($1, $2, $3)
		ON CONFLICT (identity) DO UPDATE SET name = EXCLUDED.name, email = EXCLUDED.email`
)

var _ identity.Repository = (*IdentityRepository)(nil)

// IdentityRepository implements identity.Repository backed by PostgreSQL.
type IdentityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns an IdentityRepository that uses the given pool.
func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

// GetRole returns the stored role assignment for an identity, or
// identity.ErrRoleNotSet when none exists.
func (r *IdentityRepository) GetRole(ctx context.Context, id identity.ID) (identity.Role, error) {
	var role string
	err := r.pool.QueryRow(ctx, getRoleSQL, string(id)).Scan(&role)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", identity.ErrRoleNotSet
		}
		return "", fmt.Errorf("getting role of %q: %w", id, err)
	}
	return identity.Role(role), nil
}

// AssignRole overwrites the role assignment for an identity.
func (r *IdentityRepository) AssignRole(ctx context.Context, id identity.ID, role identity.Role) error {
	_, err := r.pool.Exec(ctx, assignRoleSQL, string(id), string(role))
	if err != nil {
		return fmt.Errorf("assigning role %s to %q: %w", role, id, err)
	}
	return nil
}

// GetProfile returns the stored profile for an identity, or
// identity.ErrProfileNotSet when none exists.
func (r *IdentityRepository) GetProfile(ctx context.Context, id identity.ID) (*identity.Profile, error) {
	var p identity.Profile
	err := r.pool.QueryRow(ctx, getProfileSQL, string(id)).Scan(&p.Name, &p.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, identity.ErrProfileNotSet
		}
		return nil, fmt.Errorf("getting profile of %q: %w", id, err)
	}
	return &p, nil
}

// SaveProfile overwrites the profile for an identity.
func (r *IdentityRepository) SaveProfile(ctx context.Context, id identity.ID, p identity.Profile) error {
	_, err := r.pool.Exec(ctx, saveProfileSQL, string(id), p.Name, p.Email)
	if err != nil {
		return fmt.Errorf("saving profile of %q: %w", id, err)
	}
	return nil
}
