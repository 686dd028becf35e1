package listing

import (
	"context"
	"strings"
	"time"

	"github.com/xenking/card-market/internal/domain/authz"
	"github.com/xenking/card-market/internal/domain/fault"
	"github.com/xenking/card-market/internal/domain/identity"
)

// RoleResolver resolves the effective role of a caller. Satisfied by
// identity.Service.
type RoleResolver interface {
	Role(ctx context.Context, id identity.ID) (identity.Role, error)
}

// CreateRequest holds the caller-supplied fields for a new listing.
type CreateRequest struct {
	ListingID   string
	Title       string
	Description string
	Price       int64
	Condition   Condition
	ImageURL    string
}

// Service applies authorization and lifecycle rules over the listing
// repository.
type Service struct {
	roles RoleResolver
	repo  Repository
	now   func() time.Time
}

// NewService creates a listing Service.
func NewService(roles RoleResolver, repo Repository) *Service {
	return &Service{
		roles: roles,
		repo:  repo,
		now:   time.Now,
	}
}

// Create validates the request and inserts an active listing owned by
// caller with a server-stamped creation time.
func (s *Service) Create(ctx context.Context, caller identity.ID, req CreateRequest) (*Listing, error) {
	role, err := s.roles.Role(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !authz.Allow(role, caller, "", authz.CreateListing) {
		return nil, fault.New(fault.Unauthorized, "sign in to create a listing")
	}

	if strings.TrimSpace(req.ListingID) == "" {
		return nil, fault.New(fault.InvalidArgument, "listing id must not be empty")
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, fault.New(fault.InvalidArgument, "title must not be empty")
	}
	if strings.TrimSpace(req.Description) == "" {
		return nil, fault.New(fault.InvalidArgument, "description must not be empty")
	}
	if req.Price < 0 {
		return nil, fault.New(fault.InvalidArgument, "price must not be negative")
	}
	if !req.Condition.Valid() {
		return nil, fault.New(fault.InvalidArgument, "unknown condition %q", req.Condition)
	}

	l := &Listing{
		ID:          req.ListingID,
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Condition:   req.Condition,
		ImageURL:    req.ImageURL,
		Status:      StatusActive,
		Seller:      caller,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// MarkSold transitions an active listing to sold. A second call on an
// already-sold listing fails with InvalidState rather than silently
// succeeding, so double-action bugs surface at the caller.
func (s *Service) MarkSold(ctx context.Context, caller identity.ID, listingID string) error {
	l, err := s.repo.Get(ctx, listingID)
	if err != nil {
		return err
	}

	role, err := s.roles.Role(ctx, caller)
	if err != nil {
		return err
	}
	if !authz.Allow(role, caller, l.Seller, authz.MarkListingSold) {
		return fault.New(fault.Unauthorized, "only the seller or an admin may mark a listing sold")
	}

	return s.repo.MarkSold(ctx, listingID)
}

// Active returns the public active-listing feed. Readable by anyone,
// including unauthenticated callers.
func (s *Service) Active(ctx context.Context) ([]Listing, error) {
	return s.repo.Active(ctx)
}

// BySeller returns all listings of a seller, any status. Restricted to
// that seller or an admin.
func (s *Service) BySeller(ctx context.Context, caller, seller identity.ID) ([]Listing, error) {
	role, err := s.roles.Role(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !authz.Allow(role, caller, seller, authz.ReadOwnListings) {
		return nil, fault.New(fault.Unauthorized, "listings of a seller are visible to that seller and admins only")
	}
	return s.repo.BySeller(ctx, seller)
}

// SortedByCreatedAt returns all listings ordered by creation time
// ascending, ties broken by listing ID.
func (s *Service) SortedByCreatedAt(ctx context.Context) ([]Listing, error) {
	return s.repo.SortedByCreatedAt(ctx)
}

// SortedByPrice returns all listings ordered by price ascending, ties
// broken by listing ID.
func (s *Service) SortedByPrice(ctx context.Context) ([]Listing, error) {
	return s.repo.SortedByPrice(ctx)
}
