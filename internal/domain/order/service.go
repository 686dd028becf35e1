package order

import (
	"context"
	"strings"
	"time"

	"github.com/xenking/card-market/internal/domain/authz"
	"github.com/xenking/card-market/internal/domain/fault"
	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/listing"
)

// RoleResolver resolves the effective role of a caller. Satisfied by
// identity.Service.
type RoleResolver interface {
	Role(ctx context.Context, id identity.ID) (identity.Role, error)
}

// ListingReader fetches listings for creation-time checks and for
// resolving the seller of an order's listing. Satisfied by
// listing.Repository.
type ListingReader interface {
	Get(ctx context.Context, id string) (*listing.Listing, error)
}

// CreateRequest holds the caller-supplied fields for a new order.
type CreateRequest struct {
	OrderID    string
	ListingID  string
	OfferPrice *int64
	Message    string
}

// Service applies authorization and lifecycle rules over the order
// repository.
type Service struct {
	roles    RoleResolver
	listings ListingReader
	repo     Repository
	now      func() time.Time
}

// NewService creates an order Service.
func NewService(roles RoleResolver, listings ListingReader, repo Repository) *Service {
	return &Service{
		roles:    roles,
		listings: listings,
		repo:     repo,
		now:      time.Now,
	}
}

// Create validates the request and inserts a pending order with
// buyer = caller. The referenced listing must exist and be active at
// creation time; the reference is not re-validated afterwards.
func (s *Service) Create(ctx context.Context, caller identity.ID, req CreateRequest) (*Request, error) {
	role, err := s.roles.Role(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !authz.Allow(role, caller, "", authz.CreateOrder) {
		return nil, fault.New(fault.Unauthorized, "sign in to place an order request")
	}

	if strings.TrimSpace(req.OrderID) == "" {
		return nil, fault.New(fault.InvalidArgument, "order id must not be empty")
	}

	// Uniqueness is reported before the listing checks; the repository's
	// unique key remains the backstop at insert time.
	if _, err := s.repo.Get(ctx, req.OrderID); err == nil {
		return nil, fault.New(fault.Conflict, "order %q already exists", req.OrderID)
	} else if !fault.Is(err, fault.NotFound) {
		return nil, err
	}

	l, err := s.listings.Get(ctx, req.ListingID)
	if err != nil {
		return nil, err
	}
	if l.Status != listing.StatusActive {
		return nil, fault.New(fault.InvalidState, "listing %q is %s, not active", l.ID, l.Status)
	}
	if req.OfferPrice != nil && *req.OfferPrice < 0 {
		return nil, fault.New(fault.InvalidArgument, "offer price must not be negative")
	}

	r := &Request{
		ID:         req.OrderID,
		ListingID:  req.ListingID,
		Buyer:      caller,
		OfferPrice: req.OfferPrice,
		Message:    req.Message,
		Status:     StatusPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateStatus performs the one-shot transition out of pending.
// Accept/reject is reserved for the seller of the referenced listing or
// an admin; cancel for the order's own buyer or an admin. A terminal
// order rejects every further update with InvalidState.
func (s *Service) UpdateStatus(ctx context.Context, caller identity.ID, orderID string, status Status) error {
	if !status.Terminal() {
		return fault.New(fault.InvalidArgument, "%q is not a valid target status", status)
	}

	r, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if r.Status != StatusPending {
		return fault.New(fault.InvalidState, "order %q is already %s", r.ID, r.Status)
	}

	role, err := s.roles.Role(ctx, caller)
	if err != nil {
		return err
	}
	switch status {
	case StatusAccepted, StatusRejected:
		l, err := s.listings.Get(ctx, r.ListingID)
		if err != nil {
			return err
		}
		if !authz.Allow(role, caller, l.Seller, authz.ResolveOrder) {
			return fault.New(fault.Unauthorized, "only the listing's seller or an admin may accept or reject")
		}
	case StatusCancelled:
		if !authz.Allow(role, caller, r.Buyer, authz.CancelOrder) {
			return fault.New(fault.Unauthorized, "only the buyer or an admin may cancel")
		}
	}

	return s.repo.UpdateStatus(ctx, orderID, status)
}

// ByBuyer returns all orders placed by a buyer. Restricted to that
// buyer or an admin.
func (s *Service) ByBuyer(ctx context.Context, caller, buyer identity.ID) ([]Request, error) {
	role, err := s.roles.Role(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !authz.Allow(role, caller, buyer, authz.ReadOwnOrders) {
		return nil, fault.New(fault.Unauthorized, "orders of a buyer are visible to that buyer and admins only")
	}
	return s.repo.ByBuyer(ctx, buyer)
}

// BySeller returns all orders whose referenced listing belongs to
// seller. Restricted to that seller or an admin.
func (s *Service) BySeller(ctx context.Context, caller, seller identity.ID) ([]Request, error) {
	role, err := s.roles.Role(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !authz.Allow(role, caller, seller, authz.ReadOwnOrders) {
		return nil, fault.New(fault.Unauthorized, "orders of a seller are visible to that seller and admins only")
	}
	return s.repo.BySeller(ctx, seller)
}

// SortedByCreatedAt returns all orders ordered by creation time
// ascending, ties broken by order ID.
func (s *Service) SortedByCreatedAt(ctx context.Context) ([]Request, error) {
	return s.repo.SortedByCreatedAt(ctx)
}
