// Package memory implements the domain repositories on in-process maps.
// It backs handler tests and local development without PostgreSQL; the
// semantics mirror the repository package exactly.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/card-market/internal/domain/fault"
	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/listing"
	"github.com/xenking/card-market/internal/domain/order"
)

// Store holds all three entity maps behind one mutex, giving the
// single-writer discipline the store semantics assume.
type Store struct {
	mu       sync.RWMutex
	roles    map[identity.ID]identity.Role
	profiles map[identity.ID]identity.Profile
	listings map[string]listing.Listing
	orders   map[string]order.Request
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		roles:    make(map[identity.ID]identity.Role),
		profiles: make(map[identity.ID]identity.Profile),
		listings: make(map[string]listing.Listing),
		orders:   make(map[string]order.Request),
	}
}

// Identities returns the identity.Repository view of the store.
func (s *Store) Identities() *IdentityRepository { return &IdentityRepository{s: s} }

// Listings returns the listing.Repository view of the store.
func (s *Store) Listings() *ListingRepository { return &ListingRepository{s: s} }

// Orders returns the order.Repository view of the store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// IdentityRepository implements identity.Repository on the shared store.
type IdentityRepository struct {
	s *Store
}

var _ identity.Repository = (*IdentityRepository)(nil)

func (r *IdentityRepository) GetRole(_ context.Context, id identity.ID) (identity.Role, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	role, ok := r.s.roles[id]
	if !ok {
		return "", identity.ErrRoleNotSet
	}
	return role, nil
}

func (r *IdentityRepository) AssignRole(_ context.Context, id identity.ID, role identity.Role) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.roles[id] = role
	return nil
}

func (r *IdentityRepository) GetProfile(_ context.Context, id identity.ID) (*identity.Profile, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.profiles[id]
	if !ok {
		return nil, identity.ErrProfileNotSet
	}
	return &p, nil
}

func (r *IdentityRepository) SaveProfile(_ context.Context, id identity.ID, p identity.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.profiles[id] = p
	return nil
}

// ListingRepository implements listing.Repository on the shared store.
type ListingRepository struct {
	s *Store
}

var _ listing.Repository = (*ListingRepository)(nil)

func (r *ListingRepository) Create(_ context.Context, l *listing.Listing) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.listings[l.ID]; ok {
		return fault.New(fault.Conflict, "listing %q already exists", l.ID)
	}
	r.s.listings[l.ID] = *l
	return nil
}

func (r *ListingRepository) Get(_ context.Context, id string) (*listing.Listing, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.listings[id]
	if !ok {
		return nil, fault.New(fault.NotFound, "listing %q not found", id)
	}
	return &l, nil
}

func (r *ListingRepository) MarkSold(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.listings[id]
	if !ok {
		return fault.New(fault.NotFound, "listing %q not found", id)
	}
	if l.Status != listing.StatusActive {
		return fault.New(fault.InvalidState, "listing %q is %s, not active", id, l.Status)
	}
	l.Status = listing.StatusSold
	r.s.listings[id] = l
	return nil
}

func (r *ListingRepository) Active(_ context.Context) ([]listing.Listing, error) {
	return r.collect(func(l listing.Listing) bool { return l.Status == listing.StatusActive }, byListingCreatedAt), nil
}

func (r *ListingRepository) BySeller(_ context.Context, seller identity.ID) ([]listing.Listing, error) {
	return r.collect(func(l listing.Listing) bool { return l.Seller == seller }, byListingCreatedAt), nil
}

func (r *ListingRepository) SortedByCreatedAt(_ context.Context) ([]listing.Listing, error) {
	return r.collect(nil, byListingCreatedAt), nil
}

func (r *ListingRepository) SortedByPrice(_ context.Context) ([]listing.Listing, error) {
	return r.collect(nil, byListingPrice), nil
}

func (r *ListingRepository) collect(keep func(listing.Listing) bool, less func(a, b listing.Listing) bool) []listing.Listing {
	r.s.mu.RLock()
	out := make([]listing.Listing, 0, len(r.s.listings))
	for _, l := range r.s.listings {
		if keep == nil || keep(l) {
			out = append(out, l)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byListingCreatedAt(a, b listing.Listing) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func byListingPrice(a, b listing.Listing) bool {
	if a.Price != b.Price {
		return a.Price < b.Price
	}
	return a.ID < b.ID
}

// OrderRepository implements order.Repository on the shared store.
type OrderRepository struct {
	s *Store
}

var _ order.Repository = (*OrderRepository)(nil)

func (r *OrderRepository) Create(_ context.Context, o *order.Request) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.orders[o.ID]; ok {
		return fault.New(fault.Conflict, "order %q already exists", o.ID)
	}
	r.s.orders[o.ID] = *o
	return nil
}

func (r *OrderRepository) Get(_ context.Context, id string) (*order.Request, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, fault.New(fault.NotFound, "order %q not found", id)
	}
	return &o, nil
}

func (r *OrderRepository) UpdateStatus(_ context.Context, id string, status order.Status) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return fault.New(fault.NotFound, "order %q not found", id)
	}
	if o.Status != order.StatusPending {
		return fault.New(fault.InvalidState, "order %q is already %s", id, o.Status)
	}
	o.Status = status
	r.s.orders[id] = o
	return nil
}

func (r *OrderRepository) ByBuyer(_ context.Context, buyer identity.ID) ([]order.Request, error) {
	return r.collect(func(o order.Request) bool { return o.Buyer == buyer }), nil
}

func (r *OrderRepository) BySeller(_ context.Context, seller identity.ID) ([]order.Request, error) {
	r.s.mu.RLock()
	sellers := make(map[string]identity.ID, len(r.s.listings))
	for id, l := range r.s.listings {
		sellers[id] = l.Seller
	}
	r.s.mu.RUnlock()

	return r.collect(func(o order.Request) bool { return sellers[o.ListingID] == seller }), nil
}

func (r *OrderRepository) SortedByCreatedAt(_ context.Context) ([]order.Request, error) {
	return r.collect(nil), nil
}

func (r *OrderRepository) collect(keep func(order.Request) bool) []order.Request {
	r.s.mu.RLock()
	out := make([]order.Request, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		if keep == nil || keep(o) {
			out = append(out, o)
		}
	}
	r.s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
