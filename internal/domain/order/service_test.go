package order

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/card-market/internal/domain/fault"
	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/listing"
)

// --- Mock implementations ---

type mockRoles struct {
	roles map[identity.ID]identity.Role
}

func (m *mockRoles) Role(_ context.Context, id identity.ID) (identity.Role, error) {
	if id.Anonymous() {
		return identity.RoleGuest, nil
	}
	if role, ok := m.roles[id]; ok {
		return role, nil
	}
	return identity.RoleUser, nil
}

type mockListings struct {
	byID map[string]*listing.Listing
}

func (m *mockListings) Get(_ context.Context, id string) (*listing.Listing, error) {
	l, ok := m.byID[id]
	if !ok {
		return nil, fault.New(fault.NotFound, "listing %q not found", id)
	}
	return l, nil
}

type mockRepo struct {
	orders  map[string]*Request
	updated map[string]Status
}

func newMockRepo(orders ...*Request) *mockRepo {
	byID := make(map[string]*Request, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
	}
	return &mockRepo{orders: byID, updated: make(map[string]Status)}
}

func (m *mockRepo) Create(_ context.Context, r *Request) error {
	if _, ok := m.orders[r.ID]; ok {
		return fault.New(fault.Conflict, "order %q already exists", r.ID)
	}
	m.orders[r.ID] = r
	return nil
}

func (m *mockRepo) Get(_ context.Context, id string) (*Request, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, fault.New(fault.NotFound, "order %q not found", id)
	}
	return o, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	o, ok := m.orders[id]
	if !ok {
		return fault.New(fault.NotFound, "order %q not found", id)
	}
	if o.Status != StatusPending {
		return fault.New(fault.InvalidState, "order %q is already %s", id, o.Status)
	}
	o.Status = status
	m.updated[id] = status
	return nil
}

func (m *mockRepo) ByBuyer(_ context.Context, _ identity.ID) ([]Request, error) { return nil, nil }

func (m *mockRepo) BySeller(_ context.Context, _ identity.ID) ([]Request, error) { return nil, nil }

func (m *mockRepo) SortedByCreatedAt(_ context.Context) ([]Request, error) { return nil, nil }

// --- Helpers ---

func newTestService(listings *mockListings, repo *mockRepo) *Service {
	svc := NewService(&mockRoles{roles: map[identity.ID]identity.Role{
		"root": identity.RoleAdmin,
	}}, listings, repo)
	svc.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

func activeListing(id string, seller identity.ID) *listing.Listing {
	return &listing.Listing{ID: id, Status: listing.StatusActive, Seller: seller}
}

func withListings(listings ...*listing.Listing) *mockListings {
	byID := make(map[string]*listing.Listing, len(listings))
	for _, l := range listings {
		byID[l.ID] = l
	}
	return &mockListings{byID: byID}
}

// --- Tests ---

func TestCreate(t *testing.T) {
	repo := newMockRepo()
	svc := newTestService(withListings(activeListing("l1", "alice")), repo)

	offer := int64(9_000)
	r, err := svc.Create(context.Background(), "bob", CreateRequest{
		OrderID:    "o1",
		ListingID:  "l1",
		OfferPrice: &offer,
		Message:    "would you take 90?",
	})
	require.NoError(t, err)

	assert.Equal(t, StatusPending, r.Status, "new orders start pending")
	assert.Equal(t, identity.ID("bob"), r.Buyer, "buyer is the caller, never client-supplied")
	require.NotNil(t, r.OfferPrice)
	assert.Equal(t, int64(9_000), *r.OfferPrice)
	assert.Contains(t, repo.orders, "o1")
}

func TestCreate_SelfOrderAllowed(t *testing.T) {
	svc := newTestService(withListings(activeListing("l1", "alice")), newMockRepo())

	// Nothing stops a seller from bidding on their own listing.
	_, err := svc.Create(context.Background(), "alice", CreateRequest{OrderID: "o1", ListingID: "l1"})
	assert.NoError(t, err)
}

func TestCreate_Unauthorized(t *testing.T) {
	svc := newTestService(withListings(activeListing("l1", "alice")), newMockRepo())

	_, err := svc.Create(context.Background(), "", CreateRequest{OrderID: "o1", ListingID: "l1"})
	assert.True(t, fault.Is(err, fault.Unauthorized))
}

func TestCreate_EmptyOrderID(t *testing.T) {
	svc := newTestService(withListings(), newMockRepo())

	_, err := svc.Create(context.Background(), "bob", CreateRequest{ListingID: "l1"})
	assert.True(t, fault.Is(err, fault.InvalidArgument))
}

func TestCreate_DuplicateBeforeListingChecks(t *testing.T) {
	repo := newMockRepo(&Request{ID: "o1", ListingID: "gone", Status: StatusPending})
	svc := newTestService(withListings(), repo)

	// The duplicate wins even though the referenced listing is missing.
	_, err := svc.Create(context.Background(), "bob", CreateRequest{OrderID: "o1", ListingID: "gone"})
	assert.True(t, fault.Is(err, fault.Conflict))
}

func TestCreate_ListingNotFound(t *testing.T) {
	svc := newTestService(withListings(), newMockRepo())

	_, err := svc.Create(context.Background(), "bob", CreateRequest{OrderID: "o1", ListingID: "missing"})
	assert.True(t, fault.Is(err, fault.NotFound))
}

func TestCreate_ListingNotActive(t *testing.T) {
	sold := &listing.Listing{ID: "l1", Status: listing.StatusSold, Seller: "alice"}
	svc := newTestService(withListings(sold), newMockRepo())

	_, err := svc.Create(context.Background(), "bob", CreateRequest{OrderID: "o1", ListingID: "l1"})
	assert.True(t, fault.Is(err, fault.InvalidState))
}

func TestCreate_NegativeOffer(t *testing.T) {
	svc := newTestService(withListings(activeListing("l1", "alice")), newMockRepo())

	offer := int64(-1)
	_, err := svc.Create(context.Background(), "bob", CreateRequest{
		OrderID:    "o1",
		ListingID:  "l1",
		OfferPrice: &offer,
	})
	assert.True(t, fault.Is(err, fault.InvalidArgument))
}

func TestUpdateStatus_AcceptBySeller(t *testing.T) {
	repo := newMockRepo(&Request{ID: "o1", ListingID: "l1", Buyer: "bob", Status: StatusPending})
	svc := newTestService(withListings(activeListing("l1", "alice")), repo)

	require.NoError(t, svc.UpdateStatus(context.Background(), "alice", "o1", StatusAccepted))
	assert.Equal(t, StatusAccepted, repo.updated["o1"])
}

func TestUpdateStatus_RejectByAdmin(t *testing.T) {
	repo := newMockRepo(&Request{ID: "o1", ListingID: "l1", Buyer: "bob", Status: StatusPending})
	svc := newTestService(withListings(activeListing("l1", "alice")), repo)

	require.NoError(t, svc.UpdateStatus(context.Background(), "root", "o1", StatusRejected))
}

func TestUpdateStatus_BuyerMayNotResolve(t *testing.T) {
	repo := newMockRepo(&Request{ID: "o1", ListingID: "l1", Buyer: "bob", Status: StatusPending})
	svc := newTestService(withListings(activeListing("l1", "alice")), repo)

	err := svc.UpdateStatus(context.Background(), "bob", "o1", StatusAccepted)
	assert.True(t, fault.Is(err, fault.Unauthorized))
}

func TestUpdateStatus_CancelByBuyer(t *testing.T) {
	repo := newMockRepo(&Request{ID: "o1", ListingID: "l1", Buyer: "bob", Status: StatusPending})
	svc := newTestService(withListings(activeListing("l1", "alice")), repo)

	require.NoError(t, svc.UpdateStatus(context.Background(), "bob", "o1", StatusCancelled))
}

func TestUpdateStatus_SellerMayNotCancel(t *testing.T) {
	repo := newMockRepo(&Request{ID: "o1", ListingID: "l1", Buyer: "bob", Status: StatusPending})
	svc := newTestService(withListings(activeListing("l1", "alice")), repo)

	err := svc.UpdateStatus(context.Background(), "alice", "o1", StatusCancelled)
	assert.True(t, fault.Is(err, fault.Unauthorized))
}

func TestUpdateStatus_OneShot(t *testing.T) {
	repo := newMockRepo(&Request{ID: "o1", ListingID: "l1", Buyer: "bob", Status: StatusAccepted})
	svc := newTestService(withListings(activeListing("l1", "alice")), repo)

	for _, target := range []Status{StatusAccepted, StatusRejected, StatusCancelled} {
		err := svc.UpdateStatus(context.Background(), "root", "o1", target)
		assert.True(t, fault.Is(err, fault.InvalidState), "terminal orders reject %s", target)
	}
}

func TestUpdateStatus_PendingIsNotATarget(t *testing.T) {
	repo := newMockRepo(&Request{ID: "o1", ListingID: "l1", Buyer: "bob", Status: StatusPending})
	svc := newTestService(withListings(activeListing("l1", "alice")), repo)

	err := svc.UpdateStatus(context.Background(), "root", "o1", StatusPending)
	assert.True(t, fault.Is(err, fault.InvalidArgument))

	err = svc.UpdateStatus(context.Background(), "root", "o1", "approved")
	assert.True(t, fault.Is(err, fault.InvalidArgument))
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc := newTestService(withListings(), newMockRepo())

	err := svc.UpdateStatus(context.Background(), "root", "missing", StatusAccepted)
	assert.True(t, fault.Is(err, fault.NotFound))
}

func TestUpdateStatus_InvalidStateBeforeAuthorization(t *testing.T) {
	// A non-participant probing a terminal order learns its state, not
	// that they lack access: state is checked first.
	repo := newMockRepo(&Request{ID: "o1", ListingID: "l1", Buyer: "bob", Status: StatusCancelled})
	svc := newTestService(withListings(activeListing("l1", "alice")), repo)

	err := svc.UpdateStatus(context.Background(), "mallory", "o1", StatusAccepted)
	assert.True(t, fault.Is(err, fault.InvalidState))
}

func TestByBuyer_OwnerOrAdminOnly(t *testing.T) {
	svc := newTestService(withListings(), newMockRepo())
	ctx := context.Background()

	_, err := svc.ByBuyer(ctx, "bob", "bob")
	assert.NoError(t, err)

	_, err = svc.ByBuyer(ctx, "root", "bob")
	assert.NoError(t, err)

	_, err = svc.ByBuyer(ctx, "alice", "bob")
	assert.True(t, fault.Is(err, fault.Unauthorized))
}

func TestBySeller_OwnerOrAdminOnly(t *testing.T) {
	svc := newTestService(withListings(), newMockRepo())
	ctx := context.Background()

	_, err := svc.BySeller(ctx, "alice", "alice")
	assert.NoError(t, err)

	_, err = svc.BySeller(ctx, "bob", "alice")
	assert.True(t, fault.Is(err, fault.Unauthorized))
}
