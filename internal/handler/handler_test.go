package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/listing"
	"github.com/xenking/card-market/internal/domain/order"
	"github.com/xenking/card-market/internal/repository/memory"
)

// --- Helpers ---

type fixture struct {
	store  *memory.Store
	routes http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memory.NewStore()
	identitySvc := identity.NewService(store.Identities())
	listingSvc := listing.NewService(identitySvc, store.Listings())
	orderSvc := order.NewService(identitySvc, store.Listings(), store.Orders())

	return &fixture{
		store:  store,
		routes: New(identitySvc, listingSvc, orderSvc).Routes(),
	}
}

// do performs a request as the given caller; an empty caller sends no
// identity header.
func (f *fixture) do(t *testing.T, method, target, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	if caller != "" {
		req.Header.Set(CallerHeader, caller)
	}

	rec := httptest.NewRecorder()
	f.routes.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) seedListing(t *testing.T, id, seller string, price int64, status listing.Status) {
	t.Helper()
	require.NoError(t, f.store.Listings().Create(t.Context(), &listing.Listing{
		ID:          id,
		Title:       "Card " + id,
		Description: "test card",
		Price:       price,
		Condition:   listing.ConditionNearMint,
		Status:      status,
		Seller:      identity.ID(seller),
		CreatedAt:   time.Now().UTC(),
	}))
}

func (f *fixture) seedAdmin(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, f.store.Identities().AssignRole(t.Context(), identity.ID(id), identity.RoleAdmin))
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

// --- Listings ---

func TestCreateListing(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/listings", "alice", map[string]any{
		"listingId":   "l1",
		"title":       "Black Lotus",
		"description": "Alpha printing",
		"price":       250_000_00,
		"condition":   "good",
		"imageUrl":    "https://img.example.com/lotus.jpg",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "l1", got["listingId"])
	assert.Equal(t, "active", got["status"])
	assert.Equal(t, "alice", got["seller"])
	assert.NotZero(t, got["createdAt"])
}

func TestCreateListing_Anonymous(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/listings", "", map[string]any{
		"listingId":   "l1",
		"title":       "Card",
		"description": "desc",
		"price":       100,
		"condition":   "mint",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	got := decodeBody[map[string]any](t, rec)
	assert.EqualValues(t, http.StatusForbidden, got["code"])
	assert.NotEmpty(t, got["message"])
}

func TestCreateListing_Duplicate(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)

	rec := f.do(t, http.MethodPost, "/listings", "bob", map[string]any{
		"listingId":   "l1",
		"title":       "Card",
		"description": "desc",
		"price":       100,
		"condition":   "mint",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateListing_UnknownField(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/listings", "alice", map[string]any{
		"listingId": "l1",
		"surprise":  true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMarkListingSold(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)

	rec := f.do(t, http.MethodPost, "/listings/l1/sold", "alice", nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// Second attempt hits the terminal state.
	rec = f.do(t, http.MethodPost, "/listings/l1/sold", "alice", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestMarkListingSold_Errors(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)

	rec := f.do(t, http.MethodPost, "/listings/missing/sold", "alice", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/listings/l1/sold", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestActiveListings_PublicAndFiltered(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)
	f.seedListing(t, "l2", "alice", 200, listing.StatusSold)

	rec := f.do(t, http.MethodGet, "/listings/active", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[[]map[string]any](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "l1", got[0]["listingId"])
}

func TestListingsSortedByPrice(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 300, listing.StatusActive)
	f.seedListing(t, "l2", "bob", 100, listing.StatusSold)
	f.seedListing(t, "l3", "alice", 200, listing.StatusActive)

	rec := f.do(t, http.MethodGet, "/listings/sorted/price", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[[]map[string]any](t, rec)
	require.Len(t, got, 3, "sorted views include sold listings")
	assert.Equal(t, "l2", got[0]["listingId"])
	assert.Equal(t, "l3", got[1]["listingId"])
	assert.Equal(t, "l1", got[2]["listingId"])
}

func TestSellerListings_Authorization(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)
	f.seedListing(t, "l2", "alice", 200, listing.StatusSold)
	f.seedAdmin(t, "root")

	rec := f.do(t, http.MethodGet, "/sellers/alice/listings", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 2)

	rec = f.do(t, http.MethodGet, "/sellers/alice/listings", "root", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/sellers/alice/listings", "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodGet, "/sellers/alice/listings", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// --- Orders ---

func TestCreateOrder(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)

	rec := f.do(t, http.MethodPost, "/orders", "bob", map[string]any{
		"orderId":    "o1",
		"listingId":  "l1",
		"offerPrice": 90,
		"message":    "deal?",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "pending", got["status"])
	assert.Equal(t, "bob", got["buyer"])
	assert.EqualValues(t, 90, got["offerPrice"])
	assert.Equal(t, "deal?", got["message"])
}

func TestCreateOrder_NullOptionals(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)

	rec := f.do(t, http.MethodPost, "/orders", "bob", map[string]any{
		"orderId":   "o1",
		"listingId": "l1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	got := decodeBody[map[string]any](t, rec)
	assert.Nil(t, got["offerPrice"])
	assert.Nil(t, got["message"])
}

func TestCreateOrder_SoldListing(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusSold)

	rec := f.do(t, http.MethodPost, "/orders", "bob", map[string]any{
		"orderId":   "o1",
		"listingId": "l1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateOrderStatus_AcceptFlow(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)

	rec := f.do(t, http.MethodPost, "/orders", "bob", map[string]any{"orderId": "o1", "listingId": "l1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Buyer may not accept their own order.
	rec = f.do(t, http.MethodPost, "/orders/o1/status", "bob", map[string]any{"status": "accepted"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// The listing's seller may.
	rec = f.do(t, http.MethodPost, "/orders/o1/status", "alice", map[string]any{"status": "accepted"})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// Accepting does not touch the listing; it stays active.
	l, err := f.store.Listings().Get(t.Context(), "l1")
	require.NoError(t, err)
	assert.Equal(t, listing.StatusActive, l.Status)

	// The transition is one-shot.
	rec = f.do(t, http.MethodPost, "/orders/o1/status", "alice", map[string]any{"status": "rejected"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateOrderStatus_CancelFlow(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)
	rec := f.do(t, http.MethodPost, "/orders", "bob", map[string]any{"orderId": "o1", "listingId": "l1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// Seller may not cancel the buyer's order.
	rec = f.do(t, http.MethodPost, "/orders/o1/status", "alice", map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, "/orders/o1/status", "bob", map[string]any{"status": "cancelled"})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestUpdateOrderStatus_InvalidTarget(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)
	rec := f.do(t, http.MethodPost, "/orders", "bob", map[string]any{"orderId": "o1", "listingId": "l1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/orders/o1/status", "alice", map[string]any{"status": "pending"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuyerOrders_Authorization(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)
	f.seedAdmin(t, "root")
	rec := f.do(t, http.MethodPost, "/orders", "bob", map[string]any{"orderId": "o1", "listingId": "l1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/buyers/bob/orders", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]map[string]any](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/buyers/bob/orders", "root", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/buyers/bob/orders", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSellerOrders_JoinsThroughListing(t *testing.T) {
	f := newFixture(t)
	f.seedListing(t, "l1", "alice", 100, listing.StatusActive)
	f.seedListing(t, "l2", "carol", 100, listing.StatusActive)
	rec := f.do(t, http.MethodPost, "/orders", "bob", map[string]any{"orderId": "o1", "listingId": "l1"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = f.do(t, http.MethodPost, "/orders", "bob", map[string]any{"orderId": "o2", "listingId": "l2"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodGet, "/sellers/alice/orders", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[[]map[string]any](t, rec)
	require.Len(t, got, 1)
	assert.Equal(t, "o1", got[0]["orderId"])
}

// --- Users ---

func TestProfileRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/me/profile", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "null\n", rec.Body.String(), "unset profile reads as null")

	rec = f.do(t, http.MethodPut, "/me/profile", "alice", map[string]any{
		"name":  "Alice",
		"email": "alice@example.com",
	})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/alice/profile", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, "Alice", got["name"])
	assert.Equal(t, "alice@example.com", got["email"])
}

func TestSaveProfile_Anonymous(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/me/profile", "", map[string]any{"name": "Ghost"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCallerRole(t *testing.T) {
	f := newFixture(t)
	f.seedAdmin(t, "root")

	rec := f.do(t, http.MethodGet, "/me/role", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "guest", decodeBody[map[string]string](t, rec)["role"])

	rec = f.do(t, http.MethodGet, "/me/role", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user", decodeBody[map[string]string](t, rec)["role"])

	rec = f.do(t, http.MethodGet, "/me/role", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decodeBody[map[string]string](t, rec)["role"])
}

func TestCallerIsAdmin(t *testing.T) {
	f := newFixture(t)
	f.seedAdmin(t, "root")

	rec := f.do(t, http.MethodGet, "/me/admin", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[map[string]bool](t, rec)["admin"])

	rec = f.do(t, http.MethodGet, "/me/admin", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[map[string]bool](t, rec)["admin"])
}

func TestAssignUserRole(t *testing.T) {
	f := newFixture(t)
	f.seedAdmin(t, "root")

	rec := f.do(t, http.MethodPut, "/users/alice/role", "root", map[string]any{"role": "admin"})
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodGet, "/me/role", "alice", nil)
	assert.Equal(t, "admin", decodeBody[map[string]string](t, rec)["role"])

	rec = f.do(t, http.MethodPut, "/users/bob/role", "alice", map[string]any{"role": "owner"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "invalid role rejected before storage")

	rec = f.do(t, http.MethodPut, "/users/bob/role", "carol", map[string]any{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

// --- Identity header handling ---

func TestCaller_MalformedHeaderIsAnonymous(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/me/role", nil)
	req.Header.Set(CallerHeader, "spaces are not allowed")
	rec := httptest.NewRecorder()
	f.routes.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "guest", decodeBody[map[string]string](t, rec)["role"])
}

func TestIsValidIdentity(t *testing.T) {
	assert.True(t, isValidIdentity("alice-principal-01"))
	assert.False(t, isValidIdentity(""))
	assert.False(t, isValidIdentity("tab\there"))
	assert.False(t, isValidIdentity("ünïcode"))
	assert.False(t, isValidIdentity(string(bytes.Repeat([]byte{'a'}, 257))))
}
