// Package handler exposes the marketplace operations over HTTP. Routing
// is declared on chi; every handler resolves the caller identity from
// the request context, delegates to a domain service, and maps fault
// kinds to status codes in one place.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/card-market/internal/domain/fault"
	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/listing"
	"github.com/xenking/card-market/internal/domain/order"
)

// Handler wires the domain services to the HTTP contract.
type Handler struct {
	identities *identity.Service
	listings   *listing.Service
	orders     *order.Service

	listingsCreated metric.Int64Counter
	ordersCreated   metric.Int64Counter
}

// New constructs a Handler with the required domain services.
func New(identities *identity.Service, listings *listing.Service, orders *order.Service) *Handler {
	meter := otel.Meter("github.com/xenking/card-market/internal/handler")
	listingsCreated, _ := meter.Int64Counter("market.listings.created")
	ordersCreated, _ := meter.Int64Counter("market.orders.created")

	return &Handler{
		identities:      identities,
		listings:        listings,
		orders:          orders,
		listingsCreated: listingsCreated,
		ordersCreated:   ordersCreated,
	}
}

// Routes returns the router for the /api subtree.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(Caller)

	r.Route("/listings", func(r chi.Router) {
		r.Post("/", h.createListing)
		r.Post("/{listingID}/sold", h.markListingSold)
		r.Get("/active", h.activeListings)
		r.Get("/sorted/created", h.listingsSortedByCreatedAt)
		r.Get("/sorted/price", h.listingsSortedByPrice)
	})
	r.Get("/sellers/{seller}/listings", h.sellerListings)

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Post("/{orderID}/status", h.updateOrderStatus)
		r.Get("/sorted/created", h.ordersSortedByCreatedAt)
	})
	r.Get("/sellers/{seller}/orders", h.sellerOrders)
	r.Get("/buyers/{buyer}/orders", h.buyerOrders)

	r.Route("/me", func(r chi.Router) {
		r.Get("/profile", h.callerProfile)
		r.Put("/profile", h.saveCallerProfile)
		r.Get("/role", h.callerRole)
		r.Get("/admin", h.callerIsAdmin)
	})
	r.Get("/users/{user}/profile", h.userProfile)
	r.Put("/users/{user}/role", h.assignUserRole)

	return r
}

// errorBody is the uniform error response shape.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// statusFor maps a fault kind to an HTTP status code.
func statusFor(kind fault.Kind) int {
	switch kind {
	case fault.Unauthorized:
		return http.StatusForbidden
	case fault.NotFound:
		return http.StatusNotFound
	case fault.Conflict:
		return http.StatusConflict
	case fault.InvalidArgument:
		return http.StatusBadRequest
	case fault.InvalidState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as the uniform error body. Unclassified errors
// are logged and reported as an opaque 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := fault.KindOf(err)
	status := statusFor(kind)
	msg := err.Error()
	if kind == 0 {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, status, errorBody{Code: status, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode parses a JSON request body, rejecting unknown fields.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fault.New(fault.InvalidArgument, "malformed request body: %s", err)
	}
	return nil
}
