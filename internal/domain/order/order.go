// Package order owns purchase-order requests: buyers propose to buy a
// listing, sellers accept or reject, buyers cancel. All three outcomes
// are terminal.
package order

import (
	"context"
	"time"

	"github.com/xenking/card-market/internal/domain/identity"
)

// Status is an order lifecycle state. Everything except pending is
// terminal: a one-shot transition out of pending ends the lifecycle.
type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether s permits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusCancelled
}

// Request is a buyer's proposal to purchase a listing. ID, ListingID,
// Buyer, and CreatedAt are immutable. A nil OfferPrice means the buyer
// offers the list price; Message is optional free text.
type Request struct {
	ID         string
	ListingID  string
	Buyer      identity.ID
	OfferPrice *int64
	Message    string
	Status     Status
	CreatedAt  time.Time
}

// Repository defines persistence for order requests. No delete exists.
//
// Create fails with fault.Conflict when the order ID already exists.
// Get fails with fault.NotFound. UpdateStatus atomically transitions a
// pending order, failing with fault.NotFound when the ID is absent and
// fault.InvalidState when the order is no longer pending.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id string) (*Request, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	ByBuyer(ctx context.Context, buyer identity.ID) ([]Request, error)
	BySeller(ctx context.Context, seller identity.ID) ([]Request, error)
	SortedByCreatedAt(ctx context.Context) ([]Request, error)
}
