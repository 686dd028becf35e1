// Package listing owns the card listing store: entity lifecycle,
// validation, and the sorted read views.
package listing

import (
	"context"
	"time"

	"github.com/xenking/card-market/internal/domain/identity"
)

// Status is a listing lifecycle state. Sold and expired are terminal.
type Status string

const (
	StatusActive Status = "active"
	StatusSold   Status = "sold"
	// StatusExpired is reserved for a time-based sweep external to
	// request handling; no operation here produces it.
	StatusExpired Status = "expired"
)

// Condition grades the physical state of a card.
type Condition string

const (
	ConditionMint     Condition = "mint"
	ConditionNearMint Condition = "near_mint"
	ConditionGood     Condition = "good"
	ConditionFair     Condition = "fair"
	ConditionPoor     Condition = "poor"
)

// Valid reports whether c is a known condition grade.
func (c Condition) Valid() bool {
	switch c {
	case ConditionMint, ConditionNearMint, ConditionGood, ConditionFair, ConditionPoor:
		return true
	}
	return false
}

// Listing is a sellable card record. ID, Seller, and CreatedAt are
// immutable after creation; Price is in minor currency units. An empty
// ImageURL means "no image" and the client substitutes a placeholder.
type Listing struct {
	ID          string
	Title       string
	Description string
	Price       int64
	Condition   Condition
	ImageURL    string
	Status      Status
	Seller      identity.ID
	CreatedAt   time.Time
}

// Repository defines persistence for listings. There is no delete:
// listings persist indefinitely once created.
//
// Create fails with fault.Conflict when the listing ID already exists.
// Get fails with fault.NotFound. MarkSold atomically transitions an
// active listing to sold, failing with fault.NotFound when the ID is
// absent and fault.InvalidState when the listing is not active.
type Repository interface {
	Create(ctx context.Context, l *Listing) error
	Get(ctx context.Context, id string) (*Listing, error)
	MarkSold(ctx context.Context, id string) error
	Active(ctx context.Context) ([]Listing, error)
	BySeller(ctx context.Context, seller identity.ID) ([]Listing, error)
	SortedByCreatedAt(ctx context.Context) ([]Listing, error)
	SortedByPrice(ctx context.Context) ([]Listing, error)
}
