// Package authz is the authorization gate consulted before every
// listing and order mutation and every ownership-scoped read. It is a
// pure decision function over an explicit policy table, so policy is
// testable without standing up any store. Role assignment and profile
// rules live in the identity package, which this package builds on.
package authz

import "github.com/xenking/card-market/internal/domain/identity"

// Action identifies a class of operation subject to authorization.
type Action uint8

const (
	// CreateListing inserts a new card listing.
	CreateListing Action = iota + 1
	// MarkListingSold transitions a listing from active to sold.
	MarkListingSold
	// ReadOwnListings reads all listings owned by a given seller.
	ReadOwnListings
	// CreateOrder inserts a new purchase-order request.
	CreateOrder
	// ResolveOrder transitions a pending order to accepted or rejected.
	// The owner is the seller of the referenced listing.
	ResolveOrder
	// CancelOrder transitions a pending order to cancelled.
	// The owner is the order's buyer.
	CancelOrder
	// ReadOwnOrders reads orders scoped to a given buyer or seller.
	ReadOwnOrders
	// ReadActiveFeed reads the public active-listing feed.
	ReadActiveFeed
)

// requirement is the access level an action demands.
type requirement uint8

const (
	// denied is the zero value, so actions missing from the policy
	// table are rejected rather than silently public.
	denied requirement = iota
	public
	authenticated
	ownerOrAdmin
	adminOnly
)

// policy is the table from which every decision is derived. Actions
// absent from the table are denied.
var policy = map[Action]requirement{
	CreateListing:   authenticated,
	MarkListingSold: ownerOrAdmin,
	ReadOwnListings: ownerOrAdmin,
	CreateOrder:     authenticated,
	ResolveOrder:    ownerOrAdmin,
	CancelOrder:     ownerOrAdmin,
	ReadOwnOrders:   ownerOrAdmin,
	ReadActiveFeed:  public,
}

// Allow decides whether caller, holding role, may perform action against
// an entity owned by owner. Owner is ignored for actions that are not
// ownership-scoped.
func Allow(role identity.Role, caller, owner identity.ID, action Action) bool {
	switch policy[action] {
	case public:
		return true
	case authenticated:
		return !caller.Anonymous() && role != identity.RoleGuest
	case ownerOrAdmin:
		return role == identity.RoleAdmin || (!caller.Anonymous() && caller == owner)
	case adminOnly:
		return role == identity.RoleAdmin
	default:
		return false
	}
}
