package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/card-market/internal/domain/fault"
	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/listing"
)

const (
	listingColumns = `listing_id, title, description, price, condition, image_url, status, seller, created_at`

	createListingSQL = `INSERT INTO listings (listing_id, title, description, price, condition, image_url, status, seller, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getListingSQL = `SELECT ` + listingColumns + ` FROM listings WHERE listing_id = $1`

	// The status predicate makes the sold transition atomic: zero rows
	// affected means the listing was not active at update time.
	markListingSoldSQL = `UPDATE listings SET status = 'sold' WHERE listing_id = $1 AND status = 'active'`

	activeListingsSQL = `SELECT ` + listingColumns + ` FROM listings WHERE status = 'active'
		ORDER BY created_at, listing_id`

	listingsBySellerSQL = `SELECT ` + listingColumns + ` FROM listings WHERE seller = $1
		ORDER BY created_at, listing_id`

	listingsByCreatedAtSQL = `SELECT ` + listingColumns + ` FROM listings ORDER BY created_at, listing_id`

	listingsByPriceSQL = `SELECT ` + listingColumns + ` FROM listings ORDER BY price, listing_id`
)

var _ listing.Repository = (*ListingRepository)(nil)

// ListingRepository implements listing.Repository backed by PostgreSQL.
type ListingRepository struct {
	pool *pgxpool.Pool
}

// NewListingRepository returns a ListingRepository that uses the given pool.
func NewListingRepository(pool *pgxpool.Pool) *ListingRepository {
	return &ListingRepository{pool: pool}
}

// Create inserts a new listing, reporting Conflict on a duplicate ID.
func (r *ListingRepository) Create(ctx context.Context, l *listing.Listing) error {
	_, err := r.pool.Exec(ctx, createListingSQL,
		l.ID, l.Title, l.Description, l.Price, string(l.Condition),
		l.ImageURL, string(l.Status), string(l.Seller), l.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.New(fault.Conflict, "listing %q already exists", l.ID)
		}
		return fmt.Errorf("creating listing %q: %w", l.ID, err)
	}
	return nil
}

// Get returns a single listing by its identifier.
func (r *ListingRepository) Get(ctx context.Context, id string) (*listing.Listing, error) {
	rows, err := r.pool.Query(ctx, getListingSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting listing %q: %w", id, err)
	}

	l, err := pgx.CollectExactlyOneRow(rows, scanListing)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.New(fault.NotFound, "listing %q not found", id)
		}
		return nil, fmt.Errorf("getting listing %q: %w", id, err)
	}
	return &l, nil
}

// MarkSold transitions an active listing to sold. When the conditional
// update touches no row, the follow-up read distinguishes a missing
// listing from one in the wrong state.
func (r *ListingRepository) MarkSold(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, markListingSoldSQL, id)
	if err != nil {
		return fmt.Errorf("marking listing %q sold: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	l, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return fault.New(fault.InvalidState, "listing %q is %s, not active", id, l.Status)
}

// Active returns all active listings.
func (r *ListingRepository) Active(ctx context.Context) ([]listing.Listing, error) {
	return r.queryListings(ctx, activeListingsSQL)
}

// BySeller returns all listings of a seller, any status.
func (r *ListingRepository) BySeller(ctx context.Context, seller identity.ID) ([]listing.Listing, error) {
	return r.queryListings(ctx, listingsBySellerSQL, string(seller))
}

// SortedByCreatedAt returns all listings ordered by creation time, then ID.
func (r *ListingRepository) SortedByCreatedAt(ctx context.Context) ([]listing.Listing, error) {
	return r.queryListings(ctx, listingsByCreatedAtSQL)
}

// SortedByPrice returns all listings ordered by price, then ID.
func (r *ListingRepository) SortedByPrice(ctx context.Context) ([]listing.Listing, error) {
	return r.queryListings(ctx, listingsByPriceSQL)
}

// IDs streams every listing ID to fn. Used by bulk import to prime its
// duplicate filter without materializing the full table.
func (r *ListingRepository) IDs(ctx context.Context, fn func(id string) error) error {
	rows, err := r.pool.Query(ctx, `SELECT listing_id FROM listings`)
	if err != nil {
		return fmt.Errorf("querying listing ids: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("scanning listing id: %w", err)
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return rows.Err()
}

// CreateIgnoreConflict inserts a listing, silently skipping it when the
// ID already exists. Returns whether a row was written.
func (r *ListingRepository) CreateIgnoreConflict(ctx context.Context, l *listing.Listing) (bool, error) {
	tag, err := r.pool.Exec(ctx, createListingSQL+` ON CONFLICT (listing_id) DO NOTHING`,
		l.ID, l.Title, l.Description, l.Price, string(l.Condition),
		l.ImageURL, string(l.Status), string(l.Seller), l.CreatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("creating listing %q: %w", l.ID, err)
	}
	return tag.RowsAffected() > 0, nil
}

// CopyBatch bulk-inserts listings via the COPY protocol. Callers must
// guarantee the IDs are not already present.
func (r *ListingRepository) CopyBatch(ctx context.Context, batch []listing.Listing) (int64, error) {
	n, err := r.pool.CopyFrom(ctx,
		pgx.Identifier{"listings"},
		[]string{"listing_id", "title", "description", "price", "condition", "image_url", "status", "seller", "created_at"},
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			l := batch[i]
			return []any{
				l.ID, l.Title, l.Description, l.Price, string(l.Condition),
				l.ImageURL, string(l.Status), string(l.Seller), l.CreatedAt,
			}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("copying listings: %w", err)
	}
	return n, nil
}

func (r *ListingRepository) queryListings(ctx context.Context, sql string, args ...any) ([]listing.Listing, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying listings: %w", err)
	}
	return pgx.CollectRows(rows, scanListing)
}

func scanListing(row pgx.CollectableRow) (listing.Listing, error) {
	var (
		l         listing.Listing
		condition string
		status    string
		seller    string
	)
	err := row.Scan(
		&l.ID, &l.Title, &l.Description, &l.Price, &condition,
		&l.ImageURL, &status, &seller, &l.CreatedAt,
	)
	l.Condition = listing.Condition(condition)
	l.Status = listing.Status(status)
	l.Seller = identity.ID(seller)
	return l, err
}
