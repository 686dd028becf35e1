package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/card-market/internal/domain/fault"
	"github.com/xenking/card-market/internal/domain/identity"
	"github.com/xenking/card-market/internal/domain/order"
)

const (
	orderColumns = `o.order_id, o.listing_id, o.buyer, o.offer_price, o.message, o.status, o.created_at`

	createOrderSQL = `INSERT INTO order_requests (order_id, listing_id, buyer, offer_price, message, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM order_requests o WHERE o.order_id = $1`

	// Zero rows affected means the order was not pending at update time.
	updateOrderStatusSQL = `UPDATE order_requests SET status = $2 WHERE order_id = $1 AND status = 'pending'`

	ordersByBuyerSQL = `SELECT ` + orderColumns + ` FROM order_requests o WHERE o.buyer = $1
		ORDER BY o.created_at, o.order_id`

	// Seller scoping goes through the referenced listing; orders whose
	// listing row is absent are simply not attributable to any seller.
	ordersBySellerSQL = `SELECT ` + orderColumns + ` FROM order_requests o
		JOIN listings l ON l.listing_id = o.listing_id
		WHERE l.seller = $1
		ORDER BY o.created_at, o.order_id`

	ordersByCreatedAtSQL = `SELECT ` + orderColumns + ` FROM order_requests o
		ORDER BY o.created_at, o.order_id`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new pending order, reporting Conflict on a duplicate ID.
func (r *OrderRepository) Create(ctx context.Context, o *order.Request) error {
	_, err := r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.ListingID, string(o.Buyer), o.OfferPrice, o.Message,
		string(o.Status), o.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fault.New(fault.Conflict, "order %q already exists", o.ID)
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Get returns a single order by its identifier.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Request, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fault.New(fault.NotFound, "order %q not found", id)
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return &o, nil
}

// UpdateStatus performs the one-shot transition out of pending.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	o, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	return fault.New(fault.InvalidState, "order %q is already %s", id, o.Status)
}

// ByBuyer returns all orders placed by a buyer.
func (r *OrderRepository) ByBuyer(ctx context.Context, buyer identity.ID) ([]order.Request, error) {
	return r.queryOrders(ctx, ordersByBuyerSQL, string(buyer))
}

// BySeller returns all orders whose referenced listing belongs to seller.
func (r *OrderRepository) BySeller(ctx context.Context, seller identity.ID) ([]order.Request, error) {
	return r.queryOrders(ctx, ordersBySellerSQL, string(seller))
}

// SortedByCreatedAt returns all orders ordered by creation time, then ID.
func (r *OrderRepository) SortedByCreatedAt(ctx context.Context) ([]order.Request, error) {
	return r.queryOrders(ctx, ordersByCreatedAtSQL)
}

func (r *OrderRepository) queryOrders(ctx context.Context, sql string, args ...any) ([]order.Request, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

func scanOrder(row pgx.CollectableRow) (order.Request, error) {
	var (
		o      order.Request
		buyer  string
		status string
	)
	err := row.Scan(
		&o.ID, &o.ListingID, &buyer, &o.OfferPrice, &o.Message,
		&status, &o.CreatedAt,
	)
	o.Buyer = identity.ID(buyer)
	o.Status = order.Status(status)
	return o, err
}
