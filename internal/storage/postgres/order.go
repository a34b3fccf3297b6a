package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (
		id, backend_order_id, user_id, payment_method, items,
		subtotal, total_discount, delivery_fee, grand_total, savings, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	listOrdersByUserSQL = `SELECT
		id::text, backend_order_id, user_id, payment_method, items,
		subtotal, total_discount, delivery_fee, grand_total, savings, created_at
	FROM orders
	WHERE user_id = $1
	ORDER BY created_at DESC
	LIMIT $2`
)

// defaultListLimit caps ListByUser when no positive limit is given.
const defaultListLimit = 50

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a journal record. Items are serialized to JSON for storage
// in the JSONB column.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.BackendOrderID, o.UserID, o.PaymentMethod, itemsJSON,
		o.Subtotal, o.Discounts, o.DeliveryFee, o.Total, o.Savings, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}

	return nil
}

type orderRow struct {
	ID             string
	BackendOrderID string
	UserID         string
	PaymentMethod  string
	Items          []byte
	Subtotal       decimal.Decimal
	TotalDiscount  decimal.Decimal
	DeliveryFee    decimal.Decimal
	GrandTotal     decimal.Decimal
	Savings        decimal.Decimal
	CreatedAt      time.Time
}

// ListByUser returns the most recent journal records of a user, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]order.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying orders of %q: %w", userID, err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByPos[orderRow])
	if err != nil {
		return nil, fmt.Errorf("collecting orders: %w", err)
	}

	orders := make([]order.Order, len(dbRows))
	for i, row := range dbRows {
		o, err := toDomainOrder(row)
		if err != nil {
			return nil, err
		}
		orders[i] = o
	}

	return orders, nil
}

func toDomainOrder(row orderRow) (order.Order, error) {
	var items []order.OrderItem
	if err := json.Unmarshal(row.Items, &items); err != nil {
		return order.Order{}, fmt.Errorf("unmarshaling items of order %q: %w", row.ID, err)
	}
	return order.Order{
		ID:             row.ID,
		BackendOrderID: row.BackendOrderID,
		UserID:         row.UserID,
		PaymentMethod:  row.PaymentMethod,
		Items:          items,
		Subtotal:       row.Subtotal,
		Discounts:      row.TotalDiscount,
		DeliveryFee:    row.DeliveryFee,
		Total:          row.GrandTotal,
		Savings:        row.Savings,
		CreatedAt:      row.CreatedAt,
	}, nil
}
