package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the local journal record of an order submitted to the backend,
// holding the totals the shopper was shown when placing it.
type Order struct {
	ID             string
	BackendOrderID string
	UserID         string
	PaymentMethod  string
	Items          []OrderItem
	Subtotal       decimal.Decimal
	Discounts      decimal.Decimal
	DeliveryFee    decimal.Decimal
	Total          decimal.Decimal
	Savings        decimal.Decimal
	CreatedAt      time.Time
}

// OrderItem is a single priced line of an order.
type OrderItem struct {
	CartItemID      string          `json:"cart_item_id"`
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent int             `json:"discount_percent"`
}

// Repository persists journal records.
type Repository interface {
	Create(ctx context.Context, order *Order) error
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
}
