package order

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/go-faster/sdk/zctx"

	"github.com/xenking/storefront/internal/backend"
	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/pricing"
	"github.com/xenking/storefront/internal/session"
)

// ErrEmptyCart is returned when checkout is attempted with nothing priceable
// in the cart.
var ErrEmptyCart = fmt.Errorf("cart is empty")

// ErrUnverifiedSession is returned when the journal is read with a token
// whose signature was not checked locally.
var ErrUnverifiedSession = fmt.Errorf("order history requires a verified token: %w", session.ErrUnauthorized)

// CartSource provides the current cart snapshot of a session.
type CartSource interface {
	Items(ctx context.Context, s session.Session) ([]cart.Item, error)
	Invalidate(ctx context.Context, s session.Session)
}

// Submitter sends orders to the marketplace backend.
type Submitter interface {
	CreateOrder(ctx context.Context, s session.Session, req backend.OrderRequest) (*backend.OrderConfirmation, error)
}

// PlaceOrderRequest holds the shopper's checkout input.
type PlaceOrderRequest struct {
	PaymentMethod string
	Address       backend.Address
}

// PlaceOrderResult holds the outcome of a successful checkout.
type PlaceOrderResult struct {
	Order  *Order
	Totals pricing.Totals
	Items  []cart.Item
}

// Service encapsulates checkout: pricing the current cart, submitting the
// order and journaling what was charged.
type Service struct {
	carts   CartSource
	backend Submitter
	orders  Repository
	policy  pricing.Policy
	now     func() time.Time
}

// NewService creates an order Service. orders may be nil, in which case
// orders are not journaled.
func NewService(
	carts CartSource,
	submitter Submitter,
	orders Repository,
	policy pricing.Policy,
) *Service {
	return &Service{
		carts:   carts,
		backend: submitter,
		orders:  orders,
		policy:  policy,
		now:     time.Now,
	}
}

// PlaceOrder prices the session's cart, submits it to the backend, journals
// the result and invalidates the cached cart.
func (s *Service) PlaceOrder(ctx context.Context, sess session.Session, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	items, err := s.carts.Items(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}

	// Orphaned rows cannot be ordered.
	priced := make([]cart.Item, 0, len(items))
	for _, item := range items {
		if !item.Orphaned() {
			priced = append(priced, item)
		}
	}
	if len(priced) == 0 {
		return nil, ErrEmptyCart
	}

	totals := pricing.Compute(priced, s.policy)

	conf, err := s.backend.CreateOrder(ctx, sess, backend.OrderRequest{
		PaymentMethod: req.PaymentMethod,
		UserID:        sess.UserID,
		TotalPrice:    totals.GrandTotal.Round(2),
		CartItems:     priced,
		Address:       req.Address,
	})
	if err != nil {
		return nil, fmt.Errorf("submit order: %w", err)
	}

	// The backend clears the cart once the order exists.
	s.carts.Invalidate(ctx, sess)

	o := &Order{
		ID:             uuid.New().String(),
		BackendOrderID: conf.OrderID,
		UserID:         sess.UserID,
		PaymentMethod:  req.PaymentMethod,
		Items:          toOrderItems(priced),
		Subtotal:       totals.Subtotal.Round(2),
		Discounts:      totals.TotalDiscount.Round(2),
		DeliveryFee:    totals.DeliveryFee.Round(2),
		Total:          totals.GrandTotal.Round(2),
		Savings:        totals.Savings.Round(2),
		CreatedAt:      s.now().UTC(),
	}
	if s.orders != nil {
		// The order already exists on the backend; a journal failure must
		// not be reported as a failed checkout.
		if err := s.orders.Create(ctx, o); err != nil {
			zctx.From(ctx).Error("Journal order",
				zap.String("order_id", o.ID),
				zap.String("backend_order_id", o.BackendOrderID),
				zap.Error(err),
			)
		}
	}

	return &PlaceOrderResult{
		Order:  o,
		Totals: totals,
		Items:  priced,
	}, nil
}

// History returns the most recent journaled orders of the session's user.
// The journal is keyed by user id, so only locally verified sessions may
// read it.
func (s *Service) History(ctx context.Context, sess session.Session, limit int) ([]Order, error) {
	if !sess.Verified {
		return nil, ErrUnverifiedSession
	}
	if s.orders == nil {
		return []Order{}, nil
	}
	orders, err := s.orders.ListByUser(ctx, sess.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func toOrderItems(items []cart.Item) []OrderItem {
	out := make([]OrderItem, len(items))
	for i, item := range items {
		out[i] = OrderItem{
			CartItemID:      item.ID,
			ProductID:       item.ProductID(),
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			DiscountPercent: item.DiscountPercent,
		}
	}
	return out
}
