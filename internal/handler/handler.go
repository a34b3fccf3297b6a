// Package handler serves the storefront HTTP API.
package handler

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/xenking/storefront/internal/backend"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/pricing"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/internal/storefront"
)

// CartService serves the priced cart views.
type CartService interface {
	Cart(ctx context.Context, s session.Session) (*storefront.CartView, error)
	Summary(ctx context.Context, s session.Session) (pricing.Totals, error)
	ChangeQuantity(ctx context.Context, s session.Session, itemID string, quantity int) (*storefront.CartView, error)
	Remove(ctx context.Context, s session.Session, itemID string) (*storefront.CartView, error)
	Categories(ctx context.Context) ([]backend.Category, error)
	Quote(ctx context.Context, productID string, quantity int) (*storefront.ProductQuote, error)
}

// OrderService places and lists orders.
type OrderService interface {
	PlaceOrder(ctx context.Context, s session.Session, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
	History(ctx context.Context, s session.Session, limit int) ([]order.Order, error)
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// Policy is echoed to clients so they can show how far the cart is from
	// free delivery.
	Policy pricing.Policy
	// MaxQuoteQuantity bounds the quantity accepted by the quote endpoint.
	MaxQuoteQuantity int
}

// Handler serves the storefront API.
type Handler struct {
	carts    CartService
	orders   OrderService
	auth     *SecurityHandler
	validate *validator.Validate
	policy   pricing.Policy
	maxQuote int
}

// NewHandler constructs a Handler.
func NewHandler(
	cfg HandlerConfig,
	carts CartService,
	orders OrderService,
	auth *SecurityHandler,
) *Handler {
	if cfg.MaxQuoteQuantity <= 0 {
		cfg.MaxQuoteQuantity = 999
	}
	return &Handler{
		carts:    carts,
		orders:   orders,
		auth:     auth,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		policy:   cfg.Policy,
		maxQuote: cfg.MaxQuoteQuantity,
	}
}

// Register adds the API routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	authed := h.auth.Authenticate

	mux.Handle("GET /api/cart", authed(http.HandlerFunc(h.GetCart)))
	mux.Handle("GET /api/cart/summary", authed(http.HandlerFunc(h.GetCartSummary)))
	mux.Handle("PATCH /api/cart/items/{id}", authed(http.HandlerFunc(h.UpdateCartItem)))
	mux.Handle("DELETE /api/cart/items/{id}", authed(http.HandlerFunc(h.RemoveCartItem)))
	mux.Handle("POST /api/checkout", authed(http.HandlerFunc(h.Checkout)))
	mux.Handle("GET /api/orders", authed(http.HandlerFunc(h.ListOrders)))

	mux.HandleFunc("GET /api/products/{id}/quote", h.QuoteProduct)
	mux.HandleFunc("GET /api/categories", h.ListCategories)
}
