package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/backend"
	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/pricing"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/internal/storefront"
)

// --- Mock implementations ---

type mockCartService struct {
	items      []cart.Item
	err        error
	categories []backend.Category
	quote      *storefront.ProductQuote

	lastItemID   string
	lastQuantity int
	lastSession  session.Session
}

func (m *mockCartService) view() *storefront.CartView {
	return &storefront.CartView{Items: m.items, Totals: pricing.Compute(m.items, pricing.DefaultPolicy())}
}

func (m *mockCartService) Cart(_ context.Context, s session.Session) (*storefront.CartView, error) {
	m.lastSession = s
	if m.err != nil {
		return nil, m.err
	}
	return m.view(), nil
}

func (m *mockCartService) Summary(_ context.Context, s session.Session) (pricing.Totals, error) {
	m.lastSession = s
	if m.err != nil {
		return pricing.Totals{}, m.err
	}
	return m.view().Totals, nil
}

func (m *mockCartService) ChangeQuantity(_ context.Context, _ session.Session, itemID string, quantity int) (*storefront.CartView, error) {
	m.lastItemID, m.lastQuantity = itemID, quantity
	if m.err != nil {
		return nil, m.err
	}
	return m.view(), nil
}

func (m *mockCartService) Remove(_ context.Context, _ session.Session, itemID string) (*storefront.CartView, error) {
	m.lastItemID = itemID
	if m.err != nil {
		return nil, m.err
	}
	return m.view(), nil
}

func (m *mockCartService) Categories(_ context.Context) ([]backend.Category, error) {
	return m.categories, m.err
}

func (m *mockCartService) Quote(_ context.Context, _ string, quantity int) (*storefront.ProductQuote, error) {
	m.lastQuantity = quantity
	if m.err != nil {
		return nil, m.err
	}
	q := *m.quote
	q.Quote = pricing.Quote(q.Product.Price, q.Product.DiscountPercent, quantity)
	return &q, nil
}

type mockOrderService struct {
	lastReq order.PlaceOrderRequest
	result  *order.PlaceOrderResult
	orders  []order.Order
	err     error
}

func (m *mockOrderService) PlaceOrder(_ context.Context, _ session.Session, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *mockOrderService) History(_ context.Context, _ session.Session, _ int) ([]order.Order, error) {
	return m.orders, m.err
}

// --- Helpers ---

var testSecret = []byte("test-secret")

func signToken(t *testing.T, userID string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, session.Claims{
		UserID: userID,
		Role:   session.RoleBuyer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	s, err := tok.SignedString(testSecret)
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T, carts CartService, orders OrderService) *http.ServeMux {
	t.Helper()
	h := NewHandler(
		HandlerConfig{Policy: pricing.DefaultPolicy(), MaxQuoteQuantity: 50},
		carts,
		orders,
		NewSecurityHandler(session.NewParser(testSecret)),
	)
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, path, body string, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if authed {
		req.Header.Set("Authorization", "Bearer "+signToken(t, "u1"))
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&v))
	return v
}

type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func sampleItems() []cart.Item {
	price := decimal.NewFromInt(1000)
	return []cart.Item{
		{
			ID:              "i1",
			Product:         &cart.Product{ID: "p1", Name: "Desk Lamp", Price: price, DiscountPercent: 10, Images: []string{"a.jpg"}},
			UnitPrice:       price,
			DiscountPercent: 10,
			Quantity:        2,
		},
		{ID: "i2", Quantity: 1},
	}
}

// --- Tests ---

func TestGetCart(t *testing.T) {
	carts := &mockCartService{items: sampleItems()}
	mux := newTestServer(t, carts, &mockOrderService{})

	w := do(t, mux, http.MethodGet, "/api/cart", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "u1", carts.lastSession.UserID)

	body := decode[cartResponse](t, w)
	require.Len(t, body.Items, 2)

	first := body.Items[0]
	assert.Equal(t, "p1", first.ProductID)
	assert.Equal(t, "1000.00", first.UnitPrice)
	assert.Equal(t, "900.00", first.DiscountedUnitPrice)
	assert.Equal(t, "1800.00", first.LineTotal)
	assert.False(t, first.Orphaned)

	assert.True(t, body.Items[1].Orphaned)
	assert.Equal(t, "0.00", body.Items[1].LineTotal)

	assert.Equal(t, totalsResponse{
		Subtotal:              "1800.00",
		TotalDiscount:         "200.00",
		DeliveryFee:           "0.00",
		GrandTotal:            "1800.00",
		Savings:               "240.00",
		FreeDeliveryThreshold: "800.00",
	}, body.Totals)
}

func TestAuthentication(t *testing.T) {
	mux := newTestServer(t, &mockCartService{}, &mockOrderService{})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing"},
		{name: "wrong scheme", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not-a-jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, errorBody{Code: 401, Message: "unauthorized"}, decode[errorBody](t, w))
		})
	}
}

func TestGetCartSummary(t *testing.T) {
	price := decimal.NewFromInt(100)
	carts := &mockCartService{items: []cart.Item{
		{ID: "i1", Product: &cart.Product{ID: "p1"}, UnitPrice: price, Quantity: 1},
	}}
	mux := newTestServer(t, carts, &mockOrderService{})

	w := do(t, mux, http.MethodGet, "/api/cart/summary", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[totalsResponse](t, w)
	assert.Equal(t, "100.00", body.Subtotal)
	assert.Equal(t, "40.00", body.DeliveryFee)
	assert.Equal(t, "140.00", body.GrandTotal)
	assert.Equal(t, "0.00", body.Savings)
}

func TestUpdateCartItem(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantQty    int
	}{
		{name: "set", body: `{"quantity":3}`, wantStatus: http.StatusOK, wantQty: 3},
		{name: "zero removes", body: `{"quantity":0}`, wantStatus: http.StatusOK, wantQty: 0},
		{name: "missing quantity", body: `{}`, wantStatus: http.StatusBadRequest},
		{name: "unknown field", body: `{"quantity":1,"qty":2}`, wantStatus: http.StatusBadRequest},
		{name: "malformed", body: `{"quantity":`, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			carts := &mockCartService{items: sampleItems(), lastQuantity: -99}
			mux := newTestServer(t, carts, &mockOrderService{})

			w := do(t, mux, http.MethodPatch, "/api/cart/items/i1", tt.body, true)
			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "i1", carts.lastItemID)
				assert.Equal(t, tt.wantQty, carts.lastQuantity)
			} else {
				assert.Equal(t, -99, carts.lastQuantity, "service not called")
			}
		})
	}
}

func TestRemoveCartItem(t *testing.T) {
	carts := &mockCartService{items: sampleItems()}
	mux := newTestServer(t, carts, &mockOrderService{})

	w := do(t, mux, http.MethodDelete, "/api/cart/items/i2", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "i2", carts.lastItemID)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{name: "unauthorized upstream", err: &backend.StatusError{Code: 401}, wantStatus: http.StatusUnauthorized, wantMsg: "unauthorized"},
		{name: "not found", err: errors.Wrap(&backend.StatusError{Code: 404}, "get cart"), wantStatus: http.StatusNotFound, wantMsg: "not found"},
		{name: "rejected", err: &backend.StatusError{Code: 409, Message: "out of stock"}, wantStatus: http.StatusUnprocessableEntity, wantMsg: "out of stock"},
		{name: "upstream down", err: &backend.StatusError{Code: 503}, wantStatus: http.StatusBadGateway, wantMsg: "marketplace backend unavailable"},
		{name: "unverified session", err: errors.Wrap(order.ErrUnverifiedSession, "list orders"), wantStatus: http.StatusForbidden, wantMsg: "order history requires a verified token"},
		{name: "unexpected", err: errors.New("boom"), wantStatus: http.StatusInternalServerError, wantMsg: "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestServer(t, &mockCartService{err: tt.err}, &mockOrderService{})

			w := do(t, mux, http.MethodGet, "/api/cart", "", true)
			assert.Equal(t, tt.wantStatus, w.Code)
			body := decode[errorBody](t, w)
			assert.Equal(t, tt.wantStatus, body.Code)
			assert.Equal(t, tt.wantMsg, body.Message)
		})
	}
}

const validCheckout = `{
  "paymentMethod": "cod",
  "address": {
    "fullName": "Ada Lovelace",
    "phone": "555-0100",
    "street": "1 Main St",
    "city": "Pune",
    "postalCode": "411001",
    "country": "IN"
  }
}`

func TestCheckout(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	items := sampleItems()[:1]
	orders := &mockOrderService{result: &order.PlaceOrderResult{
		Order: &order.Order{
			ID:             "j-1",
			BackendOrderID: "o-1",
			PaymentMethod:  "cod",
			CreatedAt:      created,
		},
		Totals: pricing.Compute(items, pricing.DefaultPolicy()),
		Items:  items,
	}}
	mux := newTestServer(t, &mockCartService{}, orders)

	w := do(t, mux, http.MethodPost, "/api/checkout", validCheckout, true)
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, "cod", orders.lastReq.PaymentMethod)
	assert.Equal(t, "Pune", orders.lastReq.Address.City)

	body := decode[orderResponse](t, w)
	assert.Equal(t, "o-1", body.BackendOrderID)
	assert.Equal(t, "1800.00", body.Totals.GrandTotal)
	assert.Equal(t, "240.00", body.Totals.Savings)
	assert.Equal(t, "2026-03-01T10:00:00Z", body.CreatedAt)
}

func TestCheckout_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{name: "no payment method", body: `{"address":{"fullName":"A","phone":"1","street":"s","city":"c","postalCode":"p","country":"IN"}}`, wantMsg: "PaymentMethod"},
		{name: "no address", body: `{"paymentMethod":"cod"}`, wantMsg: "Address.FullName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &mockOrderService{}
			mux := newTestServer(t, &mockCartService{}, orders)

			w := do(t, mux, http.MethodPost, "/api/checkout", tt.body, true)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, decode[errorBody](t, w).Message, tt.wantMsg)
			assert.Empty(t, orders.lastReq.PaymentMethod, "service not called")
		})
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	mux := newTestServer(t, &mockCartService{}, &mockOrderService{err: order.ErrEmptyCart})

	w := do(t, mux, http.MethodPost, "/api/checkout", validCheckout, true)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, errorBody{Code: 422, Message: "cart is empty"}, decode[errorBody](t, w))
}

func TestListOrders(t *testing.T) {
	orders := &mockOrderService{orders: []order.Order{{
		ID:             "j-1",
		BackendOrderID: "o-1",
		Items:          []order.OrderItem{{Quantity: 2}, {Quantity: 1}},
		Total:          decimal.RequireFromString("1800"),
		Savings:        decimal.RequireFromString("240.5"),
	}}}
	mux := newTestServer(t, &mockCartService{}, orders)

	w := do(t, mux, http.MethodGet, "/api/orders?limit=5", "", true)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[[]historyEntry](t, w)
	require.Len(t, body, 1)
	assert.Equal(t, 3, body[0].Items)
	assert.Equal(t, "1800.00", body[0].GrandTotal)
	assert.Equal(t, "240.50", body[0].Savings)

	w = do(t, mux, http.MethodGet, "/api/orders?limit=0", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuoteProduct(t *testing.T) {
	carts := &mockCartService{quote: &storefront.ProductQuote{
		Product: cart.Product{ID: "p1", Name: "Lamp", Price: decimal.RequireFromString("249.99"), DiscountPercent: 20},
	}}
	mux := newTestServer(t, carts, &mockOrderService{})

	w := do(t, mux, http.MethodGet, "/api/products/p1/quote?quantity=3", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	body := decode[quoteResponse](t, w)
	assert.Equal(t, 3, body.Quantity)
	assert.Equal(t, "249.99", body.UnitPrice)
	assert.Equal(t, "199.99", body.DiscountedUnitPrice)
	assert.Equal(t, "599.98", body.LineTotal)
	assert.Equal(t, "149.99", body.LineSaving)

	w = do(t, mux, http.MethodGet, "/api/products/p1/quote", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, carts.lastQuantity, "defaults to one")

	for _, q := range []string{"0", "51", "abc"} {
		w = do(t, mux, http.MethodGet, "/api/products/p1/quote?quantity="+q, "", false)
		assert.Equal(t, http.StatusBadRequest, w.Code, "quantity=%s", q)
	}
}

func TestQuoteProduct_NotFound(t *testing.T) {
	mux := newTestServer(t, &mockCartService{err: backend.ErrNotFound}, &mockOrderService{})

	w := do(t, mux, http.MethodGet, "/api/products/nope/quote", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListCategories(t *testing.T) {
	carts := &mockCartService{categories: []backend.Category{{ID: "c1", Name: "Home"}}}
	mux := newTestServer(t, carts, &mockOrderService{})

	w := do(t, mux, http.MethodGet, "/api/categories", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []categoryResponse{{ID: "c1", Name: "Home"}}, decode[[]categoryResponse](t, w))
}
