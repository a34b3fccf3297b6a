package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

var testSession = session.Session{Token: "tok-1", UserID: "u1", Role: session.RoleBuyer}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return c
}

const cartBody = `{
  "cartItems": [
    {"_id": "i1", "quantity": 2, "productId": {"_id": "p1", "name": "Desk Lamp", "price": 1000, "discount": 10, "images": ["a.jpg", {"url": "b.jpg"}]}},
    {"_id": "i2", "quantity": "3", "productId": {"_id": "p2", "name": "Mug", "price": "12.50", "discount": null}},
    {"_id": "i3", "quantity": 1, "productId": null},
    {"_id": "i4", "quantity": 1, "productId": "p-unpopulated"},
    {"_id": "i5", "productId": {"_id": "p5", "price": "n/a", "extra": {"nested": [1, 2]}}},
    "garbage"
  ],
  "message": "ok"
}`

func TestClient_Cart(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/cart", r.URL.Path)
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, cartBody)
	})

	raw, err := c.Cart(context.Background(), testSession)
	require.NoError(t, err)
	require.Len(t, raw, 5)

	assert.Equal(t, "i1", raw[0].ID)
	require.NotNil(t, raw[0].Quantity)
	assert.Equal(t, 2, *raw[0].Quantity)
	require.NotNil(t, raw[0].Product)
	assert.Equal(t, "Desk Lamp", raw[0].Product.Name)
	assert.True(t, decimal.NewFromInt(1000).Equal(*raw[0].Product.Price))
	assert.True(t, decimal.NewFromInt(10).Equal(*raw[0].Product.Discount))
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, raw[0].Product.Images)

	require.NotNil(t, raw[1].Quantity)
	assert.Equal(t, 3, *raw[1].Quantity)
	assert.True(t, decimal.RequireFromString("12.50").Equal(*raw[1].Product.Price))
	assert.Nil(t, raw[1].Product.Discount)

	assert.Nil(t, raw[2].Product, "null product is dangling")
	assert.Nil(t, raw[3].Product, "unpopulated reference has no snapshot")

	assert.Nil(t, raw[4].Quantity)
	require.NotNil(t, raw[4].Product)
	assert.Nil(t, raw[4].Product.Price)

	items := cart.Normalize(raw)
	require.Len(t, items, 5)
	assert.True(t, items[2].Orphaned())
	assert.Equal(t, 1, items[4].Quantity)
}

func TestClient_CartShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "bare array", body: `[{"_id":"a","quantity":1}]`, want: 1},
		{name: "items key", body: `{"items":[{"id":"a"},{"id":"b"}]}`, want: 2},
		{name: "nested cart", body: `{"cart":{"_id":"c1","items":[{"_id":"a"}]}}`, want: 1},
		{name: "empty", body: `{"cartItems":[]}`, want: 0},
		{name: "no items key", body: `{"message":"cart is empty"}`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, tt.body)
			})
			raw, err := c.Cart(context.Background(), testSession)
			require.NoError(t, err)
			assert.Len(t, raw, tt.want)
		})
	}
}

func TestClient_CartMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"cartItems": [`)
	})

	_, err := c.Cart(context.Background(), testSession)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode cart")
}

func TestClient_StatusErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantIs    error
		wantMsg   string
		temporary bool
	}{
		{name: "not found", status: http.StatusNotFound, body: `{"message":"Cart not found"}`, wantIs: ErrNotFound, wantMsg: "Cart not found"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"error":"jwt expired"}`, wantIs: session.ErrUnauthorized, wantMsg: "jwt expired"},
		{name: "forbidden", status: http.StatusForbidden, body: `forbidden`, wantIs: session.ErrUnauthorized, wantMsg: "forbidden"},
		{name: "server error", status: http.StatusBadGateway, body: ``, wantIs: ErrUnavailable, temporary: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := c.RemoveItem(context.Background(), testSession, "i1")
			require.Error(t, err)

			var se *StatusError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Code)
			assert.Equal(t, tt.wantMsg, se.Message)
			assert.Equal(t, tt.temporary, se.Temporary())
			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
			}
		})
	}
}

func TestClient_UpdateQuantity(t *testing.T) {
	var got map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/cart/i%2F1", r.URL.EscapedPath())
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.UpdateQuantity(context.Background(), testSession, "i/1", 4))
	assert.Equal(t, map[string]any{"quantity": float64(4)}, got)
}

func TestClient_RemoveItem(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "/api/cart/i1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.RemoveItem(context.Background(), testSession, "i1"))
	assert.True(t, called)
}

func TestClient_CreateOrder(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/create-order", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"message":"Order placed","order":{"_id":"o-9","status":"pending","totalPrice":1800}}`)
	})

	items := []cart.Item{
		{ID: "i1", Product: &cart.Product{ID: "p1"}, UnitPrice: decimal.NewFromInt(1000), DiscountPercent: 10, Quantity: 2},
		{ID: "i2", Quantity: 1},
	}
	conf, err := c.CreateOrder(context.Background(), testSession, OrderRequest{
		PaymentMethod: "cod",
		UserID:        "u1",
		TotalPrice:    decimal.RequireFromString("1800.5"),
		CartItems:     items,
		Address:       Address{FullName: "Ada", Phone: "555", Street: "1 Main", City: "Pune", PostalCode: "411001", Country: "IN"},
	})

	require.NoError(t, err)
	assert.Equal(t, &OrderConfirmation{OrderID: "o-9", Status: "pending"}, conf)

	assert.Equal(t, "cod", body["paymentMethod"])
	assert.Equal(t, "u1", body["userId"])
	assert.Equal(t, 1800.5, body["totalPrice"])
	cartItems, ok := body["cartItems"].([]any)
	require.True(t, ok)
	require.Len(t, cartItems, 1, "orphaned rows are not ordered")
	first := cartItems[0].(map[string]any)
	assert.Equal(t, "p1", first["productId"])
	assert.Equal(t, float64(2), first["quantity"])
	assert.Equal(t, float64(1000), first["price"])
	addr := body["address"].(map[string]any)
	assert.Equal(t, "Pune", addr["city"])
	assert.Equal(t, "", addr["state"])
}

func TestClient_CreateOrderWithoutID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	})

	_, err := c.CreateOrder(context.Background(), testSession, OrderRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no order id")
}

func TestClient_Categories(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"categories":[{"_id":"c1","name":"Home"},{"name":"no id"},{"_id":"c2","name":"Kitchen"}]}`)
	})

	cats, err := c.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Category{{ID: "c1", Name: "Home"}, {ID: "c2", Name: "Kitchen"}}, cats)
}

func TestClient_Product(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "wrapped", body: `{"product":{"_id":"p1","name":"Lamp","price":250,"discount":20}}`},
		{name: "bare", body: `{"_id":"p1","name":"Lamp","price":250,"discount":20}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/products/p1", r.URL.Path)
				_, _ = io.WriteString(w, tt.body)
			})

			p, err := c.Product(context.Background(), "p1")
			require.NoError(t, err)
			assert.Equal(t, "Lamp", p.Name)
			assert.True(t, decimal.NewFromInt(250).Equal(*p.Price))
			assert.True(t, decimal.NewFromInt(20).Equal(*p.Discount))
		})
	}
}

func TestClient_ProductMissing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"product":null}`)
	})

	_, err := c.Product(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New("not a url", nil)
	require.Error(t, err)

	_, err = New("/relative/path", nil)
	require.Error(t, err)
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(srv.URL, srv.Client())
	require.NoError(t, err)
	srv.Close()

	_, err = c.Categories(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "send request")

	var se *StatusError
	assert.False(t, errors.As(err, &se), "transport failures carry no status")
}

func TestClient_PropagatesRequestID(t *testing.T) {
	var seen []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get(httpmiddleware.RequestIDHeader))
		_, _ = io.WriteString(w, `{"message":"ok"}`)
	})

	ctx := httpmiddleware.WithRequestID(context.Background(), "req-7")
	require.NoError(t, c.UpdateQuantity(ctx, testSession, "i1", 2))
	require.NoError(t, c.RemoveItem(context.Background(), testSession, "i1"))

	assert.Equal(t, []string{"req-7", ""}, seen)
}
