// Package backend is a client for the marketplace REST backend that owns
// carts, products, categories and orders.
package backend

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// maxBodySize bounds how much of a backend response is read.
const maxBodySize = 4 << 20

// Category is a catalog category.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Address is the shipping address attached to an order.
type Address struct {
	FullName   string `json:"fullName" validate:"required,max=120"`
	Phone      string `json:"phone" validate:"required,max=32"`
	Street     string `json:"street" validate:"required,max=200"`
	City       string `json:"city" validate:"required,max=100"`
	State      string `json:"state" validate:"max=100"`
	PostalCode string `json:"postalCode" validate:"required,max=20"`
	Country    string `json:"country" validate:"required,max=100"`
}

// OrderRequest is the body of an order creation call.
type OrderRequest struct {
	PaymentMethod string
	UserID        string
	TotalPrice    decimal.Decimal
	CartItems     []cart.Item
	Address       Address
}

// OrderConfirmation is the backend's answer to an order creation call.
type OrderConfirmation struct {
	OrderID string
	Status  string
}

// Client calls the marketplace backend on behalf of a session.
type Client struct {
	base *url.URL
	http *http.Client
}

// New creates a Client for the backend rooted at baseURL.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse backend url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("backend url %q must be absolute", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{base: u, http: httpClient}, nil
}

// Cart returns the raw rows of the session's cart.
func (c *Client) Cart(ctx context.Context, s session.Session) ([]cart.RawItem, error) {
	body, err := c.do(ctx, s, http.MethodGet, "/api/cart", nil)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	items, err := DecodeCart(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return items, nil
}

// UpdateQuantity sets the quantity of a cart row.
func (c *Client) UpdateQuantity(ctx context.Context, s session.Session, itemID string, quantity int) error {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("quantity")
	e.Int(quantity)
	e.ObjEnd()

	if _, err := c.do(ctx, s, http.MethodPut, "/api/cart/"+url.PathEscape(itemID), e.Bytes()); err != nil {
		return errors.Wrapf(err, "update cart item %s", itemID)
	}
	return nil
}

// RemoveItem deletes a cart row.
func (c *Client) RemoveItem(ctx context.Context, s session.Session, itemID string) error {
	if _, err := c.do(ctx, s, http.MethodDelete, "/api/cart/"+url.PathEscape(itemID), nil); err != nil {
		return errors.Wrapf(err, "remove cart item %s", itemID)
	}
	return nil
}

// CreateOrder submits an order built from the priced cart.
func (c *Client) CreateOrder(ctx context.Context, s session.Session, req OrderRequest) (*OrderConfirmation, error) {
	body, err := c.do(ctx, s, http.MethodPost, "/api/create-order", encodeOrder(req))
	if err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	conf, err := decodeOrderConfirmation(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode order")
	}
	return conf, nil
}

// Categories lists catalog categories.
func (c *Client) Categories(ctx context.Context) ([]Category, error) {
	body, err := c.do(ctx, session.Session{}, http.MethodGet, "/api/categories", nil)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	cats, err := decodeCategories(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode categories")
	}
	return cats, nil
}

// Product returns a single product snapshot.
func (c *Client) Product(ctx context.Context, productID string) (*cart.RawProduct, error) {
	body, err := c.do(ctx, session.Session{}, http.MethodGet, "/api/products/"+url.PathEscape(productID), nil)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %s", productID)
	}
	p, err := decodeProductResponse(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode product")
	}
	if p == nil {
		return nil, errors.Wrapf(ErrNotFound, "product %s", productID)
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, s session.Session, method, path string, body []byte) ([]byte, error) {
	// path is already escaped.
	u := *c.base
	u.RawPath = c.base.EscapedPath() + path
	p, err := url.PathUnescape(u.RawPath)
	if err != nil {
		return nil, errors.Wrap(err, "build path")
	}
	u.Path = p

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}
	httpmiddleware.PropagateRequestID(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.Join(ErrUnavailable, err), "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, Message: decodeErrorMessage(data)}
	}
	return data, nil
}
