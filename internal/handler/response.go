package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/backend"
	"github.com/xenking/storefront/internal/cart"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/pricing"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/internal/storefront"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// maxRequestBody bounds decoded request bodies.
const maxRequestBody = 64 << 10

// Money is rendered as a string with two decimals.

type totalsResponse struct {
	Subtotal              string `json:"subtotal"`
	TotalDiscount         string `json:"totalDiscount"`
	DeliveryFee           string `json:"deliveryFee"`
	GrandTotal            string `json:"grandTotal"`
	Savings               string `json:"savings"`
	FreeDeliveryThreshold string `json:"freeDeliveryThreshold"`
}

type cartItemResponse struct {
	ID                  string   `json:"id"`
	ProductID           string   `json:"productId,omitempty"`
	Name                string   `json:"name,omitempty"`
	Images              []string `json:"images,omitempty"`
	UnitPrice           string   `json:"unitPrice"`
	DiscountPercent     int      `json:"discountPercent"`
	DiscountedUnitPrice string   `json:"discountedUnitPrice"`
	Quantity            int      `json:"quantity"`
	LineTotal           string   `json:"lineTotal"`
	Orphaned            bool     `json:"orphaned"`
}

type cartResponse struct {
	Items  []cartItemResponse `json:"items"`
	Totals totalsResponse     `json:"totals"`
}

type quoteResponse struct {
	ProductID           string   `json:"productId"`
	Name                string   `json:"name"`
	Images              []string `json:"images,omitempty"`
	UnitPrice           string   `json:"unitPrice"`
	DiscountPercent     int      `json:"discountPercent"`
	DiscountedUnitPrice string   `json:"discountedUnitPrice"`
	Quantity            int      `json:"quantity"`
	LineTotal           string   `json:"lineTotal"`
	LineSaving          string   `json:"lineSaving"`
}

type orderResponse struct {
	ID             string         `json:"id"`
	BackendOrderID string         `json:"orderId"`
	PaymentMethod  string         `json:"paymentMethod"`
	Totals         totalsResponse `json:"totals"`
	CreatedAt      string         `json:"createdAt"`
}

func (h *Handler) totals(t pricing.Totals) totalsResponse {
	return totalsResponse{
		Subtotal:              pricing.Display(t.Subtotal),
		TotalDiscount:         pricing.Display(t.TotalDiscount),
		DeliveryFee:           pricing.Display(t.DeliveryFee),
		GrandTotal:            pricing.Display(t.GrandTotal),
		Savings:               pricing.Display(t.Savings),
		FreeDeliveryThreshold: pricing.Display(h.policy.FreeDeliveryThreshold),
	}
}

func (h *Handler) cart(v *storefront.CartView) cartResponse {
	items := make([]cartItemResponse, len(v.Items))
	for i, item := range v.Items {
		items[i] = cartItem(item)
	}
	return cartResponse{Items: items, Totals: h.totals(v.Totals)}
}

func cartItem(item cart.Item) cartItemResponse {
	resp := cartItemResponse{
		ID:       item.ID,
		Quantity: item.Quantity,
		Orphaned: item.Orphaned(),
	}
	if item.Orphaned() {
		zero := pricing.Display(decimal.Zero)
		resp.UnitPrice, resp.DiscountedUnitPrice, resp.LineTotal = zero, zero, zero
		return resp
	}

	q := pricing.Quote(item.UnitPrice, item.DiscountPercent, item.Quantity)
	resp.ProductID = item.Product.ID
	resp.Name = item.Product.Name
	resp.Images = item.Product.Images
	resp.UnitPrice = pricing.Display(item.UnitPrice)
	resp.DiscountPercent = item.DiscountPercent
	resp.DiscountedUnitPrice = pricing.Display(q.DiscountedUnitPrice)
	resp.LineTotal = pricing.Display(q.LineTotal)
	return resp
}

func (h *Handler) order(o *order.Order, t pricing.Totals) orderResponse {
	return orderResponse{
		ID:             o.ID,
		BackendOrderID: o.BackendOrderID,
		PaymentMethod:  o.PaymentMethod,
		Totals:         h.totals(t),
		CreatedAt:      o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	httpmiddleware.WriteError(w, status, message)
}

// errBadRequest marks client input errors.
var errBadRequest = errors.New("bad request")

// decodeBody decodes a JSON body into dst and validates it.
func (h *Handler) decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.Wrapf(errBadRequest, "invalid body: %s", err)
	}
	if err := h.validate.Struct(dst); err != nil {
		return errors.Wrap(errBadRequest, validationMessage(err))
	}
	return nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = fe.Namespace() + " failed " + fe.Tag()
	}
	return "invalid " + strings.Join(fields, ", ")
}

// mapError converts service errors to HTTP errors. Unexpected errors are
// logged and hidden from the client.
func mapError(w http.ResponseWriter, r *http.Request, err error) {
	var se *backend.StatusError
	switch {
	case errors.Is(err, errBadRequest):
		writeError(w, http.StatusBadRequest, strings.TrimSuffix(err.Error(), ": "+errBadRequest.Error()))
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, "cart is empty")
	case errors.Is(err, order.ErrUnverifiedSession):
		writeError(w, http.StatusForbidden, "order history requires a verified token")
	case errors.Is(err, session.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, backend.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, backend.ErrUnavailable):
		zctx.From(r.Context()).Error("Backend unavailable", zap.Error(err))
		writeError(w, http.StatusBadGateway, "marketplace backend unavailable")
	case errors.As(err, &se):
		// The backend rejected the request itself.
		writeError(w, http.StatusUnprocessableEntity, se.Message)
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
