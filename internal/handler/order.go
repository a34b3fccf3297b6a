package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/backend"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/pricing"
)

type checkoutRequest struct {
	PaymentMethod string          `json:"paymentMethod" validate:"required,max=32"`
	Address       backend.Address `json:"address"`
}

// Checkout prices the cart, places the order on the backend and returns the
// totals that were charged.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := h.decodeBody(r, &req); err != nil {
		mapError(w, r, err)
		return
	}

	result, err := h.orders.PlaceOrder(r.Context(), sessionFrom(r), order.PlaceOrderRequest{
		PaymentMethod: req.PaymentMethod,
		Address:       req.Address,
	})
	if err != nil {
		mapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, h.order(result.Order, result.Totals))
}

type historyEntry struct {
	ID             string `json:"id"`
	BackendOrderID string `json:"orderId"`
	PaymentMethod  string `json:"paymentMethod"`
	Items          int    `json:"items"`
	GrandTotal     string `json:"grandTotal"`
	Savings        string `json:"savings"`
	CreatedAt      string `json:"createdAt"`
}

// ListOrders lists the journaled orders of the shopper.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 100 {
			mapError(w, r, errors.Wrap(errBadRequest, "limit must be between 1 and 100"))
			return
		}
		limit = n
	}

	orders, err := h.orders.History(r.Context(), sessionFrom(r), limit)
	if err != nil {
		mapError(w, r, err)
		return
	}

	resp := make([]historyEntry, len(orders))
	for i, o := range orders {
		qty := 0
		for _, item := range o.Items {
			qty += item.Quantity
		}
		resp[i] = historyEntry{
			ID:             o.ID,
			BackendOrderID: o.BackendOrderID,
			PaymentMethod:  o.PaymentMethod,
			Items:          qty,
			GrandTotal:     pricing.Display(o.Total),
			Savings:        pricing.Display(o.Savings),
			CreatedAt:      o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
