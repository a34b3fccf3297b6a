package handler

import (
	"net/http"

	"github.com/go-faster/errors"
)

// GetCart serves the cart view: normalized items and totals.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	view, err := h.carts.Cart(r.Context(), sessionFrom(r))
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.cart(view))
}

// GetCartSummary serves the order-summary view.
func (h *Handler) GetCartSummary(w http.ResponseWriter, r *http.Request) {
	totals, err := h.carts.Summary(r.Context(), sessionFrom(r))
	if err != nil {
		mapError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.totals(totals))
}

type quantityRequest struct {
	// Quantity may be zero or negative to remove the row.
	Quantity *int `json:"quantity" validate:"required"`
}

// UpdateCartItem changes the quantity of a cart row.
func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")

	var req quantityRequest
	if err := h.decodeBody(r, &req); err != nil {
		mapError(w, r, err)
		return
	}

	view, err := h.carts.ChangeQuantity(r.Context(), sessionFrom(r), itemID, *req.Quantity)
	if err != nil {
		mapError(w, r, errors.Wrapf(err, "change quantity of %s", itemID))
		return
	}
	writeJSON(w, http.StatusOK, h.cart(view))
}

// RemoveCartItem removes a cart row.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	itemID := r.PathValue("id")

	view, err := h.carts.Remove(r.Context(), sessionFrom(r), itemID)
	if err != nil {
		mapError(w, r, errors.Wrapf(err, "remove %s", itemID))
		return
	}
	writeJSON(w, http.StatusOK, h.cart(view))
}
