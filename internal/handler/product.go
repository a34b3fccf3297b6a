package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront/internal/pricing"
)

// QuoteProduct prices a quantity of a product for the product details view.
func (h *Handler) QuoteProduct(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	quantity := 1
	if v := r.URL.Query().Get("quantity"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > h.maxQuote {
			mapError(w, r, errors.Wrapf(errBadRequest, "quantity must be between 1 and %d", h.maxQuote))
			return
		}
		quantity = n
	}

	pq, err := h.carts.Quote(r.Context(), productID, quantity)
	if err != nil {
		mapError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, quoteResponse{
		ProductID:           pq.Product.ID,
		Name:                pq.Product.Name,
		Images:              pq.Product.Images,
		UnitPrice:           pricing.Display(pq.Quote.UnitPrice),
		DiscountPercent:     pq.Product.DiscountPercent,
		DiscountedUnitPrice: pricing.Display(pq.Quote.DiscountedUnitPrice),
		Quantity:            pq.Quote.Quantity,
		LineTotal:           pricing.Display(pq.Quote.LineTotal),
		LineSaving:          pricing.Display(pq.Quote.LineSaving),
	})
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ListCategories lists catalog categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.carts.Categories(r.Context())
	if err != nil {
		mapError(w, r, err)
		return
	}

	resp := make([]categoryResponse, len(cats))
	for i, c := range cats {
		resp[i] = categoryResponse{ID: c.ID, Name: c.Name}
	}
	writeJSON(w, http.StatusOK, resp)
}
