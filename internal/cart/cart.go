// Package cart holds the local snapshot of a shopper's cart as mirrored from
// the marketplace backend, and the rules for reconciling changes to it.
package cart

import (
	"github.com/shopspring/decimal"
)

// Product is the denormalized product snapshot embedded in a cart row at the
// time the cart was read. It is not re-validated against the catalog.
type Product struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int             `json:"discountPercent"`
	Images          []string        `json:"images,omitempty"`
}

// Item is a validated cart line. Quantity is always at least one.
type Item struct {
	ID              string          `json:"id"`
	Product         *Product        `json:"product"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent int             `json:"discountPercent"`
	Quantity        int             `json:"quantity"`
}

// Orphaned reports whether the item's product reference is missing, for
// example because the seller deleted the product after it was added.
func (i Item) Orphaned() bool {
	return i.Product == nil
}

// ProductID returns the referenced product id, or "" for orphaned items.
func (i Item) ProductID() string {
	if i.Product == nil {
		return ""
	}
	return i.Product.ID
}

// RemovalIntent asks the caller to delete a cart row on the backend.
type RemovalIntent struct {
	ItemID string
}

// ApplyQuantityChange returns items with the quantity of itemID replaced by
// newQuantity. The input slice is never modified.
//
// A newQuantity of zero or less is not stored: items is returned unchanged
// together with a RemovalIntent for itemID. An unknown itemID is a no-op.
func ApplyQuantityChange(items []Item, itemID string, newQuantity int) ([]Item, *RemovalIntent) {
	idx := indexOf(items, itemID)
	if idx < 0 {
		return items, nil
	}
	if newQuantity <= 0 {
		return items, &RemovalIntent{ItemID: itemID}
	}

	out := make([]Item, len(items))
	copy(out, items)
	out[idx].Quantity = newQuantity
	return out, nil
}

// Remove returns items without itemID. The input slice is never modified.
func Remove(items []Item, itemID string) []Item {
	idx := indexOf(items, itemID)
	if idx < 0 {
		return items
	}
	out := make([]Item, 0, len(items)-1)
	out = append(out, items[:idx]...)
	return append(out, items[idx+1:]...)
}

// Find returns the item with the given id.
func Find(items []Item, itemID string) (Item, bool) {
	idx := indexOf(items, itemID)
	if idx < 0 {
		return Item{}, false
	}
	return items[idx], true
}

func indexOf(items []Item, itemID string) int {
	for i := range items {
		if items[i].ID == itemID {
			return i
		}
	}
	return -1
}
