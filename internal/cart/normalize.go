package cart

import (
	"github.com/shopspring/decimal"
)

// RawProduct is a product snapshot as received from the backend. Any field
// may be absent.
type RawProduct struct {
	ID       string
	Name     string
	Price    *decimal.Decimal
	Discount *decimal.Decimal
	Images   []string
}

// RawItem is a cart row as received from the backend. Product is nil when
// the backend returned a null or missing product reference.
type RawItem struct {
	ID       string
	Quantity *int
	Product  *RawProduct
}

// Normalize converts raw backend rows into validated items:
//   - missing price or discount defaults to 0
//   - negative price is clamped to 0
//   - discount is truncated to an integer and clamped into [0, 100]
//   - missing or non-positive quantity becomes 1
//
// Rows without an id are dropped. Rows without a product are kept as
// orphaned items so callers can still remove them.
func Normalize(raw []RawItem) []Item {
	items := make([]Item, 0, len(raw))
	for _, r := range raw {
		if r.ID == "" {
			continue
		}
		item := Item{
			ID:       r.ID,
			Quantity: 1,
		}
		if r.Quantity != nil && *r.Quantity > 0 {
			item.Quantity = *r.Quantity
		}
		if r.Product != nil {
			p := NormalizeProduct(r.Product)
			item.Product = &p
			item.UnitPrice = p.Price
			item.DiscountPercent = p.DiscountPercent
		}
		items = append(items, item)
	}
	return items
}

// NormalizeProduct applies the price and discount rules of Normalize to a
// single product snapshot.
func NormalizeProduct(r *RawProduct) Product {
	p := Product{
		ID:     r.ID,
		Name:   r.Name,
		Price:  decimal.Zero,
		Images: r.Images,
	}
	if r.Price != nil && r.Price.IsPositive() {
		p.Price = *r.Price
	}
	if r.Discount != nil {
		p.DiscountPercent = ClampDiscount(r.Discount.IntPart())
	}
	return p
}

// ClampDiscount bounds a discount percentage to [0, 100].
func ClampDiscount(pct int64) int {
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	default:
		return int(pct)
	}
}
