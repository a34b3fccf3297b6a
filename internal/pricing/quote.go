package pricing

import "github.com/shopspring/decimal"

// LineQuote prices a single product at a given quantity, as shown on the
// product details page before the product is added to a cart.
type LineQuote struct {
	UnitPrice           decimal.Decimal
	DiscountedUnitPrice decimal.Decimal
	Quantity            int
	LineTotal           decimal.Decimal
	LineSaving          decimal.Decimal
}

// Quote prices quantity units of a product. A quantity below one is
// treated as one.
func Quote(unitPrice decimal.Decimal, discountPercent, quantity int) LineQuote {
	if quantity < 1 {
		quantity = 1
	}
	unit := DiscountedUnitPrice(unitPrice, discountPercent)
	n := qty(quantity)

	return LineQuote{
		UnitPrice:           unitPrice,
		DiscountedUnitPrice: unit,
		Quantity:            quantity,
		LineTotal:           unit.Mul(n),
		LineSaving:          unitPrice.Sub(unit).Mul(n),
	}
}
