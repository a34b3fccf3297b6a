// Package pricing computes per-item discounted prices and cart totals.
//
// All functions are pure. Amounts are never rounded here; rounding to the
// currency subunit happens only when a value is displayed (see Display).
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront/internal/cart"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Policy holds the delivery fee rules applied to a cart.
type Policy struct {
	// FreeDeliveryThreshold is the subtotal above which the fee is waived.
	FreeDeliveryThreshold decimal.Decimal
	// FlatDeliveryFee is charged when the subtotal does not exceed the threshold.
	FlatDeliveryFee decimal.Decimal
}

// DefaultPolicy returns the policy observed in production: free delivery
// above 800, otherwise a flat fee of 40.
func DefaultPolicy() Policy {
	return Policy{
		FreeDeliveryThreshold: decimal.NewFromInt(800),
		FlatDeliveryFee:       decimal.NewFromInt(40),
	}
}

// Totals is the derived pricing summary of a cart.
type Totals struct {
	Subtotal      decimal.Decimal
	TotalDiscount decimal.Decimal
	DeliveryFee   decimal.Decimal
	GrandTotal    decimal.Decimal
	Savings       decimal.Decimal
}

// DiscountedUnitPrice returns unitPrice reduced by discountPercent percent.
func DiscountedUnitPrice(unitPrice decimal.Decimal, discountPercent int) decimal.Decimal {
	pct := decimal.NewFromInt(int64(discountPercent))
	return unitPrice.Mul(hundred.Sub(pct)).Div(hundred)
}

// Subtotal returns the sum of discounted line amounts. Items whose product
// reference is missing contribute nothing.
func Subtotal(items []cart.Item) decimal.Decimal {
	sum := zero
	for _, item := range items {
		if item.Orphaned() {
			continue
		}
		unit := DiscountedUnitPrice(item.UnitPrice, item.DiscountPercent)
		sum = sum.Add(unit.Mul(qty(item.Quantity)))
	}
	return sum
}

// TotalDiscount returns the sum of unitPrice * quantity * discount / 100 over
// items, skipping orphaned ones.
func TotalDiscount(items []cart.Item) decimal.Decimal {
	sum := zero
	for _, item := range items {
		if item.Orphaned() {
			continue
		}
		gross := item.UnitPrice.Mul(qty(item.Quantity))
		sum = sum.Add(gross.Mul(decimal.NewFromInt(int64(item.DiscountPercent))).Div(hundred))
	}
	return sum
}

// DeliveryFee returns zero when subtotal is strictly greater than the free
// delivery threshold and the flat fee otherwise. A subtotal equal to the
// threshold still pays the fee.
func DeliveryFee(subtotal decimal.Decimal, policy Policy) decimal.Decimal {
	if subtotal.GreaterThan(policy.FreeDeliveryThreshold) {
		return zero
	}
	return policy.FlatDeliveryFee
}

// GrandTotal returns subtotal plus deliveryFee. Taxes and rounding are left
// to the order backend.
func GrandTotal(subtotal, deliveryFee decimal.Decimal) decimal.Decimal {
	return subtotal.Add(deliveryFee)
}

// Savings returns the item discounts plus the flat fee when delivery was
// waived.
func Savings(totalDiscount, deliveryFee decimal.Decimal, policy Policy) decimal.Decimal {
	if deliveryFee.IsZero() {
		return totalDiscount.Add(policy.FlatDeliveryFee)
	}
	return totalDiscount
}

// Compute derives all totals for items under policy.
func Compute(items []cart.Item, policy Policy) Totals {
	subtotal := Subtotal(items)
	discount := TotalDiscount(items)
	fee := DeliveryFee(subtotal, policy)

	return Totals{
		Subtotal:      subtotal,
		TotalDiscount: discount,
		DeliveryFee:   fee,
		GrandTotal:    GrandTotal(subtotal, fee),
		Savings:       Savings(discount, fee, policy),
	}
}

// Display rounds an amount to two decimal places for presentation.
func Display(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func qty(n int) decimal.Decimal {
	return decimal.NewFromInt(int64(n))
}
