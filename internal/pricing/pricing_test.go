package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/storefront/internal/cart"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func item(id, price string, discount, quantity int) cart.Item {
	return cart.Item{
		ID:              id,
		Product:         &cart.Product{ID: "prod-" + id, Price: d(price), DiscountPercent: discount},
		UnitPrice:       d(price),
		DiscountPercent: discount,
		Quantity:        quantity,
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestDiscountedUnitPrice(t *testing.T) {
	tests := []struct {
		name     string
		price    string
		discount int
		want     string
	}{
		{name: "no discount keeps price", price: "129.99", discount: 0, want: "129.99"},
		{name: "full discount is free", price: "129.99", discount: 100, want: "0"},
		{name: "ten percent", price: "1000", discount: 10, want: "900"},
		{name: "not rounded", price: "9.99", discount: 15, want: "8.4915"},
		{name: "zero price", price: "0", discount: 50, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.want, DiscountedUnitPrice(d(tt.price), tt.discount))
		})
	}
}

func TestSubtotalAndDiscount(t *testing.T) {
	orphan := cart.Item{ID: "gone", UnitPrice: d("500"), DiscountPercent: 20, Quantity: 3}

	tests := []struct {
		name         string
		items        []cart.Item
		wantSubtotal string
		wantDiscount string
	}{
		{
			name:         "empty cart",
			items:        nil,
			wantSubtotal: "0",
			wantDiscount: "0",
		},
		{
			name:         "single discounted item",
			items:        []cart.Item{item("1", "1000", 10, 2)},
			wantSubtotal: "1800",
			wantDiscount: "200",
		},
		{
			name: "mixed items",
			items: []cart.Item{
				item("1", "250", 0, 1),
				item("2", "99.90", 50, 3),
			},
			wantSubtotal: "399.85",
			wantDiscount: "149.85",
		},
		{
			name: "orphaned item contributes nothing",
			items: []cart.Item{
				item("1", "250", 0, 1),
				orphan,
				item("2", "99.90", 50, 3),
			},
			wantSubtotal: "399.85",
			wantDiscount: "149.85",
		},
		{
			name:         "only orphaned items",
			items:        []cart.Item{orphan},
			wantSubtotal: "0",
			wantDiscount: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertDecimal(t, tt.wantSubtotal, Subtotal(tt.items))
			assertDecimal(t, tt.wantDiscount, TotalDiscount(tt.items))
		})
	}
}

func TestSubtotal_NoIntermediateRounding(t *testing.T) {
	// 3 x 0.335 = 1.005; rounding each unit first would give 1.02.
	items := []cart.Item{
		item("1", "0.67", 50, 1),
		item("2", "0.67", 50, 1),
		item("3", "0.67", 50, 1),
	}
	assertDecimal(t, "1.005", Subtotal(items))
}

func TestDeliveryFee(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		subtotal string
		want     string
	}{
		{subtotal: "0", want: "40"},
		{subtotal: "100", want: "40"},
		{subtotal: "799.99", want: "40"},
		{subtotal: "800", want: "40"},
		{subtotal: "800.01", want: "0"},
		{subtotal: "1800", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.subtotal, func(t *testing.T) {
			assertDecimal(t, tt.want, DeliveryFee(d(tt.subtotal), policy))
		})
	}
}

func TestDeliveryFee_CustomPolicy(t *testing.T) {
	policy := Policy{FreeDeliveryThreshold: d("50"), FlatDeliveryFee: d("4.99")}

	assertDecimal(t, "4.99", DeliveryFee(d("50"), policy))
	assertDecimal(t, "0", DeliveryFee(d("50.5"), policy))
}

func TestGrandTotal(t *testing.T) {
	for _, tc := range [][3]string{
		{"0", "0", "0"},
		{"100", "40", "140"},
		{"1800", "0", "1800"},
		{"12.345", "4.99", "17.335"},
	} {
		assertDecimal(t, tc[2], GrandTotal(d(tc[0]), d(tc[1])))
	}
}

func TestSavings(t *testing.T) {
	policy := DefaultPolicy()

	assertDecimal(t, "240", Savings(d("200"), decimal.Zero, policy))
	assertDecimal(t, "0", Savings(decimal.Zero, d("40"), policy))
	assertDecimal(t, "15.5", Savings(d("15.5"), d("40"), policy))
}

func TestCompute(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name  string
		items []cart.Item
		want  Totals
	}{
		{
			name:  "large basket waives delivery",
			items: []cart.Item{item("1", "1000", 10, 2)},
			want: Totals{
				Subtotal:      d("1800"),
				TotalDiscount: d("200"),
				DeliveryFee:   d("0"),
				GrandTotal:    d("1800"),
				Savings:       d("240"),
			},
		},
		{
			name:  "small basket pays delivery",
			items: []cart.Item{item("1", "100", 0, 1)},
			want: Totals{
				Subtotal:      d("100"),
				TotalDiscount: d("0"),
				DeliveryFee:   d("40"),
				GrandTotal:    d("140"),
				Savings:       d("0"),
			},
		},
		{
			name:  "exactly at threshold pays delivery",
			items: []cart.Item{item("1", "400", 0, 2)},
			want: Totals{
				Subtotal:      d("800"),
				TotalDiscount: d("0"),
				DeliveryFee:   d("40"),
				GrandTotal:    d("840"),
				Savings:       d("0"),
			},
		},
		{
			name:  "empty cart",
			items: nil,
			want: Totals{
				Subtotal:      d("0"),
				TotalDiscount: d("0"),
				DeliveryFee:   d("40"),
				GrandTotal:    d("40"),
				Savings:       d("0"),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.items, policy)
			assertDecimal(t, tt.want.Subtotal.String(), got.Subtotal)
			assertDecimal(t, tt.want.TotalDiscount.String(), got.TotalDiscount)
			assertDecimal(t, tt.want.DeliveryFee.String(), got.DeliveryFee)
			assertDecimal(t, tt.want.GrandTotal.String(), got.GrandTotal)
			assertDecimal(t, tt.want.Savings.String(), got.Savings)
		})
	}
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "1.01", Display(d("1.005")))
	assert.Equal(t, "1800.00", Display(d("1800")))
	assert.Equal(t, "8.49", Display(d("8.4915")))
}

func TestQuote(t *testing.T) {
	q := Quote(d("250"), 20, 3)

	assertDecimal(t, "250", q.UnitPrice)
	assertDecimal(t, "200", q.DiscountedUnitPrice)
	assert.Equal(t, 3, q.Quantity)
	assertDecimal(t, "600", q.LineTotal)
	assertDecimal(t, "150", q.LineSaving)
}

func TestQuote_QuantityFloor(t *testing.T) {
	q := Quote(d("10"), 0, 0)

	assert.Equal(t, 1, q.Quantity)
	assertDecimal(t, "10", q.LineTotal)
	assertDecimal(t, "0", q.LineSaving)
}
