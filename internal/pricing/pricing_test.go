package pricing

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tillpoint/pos-api/internal/apperror"
	"github.com/tillpoint/pos-api/internal/enum"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDec(t *testing.T, want string, got decimal.Decimal, field string) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), "%s: got %s, want %s", field, got.StringFixed(2), want)
}

// --- ApplyDiscount ---

func TestApplyDiscount_Percentage(t *testing.T) {
	for _, v := range []string{"0", "12.5", "20", "33.333", "99.99", "100"} {
		t.Run(v, func(t *testing.T) {
			subtotal := dec("87.45")
			got, err := ApplyDiscount(subtotal, Discount{Type: enum.DiscountTypePercentage, Value: dec(v)})
			require.NoError(t, err)
			want := subtotal.Mul(dec(v)).Div(decimal.NewFromInt(100)).Round(2)
			assert.True(t, got.Equal(want), "got %s want %s", got, want)
		})
	}
}

func TestApplyDiscount_PercentageOver100(t *testing.T) {
	_, err := ApplyDiscount(dec("50"), Discount{Type: enum.DiscountTypePercentage, Value: dec("100.01")})
	assert.ErrorIs(t, err, ErrPercentageOutOfRange)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestApplyDiscount_Fixed(t *testing.T) {
	got, err := ApplyDiscount(dec("40"), Discount{Type: enum.DiscountTypeFixed, Value: dec("15")})
	require.NoError(t, err)
	assertDec(t, "15", got, "amount")

	got, err = ApplyDiscount(dec("40"), Discount{Type: enum.DiscountTypeFixed, Value: dec("40")})
	require.NoError(t, err)
	assertDec(t, "40", got, "amount equal to subtotal")
}

func TestApplyDiscount_FixedExceedsSubtotal(t *testing.T) {
	_, err := ApplyDiscount(dec("40"), Discount{Type: enum.DiscountTypeFixed, Value: dec("40.01")})
	assert.ErrorIs(t, err, ErrFixedExceedsSubtotal)
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestApplyDiscount_Negative(t *testing.T) {
	for _, typ := range []string{enum.DiscountTypePercentage, enum.DiscountTypeFixed} {
		_, err := ApplyDiscount(dec("10"), Discount{Type: typ, Value: dec("-1")})
		assert.ErrorIs(t, err, ErrNegativeDiscount, typ)
	}
}

func TestApplyDiscount_UnknownType(t *testing.T) {
	_, err := ApplyDiscount(dec("10"), Discount{Type: "bogo", Value: dec("1")})
	assert.ErrorIs(t, err, ErrInvalidDiscountType)
}

// --- PriceOrder scenarios ---

func TestPriceOrder_ScenarioA_NoDiscounts(t *testing.T) {
	res, err := PriceOrder([]Item{
		{ProductID: "p1", Name: "Widget", UnitPrice: dec("10"), Quantity: 3},
	}, nil, dec("0.1"))
	require.NoError(t, err)

	assertDec(t, "30", res.Subtotal, "subtotal")
	assertDec(t, "0", res.ItemDiscountTotal, "itemDiscountTotal")
	assertDec(t, "30", res.SubtotalAfterDiscount, "subtotalAfterDiscount")
	assertDec(t, "3", res.TaxAmount, "tax")
	assertDec(t, "33", res.Total, "total")
}

func TestPriceOrder_ScenarioB_LinePercentage(t *testing.T) {
	res, err := PriceOrder([]Item{
		{ProductID: "p1", UnitPrice: dec("50"), Quantity: 1,
			Discount: &Discount{Type: enum.DiscountTypePercentage, Value: dec("20")}},
	}, nil, decimal.Zero)
	require.NoError(t, err)

	require.Len(t, res.Lines, 1)
	assertDec(t, "10", res.Lines[0].DiscountAmount, "lineDiscount")
	assertDec(t, "50", res.Subtotal, "subtotal")
	assertDec(t, "10", res.ItemDiscountTotal, "itemDiscountTotal")
	assertDec(t, "40", res.SubtotalAfterDiscount, "subtotalAfterDiscount")
	assertDec(t, "40", res.Total, "total")
}

func TestPriceOrder_ScenarioC_CheckoutFixedExceeds(t *testing.T) {
	_, err := PriceOrder([]Item{
		{ProductID: "p1", UnitPrice: dec("50"), Quantity: 1,
			Discount: &Discount{Type: enum.DiscountTypePercentage, Value: dec("20")}},
	}, &Discount{Type: enum.DiscountTypeFixed, Value: dec("100")}, decimal.Zero)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFixedExceedsSubtotal)
	assert.Contains(t, err.Error(), "checkout discount")
	assert.Contains(t, err.Error(), "Fixed discount cannot exceed subtotal")
}

func TestPriceOrder_CheckoutDiscount(t *testing.T) {
	res, err := PriceOrder([]Item{
		{ProductID: "p1", UnitPrice: dec("19.99"), Quantity: 2},
		{ProductID: "p2", UnitPrice: dec("5.25"), Quantity: 4,
			Discount: &Discount{Type: enum.DiscountTypeFixed, Value: dec("1")}},
	}, &Discount{Type: enum.DiscountTypePercentage, Value: dec("10"), Reason: "loyalty"}, dec("0.0825"))
	require.NoError(t, err)

	// 39.98 + 21.00 = 60.98; item discounts 1.00 → 59.98
	// checkout 10% = 6.00 → 53.98; tax 8.25% = 4.45 → 58.43
	assertDec(t, "60.98", res.Subtotal, "subtotal")
	assertDec(t, "1", res.ItemDiscountTotal, "itemDiscountTotal")
	assertDec(t, "59.98", res.SubtotalAfterItemDiscounts, "subtotalAfterItemDiscounts")
	assertDec(t, "6", res.CheckoutDiscountAmount, "checkoutDiscountAmount")
	assertDec(t, "53.98", res.SubtotalAfterDiscount, "subtotalAfterDiscount")
	assertDec(t, "4.45", res.TaxAmount, "tax")
	assertDec(t, "58.43", res.Total, "total")
	require.NotNil(t, res.CheckoutDiscount)
	assert.Equal(t, "loyalty", res.CheckoutDiscount.Reason)
}

func TestPriceOrder_FullFixedCheckoutDiscountYieldsZero(t *testing.T) {
	res, err := PriceOrder([]Item{
		{ProductID: "p1", UnitPrice: dec("12.50"), Quantity: 2},
	}, &Discount{Type: enum.DiscountTypeFixed, Value: dec("25")}, dec("0.2"))
	require.NoError(t, err)

	assertDec(t, "0", res.SubtotalAfterDiscount, "subtotalAfterDiscount")
	assertDec(t, "0", res.TaxAmount, "tax")
	assertDec(t, "0", res.Total, "total")
}

func TestPriceOrder_EmptyCart(t *testing.T) {
	res, err := PriceOrder(nil, nil, dec("0.16"))
	require.NoError(t, err)
	assertDec(t, "0", res.Subtotal, "subtotal")
	assertDec(t, "0", res.Total, "total")
	assert.Empty(t, res.Lines)
}

func TestPriceOrder_LineErrorsNameTheLine(t *testing.T) {
	tests := []struct {
		name    string
		items   []Item
		wantErr error
		wantMsg string
	}{
		{
			name: "zero quantity",
			items: []Item{
				{UnitPrice: dec("1"), Quantity: 1},
				{UnitPrice: dec("1"), Quantity: 0},
			},
			wantErr: ErrInvalidQuantity,
			wantMsg: "items[1]",
		},
		{
			name:    "negative price",
			items:   []Item{{UnitPrice: dec("-1"), Quantity: 1}},
			wantErr: ErrNegativeUnitPrice,
			wantMsg: "items[0]",
		},
		{
			name: "line fixed discount exceeds line subtotal",
			items: []Item{{UnitPrice: dec("3"), Quantity: 2,
				Discount: &Discount{Type: enum.DiscountTypeFixed, Value: dec("6.01")}}},
			wantErr: ErrFixedExceedsSubtotal,
			wantMsg: "items[0]",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PriceOrder(tt.items, nil, decimal.Zero)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestPriceOrder_InvalidTaxRate(t *testing.T) {
	_, err := PriceOrder(nil, nil, dec("1.5"))
	assert.ErrorIs(t, err, ErrInvalidTaxRate)

	_, err = PriceOrder(nil, nil, dec("-0.01"))
	assert.ErrorIs(t, err, ErrInvalidTaxRate)
}

func TestPriceOrder_DoesNotMutateInputs(t *testing.T) {
	disc := &Discount{Type: enum.DiscountTypePercentage, Value: dec("10")}
	items := []Item{{ProductID: "p1", UnitPrice: dec("9.99"), Quantity: 3, Discount: disc}}
	checkout := &Discount{Type: enum.DiscountTypeFixed, Value: dec("2")}

	first, err := PriceOrder(items, checkout, dec("0.07"))
	require.NoError(t, err)
	second, err := PriceOrder(items, checkout, dec("0.07"))
	require.NoError(t, err)

	assert.True(t, first.Total.Equal(second.Total))
	assert.Equal(t, "10", disc.Value.String())
	assert.Equal(t, int32(3), items[0].Quantity)
	assert.NotSame(t, disc, first.Lines[0].Discount)
	assert.NotSame(t, checkout, first.CheckoutDiscount)
}

// Invariants over a grid of non-negative inputs.
func TestPriceOrder_TotalInvariants(t *testing.T) {
	prices := []string{"0", "0.01", "0.99", "3.333", "10", "129.95"}
	rates := []string{"0", "0.05", "0.0825", "0.16", "1"}
	pcts := []string{"0", "7.5", "50", "100"}

	for _, p := range prices {
		for q := int32(1); q <= 7; q += 3 {
			for _, r := range rates {
				for _, pct := range pcts {
					items := []Item{
						{UnitPrice: dec(p), Quantity: q, Discount: &Discount{Type: enum.DiscountTypePercentage, Value: dec(pct)}},
						{UnitPrice: dec("2.50"), Quantity: 1},
					}
					res, err := PriceOrder(items, &Discount{Type: enum.DiscountTypePercentage, Value: dec(pct)}, dec(r))
					require.NoError(t, err)

					assert.False(t, res.Total.IsNegative())
					assert.False(t, res.SubtotalAfterDiscount.IsNegative())
					assert.True(t, res.Total.Equal(res.SubtotalAfterDiscount.Add(res.TaxAmount).Round(2)))
					want := res.Subtotal.Sub(res.ItemDiscountTotal).Sub(res.CheckoutDiscountAmount).Round(2)
					if want.IsNegative() {
						want = decimal.Zero
					}
					assert.True(t, res.SubtotalAfterDiscount.Equal(want))
					for _, l := range res.Lines {
						assert.True(t, l.DiscountAmount.LessThanOrEqual(l.LineSubtotal))
					}
				}
			}
		}
	}
}

func TestApplyDiscount_ValueScale(t *testing.T) {
	_, err := ApplyDiscount(dec("50"), Discount{Type: enum.DiscountTypeFixed, Value: dec("1.2345")})
	require.NoError(t, err)

	_, err = ApplyDiscount(dec("50"), Discount{Type: enum.DiscountTypeFixed, Value: dec("1.23456")})
	assert.ErrorIs(t, err, ErrDiscountScale)

	_, err = ApplyDiscount(dec("50"), Discount{Type: enum.DiscountTypePercentage, Value: dec("12.00001")})
	assert.ErrorIs(t, err, ErrDiscountScale)
}

func TestPriceOrder_StorageBounds(t *testing.T) {
	tests := []struct {
		name    string
		items   []Item
		rate    string
		wantErr error
	}{
		{"smallest stored price", []Item{{UnitPrice: dec("0.0001"), Quantity: 1000}}, "0", nil},
		{"price below stored scale", []Item{{UnitPrice: dec("0.00004"), Quantity: 1000}}, "0", ErrUnitPriceScale},
		{"largest stored price", []Item{{UnitPrice: dec("9999999999.9999"), Quantity: 1}}, "0", nil},
		{"price beyond column", []Item{{UnitPrice: dec("10000000000"), Quantity: 1}}, "0", ErrUnitPriceTooLarge},
		{"subtotal beyond column", []Item{{UnitPrice: dec("9999999999"), Quantity: 1000}}, "0", ErrOrderTooLarge},
		{"tax pushes total beyond column", []Item{{UnitPrice: dec("9999999999"), Quantity: 60}}, "1", ErrOrderTooLarge},
		{"rate at stored scale", []Item{{UnitPrice: dec("10"), Quantity: 1}}, "0.123456", nil},
		{"rate below stored scale", []Item{{UnitPrice: dec("10"), Quantity: 1}}, "0.1234567", ErrTaxRateScale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := PriceOrder(tt.items, nil, dec(tt.rate))
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, apperror.ErrValidation)
		})
	}
}
