// Package pricing computes order totals: line subtotals, per-line and
// checkout discounts, tax and the final total. Everything here is pure.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tillpoint/pos-api/internal/apperror"
	"github.com/tillpoint/pos-api/internal/money"
)

// Validation errors returned by PriceOrder.
var (
	ErrNegativeUnitPrice = apperror.Validation("unit price cannot be negative")
	ErrInvalidQuantity   = apperror.Validation("quantity must be >= 1")
	ErrInvalidTaxRate    = apperror.Validation("tax rate must be between 0 and 1")
	ErrUnitPriceScale    = apperror.Validation("unit price supports at most 4 decimal places")
	ErrUnitPriceTooLarge = apperror.Validation("unit price must be less than 10000000000")
	ErrTaxRateScale      = apperror.Validation("tax rate supports at most 6 decimal places")
	ErrOrderTooLarge     = apperror.Validation("order amount must be less than 1000000000000")
)

// Item is a cart line to be priced.
type Item struct {
	ProductID string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int32
	Discount  *Discount
}

// Line is a priced cart line.
type Line struct {
	Item
	LineSubtotal   decimal.Decimal
	DiscountAmount decimal.Decimal
}

// Result is the auditable breakdown of a priced order.
type Result struct {
	Lines                      []Line
	Subtotal                   decimal.Decimal
	ItemDiscountTotal          decimal.Decimal
	SubtotalAfterItemDiscounts decimal.Decimal
	CheckoutDiscount           *Discount
	CheckoutDiscountAmount     decimal.Decimal
	SubtotalAfterDiscount      decimal.Decimal
	TaxRate                    decimal.Decimal
	TaxAmount                  decimal.Decimal
	Total                      decimal.Decimal
}

// PriceOrder prices items with an optional checkout discount and a tax rate
// expressed as a fraction in [0,1]. Errors name the offending line
// ("items[i]: ...") or the checkout discount. An empty cart prices to zero.
// Inputs and results that would not fit the order columns are rejected.
func PriceOrder(items []Item, checkout *Discount, taxRate decimal.Decimal) (*Result, error) {
	if taxRate.IsNegative() || taxRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, ErrInvalidTaxRate
	}
	if !money.HasScale(taxRate, money.RateScale) {
		return nil, ErrTaxRateScale
	}

	res := &Result{
		Lines:   make([]Line, 0, len(items)),
		TaxRate: taxRate,
	}

	subtotal := decimal.Zero
	itemDiscounts := decimal.Zero
	for i, item := range items {
		if item.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrNegativeUnitPrice)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}
		if !money.HasScale(item.UnitPrice, money.PriceScale) {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrUnitPriceScale)
		}
		if item.UnitPrice.GreaterThanOrEqual(money.MaxPrice) {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrUnitPriceTooLarge)
		}

		lineSubtotal := money.Round2(item.UnitPrice.Mul(decimal.NewFromInt32(item.Quantity)))
		discountAmount := decimal.Zero
		if item.Discount != nil {
			amt, err := ApplyDiscount(lineSubtotal, *item.Discount)
			if err != nil {
				return nil, fmt.Errorf("items[%d]: %w", i, err)
			}
			discountAmount = amt
		}

		line := Line{Item: item, LineSubtotal: lineSubtotal, DiscountAmount: discountAmount}
		if item.Discount != nil {
			d := *item.Discount
			line.Discount = &d
		}
		res.Lines = append(res.Lines, line)

		subtotal = subtotal.Add(lineSubtotal)
		itemDiscounts = itemDiscounts.Add(discountAmount)
	}

	res.Subtotal = money.Round2(subtotal)
	if res.Subtotal.GreaterThanOrEqual(money.MaxAmount) {
		return nil, ErrOrderTooLarge
	}
	res.ItemDiscountTotal = money.Round2(itemDiscounts)
	res.SubtotalAfterItemDiscounts = money.Round2(res.Subtotal.Sub(res.ItemDiscountTotal))

	res.CheckoutDiscountAmount = decimal.Zero
	if checkout != nil {
		amt, err := ApplyDiscount(res.SubtotalAfterItemDiscounts, *checkout)
		if err != nil {
			return nil, fmt.Errorf("checkout discount: %w", err)
		}
		d := *checkout
		res.CheckoutDiscount = &d
		res.CheckoutDiscountAmount = amt
	}

	res.SubtotalAfterDiscount = money.Round2(res.SubtotalAfterItemDiscounts.Sub(res.CheckoutDiscountAmount))
	if res.SubtotalAfterDiscount.IsNegative() {
		res.SubtotalAfterDiscount = decimal.Zero
	}

	res.TaxAmount = money.Round2(res.SubtotalAfterDiscount.Mul(taxRate))
	res.Total = money.Round2(res.SubtotalAfterDiscount.Add(res.TaxAmount))
	if res.Total.GreaterThanOrEqual(money.MaxAmount) {
		return nil, ErrOrderTooLarge
	}
	return res, nil
}
