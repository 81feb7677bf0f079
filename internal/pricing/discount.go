package pricing

import (
	"github.com/shopspring/decimal"
	"github.com/tillpoint/pos-api/internal/apperror"
	"github.com/tillpoint/pos-api/internal/enum"
	"github.com/tillpoint/pos-api/internal/money"
)

var maxPercentage = decimal.NewFromInt(100)

// Validation errors returned by ApplyDiscount.
var (
	ErrInvalidDiscountType  = apperror.Validation("discount type must be percentage or fixed")
	ErrNegativeDiscount     = apperror.Validation("discount value cannot be negative")
	ErrPercentageOutOfRange = apperror.Validation("Percentage discount cannot exceed 100")
	ErrFixedExceedsSubtotal = apperror.Validation("Fixed discount cannot exceed subtotal")
	ErrDiscountScale        = apperror.Validation("discount value supports at most 4 decimal places")
)

// Discount is a percentage or fixed-amount reduction.
type Discount struct {
	Type   string
	Value  decimal.Decimal
	Reason string
}

// ApplyDiscount returns the amount discount takes off subtotal (not the
// discounted total). A fixed discount larger than subtotal is rejected
// rather than clamped.
func ApplyDiscount(subtotal decimal.Decimal, discount Discount) (decimal.Decimal, error) {
	if discount.Value.IsNegative() {
		return decimal.Zero, ErrNegativeDiscount
	}
	if !money.HasScale(discount.Value, money.PriceScale) {
		return decimal.Zero, ErrDiscountScale
	}
	switch discount.Type {
	case enum.DiscountTypePercentage:
		if discount.Value.GreaterThan(maxPercentage) {
			return decimal.Zero, ErrPercentageOutOfRange
		}
		return money.Percent(subtotal, discount.Value), nil
	case enum.DiscountTypeFixed:
		if discount.Value.GreaterThan(subtotal) {
			return decimal.Zero, ErrFixedExceedsSubtotal
		}
		return money.Round2(discount.Value), nil
	}
	return decimal.Zero, ErrInvalidDiscountType
}
