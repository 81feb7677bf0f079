// Package money holds the monetary helpers shared by pricing, services and
// handlers. All amounts are shopspring decimals rounded to cents.
package money

import (
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Column limits. Unit prices and discount values are NUMERIC(14,4),
// computed amounts NUMERIC(14,2) and tax rates NUMERIC(9,6).
const (
	PriceScale  int32 = 4
	AmountScale int32 = 2
	RateScale   int32 = 6
)

var (
	// MaxPrice is the exclusive upper bound of a stored price or discount value.
	MaxPrice = decimal.New(1, 10)
	// MaxAmount is the exclusive upper bound of a stored computed amount.
	MaxAmount = decimal.New(1, 12)
)

// HasScale reports whether d has at most scale significant decimal places.
// Trailing zeros do not count.
func HasScale(d decimal.Decimal, scale int32) bool {
	return d.Equal(d.Truncate(scale))
}

// Round2 rounds d to two decimal places, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Percent returns round2(base * pct / 100).
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return Round2(base.Mul(pct).Div(hundred))
}

// Format renders d with exactly two decimals ("33.00").
func Format(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// FromNumeric converts a Postgres numeric into a decimal. NULL and
// unreadable values become zero.
func FromNumeric(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	s, ok := val.(string)
	if !ok {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ToNumeric converts a decimal into a Postgres numeric without losing scale.
func ToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.String())
	return n
}
