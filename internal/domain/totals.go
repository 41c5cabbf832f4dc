package domain

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

type Totals struct {
	Subtotal int64
	Discount int64
	Total    int64
}

// ComputeTotals sums the stored line totals and applies the promo
// percentage, rounding the discount half away from zero.
func ComputeTotals(items []LineItem, promo *AppliedPromo) Totals {
	var subtotal int64
	for _, item := range items {
		subtotal += item.TotalPrice
	}

	var discount int64
	if promo != nil && promo.PercentOff > 0 {
		pct := min(promo.PercentOff, 100)
		discount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(int64(pct))).
			Div(hundred).
			Round(0).
			IntPart()
	}

	return Totals{
		Subtotal: subtotal,
		Discount: discount,
		Total:    subtotal - discount,
	}
}
