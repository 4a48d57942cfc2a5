// Package money holds the rounding and tax rules shared by pricing and invoicing.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ItbisRate is the Dominican VAT rate applied to taxable lines.
var ItbisRate = decimal.RequireFromString("0.18")

// Round2 rounds half away from zero to cents.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// Extend returns quantity × unit price rounded to cents.
func Extend(quantity, unitPrice decimal.Decimal) decimal.Decimal {
	return Round2(quantity.Mul(unitPrice))
}

// Itbis returns the tax on amount, or zero when the line is not taxable.
func Itbis(amount decimal.Decimal, applicable bool) decimal.Decimal {
	if !applicable {
		return decimal.Zero
	}
	return Round2(amount.Mul(ItbisRate))
}

// Parse reads a decimal string such as "1500.00".
func Parse(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Min returns the smaller of a and b.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}
