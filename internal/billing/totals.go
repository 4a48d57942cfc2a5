package billing

import (
	"backoffice/internal/model"
	"backoffice/internal/money"

	"github.com/shopspring/decimal"
)

// Totals are the derived document amounts.
type Totals struct {
	Subtotal decimal.Decimal
	Itbis    decimal.Decimal
	Total    decimal.Decimal
}

// PriceInvoiceLine fills the derived amounts of a line from its quantity and unit price.
// Tax is rounded per line so the document total is an exact sum of lines.
func PriceInvoiceLine(l *model.InvoiceLine) {
	l.LineSubtotal = money.Extend(l.Quantity, l.UnitPrice)
	l.ItbisAmount = money.Itbis(l.LineSubtotal, l.ItbisApplicable)
	l.LineTotal = l.LineSubtotal.Add(l.ItbisAmount)
}

// SumInvoiceLines adds up already priced lines.
func SumInvoiceLines(lines []model.InvoiceLine) Totals {
	t := Totals{Subtotal: decimal.Zero, Itbis: decimal.Zero, Total: decimal.Zero}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.LineSubtotal)
		t.Itbis = t.Itbis.Add(l.ItbisAmount)
	}
	t.Total = t.Subtotal.Add(t.Itbis)
	return t
}

// ApplyInvoiceTotals prices every line, renumbers positions and refreshes the
// invoice totals and balance.
func ApplyInvoiceTotals(inv *model.Invoice) {
	for i := range inv.Lines {
		inv.Lines[i].Position = i + 1
		PriceInvoiceLine(&inv.Lines[i])
	}
	t := SumInvoiceLines(inv.Lines)
	inv.Subtotal = t.Subtotal
	inv.ItbisAmount = t.Itbis
	inv.Total = t.Total
	inv.Balance = t.Total.Sub(inv.AmountPaid)
}

// PriceContractLine sets lineTotal = quantity × effective price.
func PriceContractLine(l *model.ContractLine) {
	l.LineTotal = money.Extend(l.Quantity, l.EffectiveUnitPrice())
}

// InvoiceStatusForPaid derives the settlement status of an issued invoice.
func InvoiceStatusForPaid(total, paid decimal.Decimal) string {
	switch {
	case paid.Sign() <= 0:
		return model.InvoiceIssued
	case paid.LessThan(total):
		return model.InvoicePartial
	default:
		return model.InvoicePaid
	}
}

// PaymentStatusFor derives a payment's allocation status.
func PaymentStatusFor(amount, allocated decimal.Decimal) string {
	switch {
	case allocated.Sign() <= 0:
		return model.PaymentPending
	case allocated.LessThan(amount):
		return model.PaymentPartial
	default:
		return model.PaymentAllocated
	}
}
