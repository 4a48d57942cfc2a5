package billing

import (
	"testing"

	"backoffice/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestApplyInvoiceTotals(t *testing.T) {
	inv := &model.Invoice{
		AmountPaid: dec("100"),
		Lines: []model.InvoiceLine{
			{Quantity: dec("3"), UnitPrice: dec("33.33"), ItbisApplicable: true},
			{Quantity: dec("1.5"), UnitPrice: dec("10.01"), ItbisApplicable: false},
			{Quantity: dec("1"), UnitPrice: dec("0.05"), ItbisApplicable: true},
		},
	}
	ApplyInvoiceTotals(inv)

	l0 := inv.Lines[0]
	assert.Equal(t, "99.99", l0.LineSubtotal.StringFixed(2))
	assert.Equal(t, "18.00", l0.ItbisAmount.StringFixed(2))
	assert.Equal(t, "117.99", l0.LineTotal.StringFixed(2))
	assert.Equal(t, "15.02", inv.Lines[1].LineSubtotal.StringFixed(2))
	assert.True(t, inv.Lines[1].ItbisAmount.IsZero())
	assert.Equal(t, "0.01", inv.Lines[2].ItbisAmount.StringFixed(2))
	assert.Equal(t, 3, inv.Lines[2].Position)

	sum := decimal.Zero
	for _, l := range inv.Lines {
		assert.True(t, l.LineTotal.Equal(l.LineSubtotal.Add(l.ItbisAmount)))
		sum = sum.Add(l.LineTotal)
	}
	assert.True(t, inv.Total.Equal(sum))
	assert.Equal(t, "115.06", inv.Subtotal.StringFixed(2))
	assert.Equal(t, "18.01", inv.ItbisAmount.StringFixed(2))
	assert.Equal(t, "133.07", inv.Total.StringFixed(2))
	assert.Equal(t, "33.07", inv.Balance.StringFixed(2))
}

func TestPriceContractLineUsesManualOverride(t *testing.T) {
	l := &model.ContractLine{
		Quantity:          dec("2"),
		ResolvedUnitPrice: dec("100"),
		ManualUnitPrice:   decimal.NewNullDecimal(dec("80")),
	}
	PriceContractLine(l)
	assert.Equal(t, "160.00", l.LineTotal.StringFixed(2))

	l.ManualUnitPrice = decimal.NullDecimal{}
	PriceContractLine(l)
	assert.Equal(t, "200.00", l.LineTotal.StringFixed(2))
}

func TestDerivedStatuses(t *testing.T) {
	total := dec("300")
	assert.Equal(t, model.InvoiceIssued, InvoiceStatusForPaid(total, decimal.Zero))
	assert.Equal(t, model.InvoicePartial, InvoiceStatusForPaid(total, dec("0.01")))
	assert.Equal(t, model.InvoicePaid, InvoiceStatusForPaid(total, total))

	assert.Equal(t, model.PaymentPending, PaymentStatusFor(total, decimal.Zero))
	assert.Equal(t, model.PaymentPartial, PaymentStatusFor(total, dec("200")))
	assert.Equal(t, model.PaymentAllocated, PaymentStatusFor(total, total))
}
