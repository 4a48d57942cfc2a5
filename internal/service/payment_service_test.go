package service

import (
	"testing"

	"backoffice/internal/apperror"
	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) recordPayment(t *testing.T, clientID uuid.UUID, amt string) PaymentResponse {
	t.Helper()
	p, err := e.payments.RecordPayment(e.ctx, RecordPaymentRequest{
		ClientID: clientID.String(), Amount: amt, PaymentType: "TRANSFER", Reference: "TX-1",
	})
	require.NoError(t, err)
	return p
}

func TestRecordPaymentIssuesReceipt(t *testing.T) {
	e := newTestEnv(t)
	client := uuid.New()

	p := e.recordPayment(t, client, "500")
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, "500.00", p.AmountUnallocated)
	assert.Equal(t, "DOP", p.Currency)
	assert.Equal(t, "2025-01-01", p.PaymentDate)
	require.NotNil(t, p.Receipt)
	assert.Equal(t, "REC-000001", p.Receipt.ReceiptNumber)
	assert.Equal(t, model.ReceiptIssued, p.Receipt.Status)

	for _, req := range []RecordPaymentRequest{
		{ClientID: client.String(), Amount: "0", PaymentType: "CASH"},
		{ClientID: client.String(), Amount: "10", PaymentType: "BARTER"},
		{ClientID: client.String(), Amount: "10.005", PaymentType: "CASH"},
	} {
		_, err := e.payments.RecordPayment(e.ctx, req)
		assert.ErrorIs(t, err, apperror.ErrValidation)
	}
}

func TestOverAllocationIsRejected(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "")
	client := uuid.New()
	first := e.issuedInvoice(t, client, svc.ID, "300")
	second := e.issuedInvoice(t, client, svc.ID, "300")
	p := e.recordPayment(t, client, "500")

	_, err := e.payments.Allocate(e.ctx, p.ID, AllocatePaymentRequest{Allocations: []AllocationItem{
		{InvoiceID: first.ID, Amount: "300"},
		{InvoiceID: second.ID, Amount: "300"},
	}})
	require.ErrorIs(t, err, apperror.ErrOverAllocation)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "600.00", appErr.Details["requested"])
	assert.Equal(t, "500.00", appErr.Details["available"])

	unchanged, err := e.invoices.GetInvoice(e.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", unchanged.Balance)

	allocated, err := e.payments.Allocate(e.ctx, p.ID, AllocatePaymentRequest{Allocations: []AllocationItem{
		{InvoiceID: first.ID, Amount: "300"},
		{InvoiceID: second.ID, Amount: "200"},
	}})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentAllocated, allocated.Status)
	assert.Equal(t, "0.00", allocated.AmountUnallocated)
	assert.Len(t, allocated.Allocations, 2)

	paid, err := e.invoices.GetInvoice(e.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePaid, paid.Status)
	assert.Equal(t, "0.00", paid.Balance)

	partial, err := e.invoices.GetInvoice(e.ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoicePartial, partial.Status)
	assert.Equal(t, "100.00", partial.Balance)
}

func TestAllocationIsAllOrNothing(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "")
	client := uuid.New()
	first := e.issuedInvoice(t, client, svc.ID, "300")
	second := e.issuedInvoice(t, client, svc.ID, "100")
	p := e.recordPayment(t, client, "1000")

	_, err := e.payments.Allocate(e.ctx, p.ID, AllocatePaymentRequest{Allocations: []AllocationItem{
		{InvoiceID: first.ID, Amount: "200"},
		{InvoiceID: second.ID, Amount: "150"},
	}})
	require.ErrorIs(t, err, apperror.ErrInvalidAllocation)

	after, err := e.payments.GetPayment(e.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, after.Status)
	assert.Empty(t, after.Allocations)

	inv, err := e.invoices.GetInvoice(e.ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "300.00", inv.Balance)
	assert.Equal(t, model.InvoiceIssued, inv.Status)
}

func TestAllocationRejections(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "")
	client := uuid.New()
	issued := e.issuedInvoice(t, client, svc.ID, "300")
	foreign := e.issuedInvoice(t, uuid.New(), svc.ID, "300")
	draft, err := e.invoices.CreateInvoice(e.ctx, CreateInvoiceRequest{ClientID: client.String()})
	require.NoError(t, err)
	p := e.recordPayment(t, client, "1000")

	cases := []struct {
		name  string
		items []AllocationItem
		want  error
	}{
		{"other client", []AllocationItem{{InvoiceID: foreign.ID, Amount: "10"}}, apperror.ErrInvalidAllocation},
		{"draft invoice", []AllocationItem{{InvoiceID: draft.ID, Amount: "10"}}, apperror.ErrInvalidAllocation},
		{"zero amount", []AllocationItem{{InvoiceID: issued.ID, Amount: "0"}}, apperror.ErrInvalidAllocation},
		{"negative amount", []AllocationItem{{InvoiceID: issued.ID, Amount: "-5"}}, apperror.ErrInvalidAllocation},
		{"over balance", []AllocationItem{{InvoiceID: issued.ID, Amount: "300.01"}}, apperror.ErrInvalidAllocation},
		{"duplicate invoice", []AllocationItem{
			{InvoiceID: issued.ID, Amount: "10"},
			{InvoiceID: issued.ID, Amount: "10"},
		}, apperror.ErrValidation},
		{"unknown invoice", []AllocationItem{{InvoiceID: uuid.NewString(), Amount: "10"}}, apperror.ErrNotFound},
		{"empty", nil, apperror.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.payments.Allocate(e.ctx, p.ID, AllocatePaymentRequest{Allocations: tc.items})
			assert.ErrorIs(t, err, tc.want)
		})
	}

	after, err := e.payments.GetPayment(e.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "0.00", after.AmountAllocated)
}

func TestAllocationConservation(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "")
	client := uuid.New()
	invoices := []InvoiceResponse{
		e.issuedInvoice(t, client, svc.ID, "120"),
		e.issuedInvoice(t, client, svc.ID, "80.50"),
	}
	payments := []PaymentResponse{
		e.recordPayment(t, client, "100"),
		e.recordPayment(t, client, "200"),
	}

	steps := []struct {
		payment int
		items   []AllocationItem
	}{
		{0, []AllocationItem{{InvoiceID: invoices[0].ID, Amount: "60"}}},
		{0, []AllocationItem{{InvoiceID: invoices[0].ID, Amount: "20"}, {InvoiceID: invoices[1].ID, Amount: "20"}}},
		{1, []AllocationItem{{InvoiceID: invoices[0].ID, Amount: "40"}, {InvoiceID: invoices[1].ID, Amount: "60.50"}}},
	}
	for _, s := range steps {
		_, err := e.payments.Allocate(e.ctx, payments[s.payment].ID, AllocatePaymentRequest{Allocations: s.items})
		require.NoError(t, err)
	}

	for _, p := range payments {
		got, err := e.payments.GetPayment(e.ctx, p.ID)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, a := range got.Allocations {
			sum = sum.Add(decimal.RequireFromString(a.Amount))
		}
		assert.Equal(t, got.AmountAllocated, sum.StringFixed(2))
	}

	for _, inv := range invoices {
		got, err := e.invoices.GetInvoice(e.ctx, inv.ID)
		require.NoError(t, err)
		allocations, err := e.invoices.ListAllocations(e.ctx, inv.ID)
		require.NoError(t, err)
		sum := decimal.Zero
		for _, a := range allocations {
			sum = sum.Add(decimal.RequireFromString(a.Amount))
		}
		assert.Equal(t, got.AmountPaid, sum.StringFixed(2))
		assert.False(t, decimal.RequireFromString(got.AmountPaid).GreaterThan(decimal.RequireFromString(got.Total)))
	}

	first, err := e.invoices.GetInvoice(e.ctx, invoices[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "120.00", first.Total)
	assert.Equal(t, model.InvoicePaid, first.Status)

	p0, err := e.payments.GetPayment(e.ctx, payments[0].ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentAllocated, p0.Status)
	p1, err := e.payments.GetPayment(e.ctx, payments[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPartial, p1.Status)
	assert.Equal(t, "99.50", p1.AmountUnallocated)
}

func TestVoidReceipt(t *testing.T) {
	e := newTestEnv(t)
	p := e.recordPayment(t, uuid.New(), "50")
	require.NotNil(t, p.Receipt)

	_, err := e.payments.VoidReceipt(e.ctx, p.Receipt.ID, "")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	voided, err := e.payments.VoidReceipt(e.ctx, p.Receipt.ID, "printed twice")
	require.NoError(t, err)
	assert.Equal(t, model.ReceiptVoid, voided.Status)
	assert.Equal(t, "printed twice", voided.VoidReason)

	_, err = e.payments.VoidReceipt(e.ctx, p.Receipt.ID, "again")
	assert.ErrorIs(t, err, apperror.ErrConflict)

	again, err := e.payments.GetPayment(e.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentPending, again.Status)
}
