package service

import (
	"testing"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustDate(s string) time.Time {
	t, err := time.Parse(model.DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func (e *testEnv) contractInvoices(t *testing.T, contractID string) []InvoiceResponse {
	t.Helper()
	list, _, err := e.invoices.ListInvoices(e.ctx, ListInvoicesQuery{ContractID: contractID, Limit: 100})
	require.NoError(t, err)
	full := make([]InvoiceResponse, 0, len(list))
	for _, inv := range list {
		got, err := e.invoices.GetInvoice(e.ctx, inv.ID)
		require.NoError(t, err)
		full = append(full, got)
	}
	return full
}

func TestBillingRunInvoicesLeadingStub(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "1000")
	req := monthlyContract(uuid.New(), "2025-04-15", ContractLineRequest{ServiceID: svc.ID, Quantity: "1"})
	req.BillingDayOfMonth = intPtr(1)
	c := e.activeContract(t, req)
	require.NotNil(t, c.NextInvoiceDate)
	assert.Equal(t, "2025-04-15", *c.NextInvoiceDate)

	res, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-04-15"))
	require.NoError(t, err)
	assert.Empty(t, res.Failed)
	require.Len(t, res.Generated, 1)
	assert.Equal(t, "533.33", res.Generated[0].Total)

	stub, err := e.invoices.GetInvoice(e.ctx, res.Generated[0].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, model.InvoiceIssued, stub.Status)
	assert.NotNil(t, stub.NCF)
	assert.Equal(t, "2025-04-15", stub.IssueDate)
	assert.Equal(t, "2025-05-15", stub.DueDate)
	require.NotNil(t, stub.PeriodStart)
	require.NotNil(t, stub.PeriodEnd)
	assert.Equal(t, "2025-04-15", *stub.PeriodStart)
	assert.Equal(t, "2025-04-30", *stub.PeriodEnd)
	require.Len(t, stub.Lines, 1)
	assert.Equal(t, "HOSTING service (prorated 16/30 days)", stub.Lines[0].Description)
	assert.Equal(t, "533.33", stub.Lines[0].UnitPrice)

	again, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-04-15"))
	require.NoError(t, err)
	assert.Empty(t, again.Generated)
	assert.Len(t, e.contractInvoices(t, c.ID), 1)

	may, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-05-01"))
	require.NoError(t, err)
	require.Len(t, may.Generated, 1)
	assert.Equal(t, "1000.00", may.Generated[0].Total)
	assert.Equal(t, "2025-05-01", may.Generated[0].InvoiceDate)

	after, err := e.contracts.GetContract(e.ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, after.NextInvoiceDate)
	assert.Equal(t, "2025-06-01", *after.NextInvoiceDate)
	require.NotNil(t, after.LastInvoiceDate)
	assert.Equal(t, "2025-05-01", *after.LastInvoiceDate)
}

func TestBillingRunArrears(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "1000")
	req := monthlyContract(uuid.New(), "2025-01-01", ContractLineRequest{ServiceID: svc.ID, Quantity: "1"})
	req.InvoiceTiming = "ARREARS"
	c := e.activeContract(t, req)

	early, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-01-31"))
	require.NoError(t, err)
	assert.Zero(t, early.Contracts)

	res, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-02-01"))
	require.NoError(t, err)
	require.Len(t, res.Generated, 1)

	invs := e.contractInvoices(t, c.ID)
	require.Len(t, invs, 1)
	assert.Equal(t, "2025-02-01", invs[0].IssueDate)
	assert.Equal(t, "2025-01-01", *invs[0].PeriodStart)
	assert.Equal(t, "2025-01-31", *invs[0].PeriodEnd)
	assert.Equal(t, "1000.00", invs[0].Total)
	assert.Equal(t, "1000.00", invs[0].Lines[0].UnitPrice)
}

func TestBillingRunCatchesUpMissedDates(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "1000")
	c := e.activeContract(t, monthlyContract(uuid.New(), "2025-01-01", ContractLineRequest{ServiceID: svc.ID, Quantity: "1"}))

	res, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-03-15"))
	require.NoError(t, err)
	require.Len(t, res.Generated, 3)
	dates := []string{res.Generated[0].InvoiceDate, res.Generated[1].InvoiceDate, res.Generated[2].InvoiceDate}
	assert.Equal(t, []string{"2025-01-01", "2025-02-01", "2025-03-01"}, dates)

	after, err := e.contracts.GetContract(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "2025-04-01", *after.NextInvoiceDate)
	assert.Equal(t, "2025-03-01", *after.LastInvoiceDate)
}

func TestBillingRunStopsAtEndDate(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "1000")
	req := monthlyContract(uuid.New(), "2025-01-01", ContractLineRequest{ServiceID: svc.ID, Quantity: "1"})
	req.TermType = "FIXED_TERM"
	req.EndDate = "2025-02-15"
	c := e.activeContract(t, req)

	res, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-06-01"))
	require.NoError(t, err)
	require.Len(t, res.Generated, 2)
	assert.Equal(t, "1000.00", res.Generated[0].Total)
	assert.Equal(t, "535.71", res.Generated[1].Total)

	invs := e.contractInvoices(t, c.ID)
	for _, inv := range invs {
		if inv.ID == res.Generated[1].InvoiceID {
			assert.Equal(t, "2025-02-15", *inv.PeriodEnd)
			assert.Equal(t, "HOSTING service (prorated 15/28 days)", inv.Lines[0].Description)
		}
	}

	after, err := e.contracts.GetContract(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, after.NextInvoiceDate)
	assert.Equal(t, model.ContractActive, after.Status)
}

func TestBillingRunAppliesItbis(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", true, "100")
	c := e.activeContract(t, monthlyContract(uuid.New(), "2025-01-01", ContractLineRequest{ServiceID: svc.ID, Quantity: "2"}))

	_, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-01-01"))
	require.NoError(t, err)

	invs := e.contractInvoices(t, c.ID)
	require.Len(t, invs, 1)
	assert.Equal(t, "200.00", invs[0].Subtotal)
	assert.Equal(t, "36.00", invs[0].ItbisAmount)
	assert.Equal(t, "236.00", invs[0].Total)
}

func TestBillingRunSkipsSuspendedContracts(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "1000")
	c := e.activeContract(t, monthlyContract(uuid.New(), "2025-01-01", ContractLineRequest{ServiceID: svc.ID, Quantity: "1"}))
	_, err := e.contracts.Suspend(e.ctx, c.ID, "unpaid")
	require.NoError(t, err)

	res, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-02-01"))
	require.NoError(t, err)
	assert.Empty(t, res.Generated)
	assert.Empty(t, e.contractInvoices(t, c.ID))
}

func arrearsFixedTerm(serviceID, start, end string) ContractRequest {
	req := monthlyContract(uuid.New(), start, ContractLineRequest{ServiceID: serviceID, Quantity: "1"})
	req.InvoiceTiming = "ARREARS"
	req.TermType = "FIXED_TERM"
	req.EndDate = end
	return req
}

func TestBillingRunArrearsBillsLastFullPeriod(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "1000")
	c := e.activeContract(t, arrearsFixedTerm(svc.ID, "2025-01-01", "2025-03-31"))

	res, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-06-01"))
	require.NoError(t, err)
	require.Len(t, res.Generated, 3)
	for _, g := range res.Generated {
		assert.Equal(t, "1000.00", g.Total)
	}
	assert.Equal(t, "2025-04-01", res.Generated[2].InvoiceDate)

	last, err := e.invoices.GetInvoice(e.ctx, res.Generated[2].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", *last.PeriodStart)
	assert.Equal(t, "2025-03-31", *last.PeriodEnd)

	after, err := e.contracts.GetContract(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, after.NextInvoiceDate)
	assert.Equal(t, "2025-04-01", *after.LastInvoiceDate)
}

func TestBillingRunArrearsProratesLastPartialPeriod(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "1000")
	c := e.activeContract(t, arrearsFixedTerm(svc.ID, "2025-01-01", "2025-03-15"))

	res, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-06-01"))
	require.NoError(t, err)
	require.Len(t, res.Generated, 3)
	assert.Equal(t, "1000.00", res.Generated[1].Total)
	assert.Equal(t, "483.87", res.Generated[2].Total)
	assert.Equal(t, "2025-03-16", res.Generated[2].InvoiceDate)

	tail, err := e.invoices.GetInvoice(e.ctx, res.Generated[2].InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, "2025-03-01", *tail.PeriodStart)
	assert.Equal(t, "2025-03-15", *tail.PeriodEnd)
	assert.Equal(t, "HOSTING service (prorated 15/31 days)", tail.Lines[0].Description)

	after, err := e.contracts.GetContract(e.ctx, c.ID)
	require.NoError(t, err)
	assert.Nil(t, after.NextInvoiceDate)
}

func TestExpiryWaitsForFinalArrearsInvoice(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", false, "1000")
	c := e.activeContract(t, arrearsFixedTerm(svc.ID, "2025-01-01", "2025-03-31"))

	_, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-03-31"))
	require.NoError(t, err)

	res, err := e.contracts.ExpireContracts(e.ctx, mustDate("2025-04-01"))
	require.NoError(t, err)
	assert.Empty(t, res.Expired)

	run, err := e.billingRun.GenerateDueInvoices(e.ctx, mustDate("2025-04-01"))
	require.NoError(t, err)
	require.Len(t, run.Generated, 1)

	res, err = e.contracts.ExpireContracts(e.ctx, mustDate("2025-04-02"))
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID}, res.Expired)
	assert.Len(t, e.contractInvoices(t, c.ID), 3)
}
