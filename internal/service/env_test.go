package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"backoffice/internal/cache"
	"backoffice/internal/database"
	"backoffice/internal/events"
	"backoffice/internal/external"
	"backoffice/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Set(t time.Time) { c.now = t }

type testEnv struct {
	ctx      context.Context
	db       *gorm.DB
	clock    *testClock
	recorder *events.Recorder

	catalog    CatalogService
	prices     PriceService
	contracts  ContractService
	invoices   InvoiceService
	payments   PaymentService
	billingRun BillingRunService
	audit      AuditService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "billing.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	clock := &testClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	recorder := &events.Recorder{}

	tm := repository.NewTransactionManager(db)
	serviceRepo := repository.NewServiceRepository(db)
	priceRepo := repository.NewPriceRepository(db)
	contractRepo := repository.NewContractRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	publisher := events.Multi{events.NewAuditPublisher(auditRepo), recorder}
	ncf := external.NewSequenceNCFIssuer("B01", sequenceRepo)

	prices := NewPriceService(tm, serviceRepo, priceRepo, cache.NewMemory(time.Minute), publisher)
	prices.(*priceService).now = clock.Now
	contracts := NewContractService(tm, contractRepo, serviceRepo, sequenceRepo, prices,
		external.NewDBDocumentStore(contractRepo), publisher, "DOP")
	contracts.(*contractService).now = clock.Now
	invoices := NewInvoiceService(tm, invoiceRepo, paymentRepo, serviceRepo, sequenceRepo, prices, ncf, publisher,
		InvoiceSettings{DueDays: 30, DefaultCurrency: "DOP"})
	invoices.(*invoiceService).now = clock.Now
	payments := NewPaymentService(tm, paymentRepo, invoiceRepo, sequenceRepo, publisher, "DOP")
	payments.(*paymentService).now = clock.Now
	billingRun := NewBillingRunService(tm, contractRepo, invoiceRepo, sequenceRepo, ncf, publisher, 30)
	billingRun.(*billingRunService).now = clock.Now

	return &testEnv{
		ctx:        events.WithActor(context.Background(), "tester"),
		db:         db,
		clock:      clock,
		recorder:   recorder,
		catalog:    NewCatalogService(tm, serviceRepo, priceRepo, publisher),
		prices:     prices,
		contracts:  contracts,
		invoices:   invoices,
		payments:   payments,
		billingRun: billingRun,
		audit:      NewAuditService(auditRepo),
	}
}

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

// createService adds an active catalog service, optionally with a global price.
func (e *testEnv) createService(t *testing.T, code string, itbis bool, globalPrice string) ServiceResponse {
	t.Helper()
	svc, err := e.catalog.CreateService(e.ctx, CreateServiceRequest{
		Code:               code,
		Name:               code + " service",
		DefaultBillingUnit: "MONTH",
		ItbisApplicable:    boolPtr(itbis),
	})
	require.NoError(t, err)
	if globalPrice != "" {
		_, err := e.prices.SetGlobalPrice(e.ctx, svc.ID, SetPriceRequest{Amount: globalPrice})
		require.NoError(t, err)
	}
	return svc
}

// monthlyContract is a verbal evergreen contract billed monthly in advance.
func monthlyContract(clientID uuid.UUID, start string, lines ...ContractLineRequest) ContractRequest {
	return ContractRequest{
		ClientID:             clientID.String(),
		AgreementType:        "VERBAL",
		TermType:             "EVERGREEN",
		StartDate:            start,
		BillingType:          "RECURRING",
		BillingIntervalUnit:  "MONTH",
		BillingIntervalCount: 1,
		AutoInvoicingEnabled: true,
		InvoiceTiming:        "ADVANCE",
		ProrationPolicy:      "PRORATED",
		Lines:                lines,
	}
}

// issuedInvoice creates and issues an invoice with one untaxed line of the given amount.
func (e *testEnv) issuedInvoice(t *testing.T, clientID uuid.UUID, serviceID, amt string) InvoiceResponse {
	t.Helper()
	inv, err := e.invoices.CreateInvoice(e.ctx, CreateInvoiceRequest{
		ClientID: clientID.String(),
		Lines: []InvoiceLineRequest{{
			ServiceID:       serviceID,
			Quantity:        "1",
			UnitPrice:       strPtr(amt),
			ItbisApplicable: boolPtr(false),
		}},
	})
	require.NoError(t, err)
	inv, err = e.invoices.Issue(e.ctx, inv.ID)
	require.NoError(t, err)
	return inv
}

// activeContract creates the contract and activates it.
func (e *testEnv) activeContract(t *testing.T, req ContractRequest) ContractResponse {
	t.Helper()
	c, err := e.contracts.CreateContract(e.ctx, req)
	require.NoError(t, err)
	c, err = e.contracts.Activate(e.ctx, c.ID)
	require.NoError(t, err)
	return c
}
