package scheduler

import (
	"context"
	"testing"
	"time"

	"backoffice/internal/events"
	"backoffice/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBillingRun struct {
	asOf  time.Time
	actor string
}

func (f *fakeBillingRun) GenerateDueInvoices(ctx context.Context, asOf time.Time) (service.BillingRunResult, error) {
	f.asOf = asOf
	f.actor = events.ActorFrom(ctx)
	return service.BillingRunResult{AsOf: asOf.Format("2006-01-02")}, nil
}

// fakeContracts only implements the expiry job; other methods are unused.
type fakeContracts struct {
	service.ContractService
	asOf time.Time
}

func (f *fakeContracts) ExpireContracts(_ context.Context, asOf time.Time) (service.ExpiryResult, error) {
	f.asOf = asOf
	return service.ExpiryResult{AsOf: asOf.Format("2006-01-02")}, nil
}

func TestNewRejectsInvalidSpec(t *testing.T) {
	_, err := New(Config{BillingSpec: "not a cron", ExpirySpec: "0 1 * * *"}, &fakeBillingRun{}, &fakeContracts{})
	assert.Error(t, err)
	_, err = New(Config{BillingSpec: "0 2 * * *", ExpirySpec: "61 * * * *"}, &fakeBillingRun{}, &fakeContracts{})
	assert.Error(t, err)
}

func TestJobsRunAsSystemWithCurrentDate(t *testing.T) {
	billing := &fakeBillingRun{}
	contracts := &fakeContracts{}
	s, err := New(Config{BillingSpec: "0 2 * * *", ExpirySpec: "30 0 * * *"}, billing, contracts)
	require.NoError(t, err)
	now := time.Date(2025, 3, 1, 2, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	s.runExpiry()
	s.runBilling()

	assert.Equal(t, now, contracts.asOf)
	assert.Equal(t, now, billing.asOf)
	assert.Equal(t, events.SystemActor, billing.actor)
	assert.Len(t, s.cron.Entries(), 2)
}

func TestStopWaitsForContext(t *testing.T) {
	s, err := New(Config{BillingSpec: "@daily", ExpirySpec: "@daily"}, &fakeBillingRun{}, &fakeContracts{})
	require.NoError(t, err)
	s.Start()
	require.NoError(t, s.Stop(context.Background()))
}
