package service

import (
	"testing"

	"backoffice/internal/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateServiceDefaults(t *testing.T) {
	e := newTestEnv(t)

	svc, err := e.catalog.CreateService(e.ctx, CreateServiceRequest{
		Code: " web-1 ", Name: "Web hosting", DefaultBillingUnit: "month",
	})
	require.NoError(t, err)
	assert.Equal(t, "WEB-1", svc.Code)
	assert.Equal(t, "MONTH", svc.DefaultBillingUnit)
	assert.True(t, svc.ItbisApplicable)
	assert.True(t, svc.Active)

	_, err = e.catalog.CreateService(e.ctx, CreateServiceRequest{
		Code: "WEB-1", Name: "Other", DefaultBillingUnit: "MONTH",
	})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestUpdateServiceKeepsCode(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", true, "")

	updated, err := e.catalog.UpdateService(e.ctx, svc.ID, UpdateServiceRequest{
		Name:            strPtr("Managed hosting"),
		ItbisApplicable: boolPtr(false),
	})
	require.NoError(t, err)
	assert.Equal(t, "Managed hosting", updated.Name)
	assert.False(t, updated.ItbisApplicable)

	_, err = e.catalog.UpdateService(e.ctx, svc.ID, UpdateServiceRequest{Code: strPtr("OTHER")})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestDeactivateServiceGuards(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", true, "100")

	_, err := e.catalog.DeactivateService(e.ctx, svc.ID)
	require.ErrorIs(t, err, apperror.ErrServiceInUse)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, true, appErr.Details["has_current_global_price"])

	require.NoError(t, e.prices.ClosePrice(e.ctx, svc.ID, ""))
	deactivated, err := e.catalog.DeactivateService(e.ctx, svc.ID)
	require.NoError(t, err)
	assert.False(t, deactivated.Active)

	_, err = e.contracts.CreateContract(e.ctx, monthlyContract(uuid.New(), "2025-01-01",
		ContractLineRequest{ServiceID: svc.ID, Quantity: "1", ManualUnitPrice: strPtr("10")}))
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestDeactivateServiceUsedByActiveContract(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", true, "")

	e.activeContract(t, monthlyContract(uuid.New(), "2025-01-01",
		ContractLineRequest{ServiceID: svc.ID, Quantity: "1", ManualUnitPrice: strPtr("10")}))

	_, err := e.catalog.DeactivateService(e.ctx, svc.ID)
	require.ErrorIs(t, err, apperror.ErrServiceInUse)
	var appErr *apperror.Error
	require.ErrorAs(t, err, &appErr)
	assert.EqualValues(t, 1, appErr.Details["contracts"])
}

func TestListServicesFilters(t *testing.T) {
	e := newTestEnv(t)
	e.createService(t, "HOSTING", true, "")
	e.createService(t, "SUPPORT", true, "")

	all, total, err := e.catalog.ListServices(e.ctx, ListServicesQuery{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, all, 2)

	found, total, err := e.catalog.ListServices(e.ctx, ListServicesQuery{Search: "supp"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "SUPPORT", found[0].Code)
}
