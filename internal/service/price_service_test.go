package service

import (
	"context"
	"testing"
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetPriceVersioning(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", true, "")

	for i, amt := range []string{"100", "120.50", "150"} {
		e.clock.Set(time.Date(2025, 1, 1, i, 0, 0, 0, time.UTC))
		p, err := e.prices.SetGlobalPrice(e.ctx, svc.ID, SetPriceRequest{Amount: amt})
		require.NoError(t, err)
		assert.Equal(t, i+1, p.Version)
	}

	history, err := e.prices.PriceHistory(e.ctx, svc.ID, "")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, 3, history[0].Version)
	assert.Equal(t, "150.00", history[0].Amount)
	assert.Nil(t, history[0].EffectiveTo)
	require.NotNil(t, history[1].EffectiveTo)
	assert.Equal(t, history[0].EffectiveFrom, *history[1].EffectiveTo)

	var open int64
	require.NoError(t, e.db.Model(&model.Price{}).
		Where("service_id = ? AND effective_to IS NULL", svc.ID).Count(&open).Error)
	assert.EqualValues(t, 1, open)

	resolved, err := e.prices.ResolvePrice(e.ctx, svc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "150.00", resolved.Price)
	assert.Equal(t, model.PriceSourceGlobal, resolved.Source)
}

func TestSetPriceVersionKeepsIncreasingAfterClose(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "SUPPORT", true, "80")

	require.NoError(t, e.prices.ClosePrice(e.ctx, svc.ID, ""))
	_, err := e.prices.ResolvePrice(e.ctx, svc.ID, "")
	assert.ErrorIs(t, err, apperror.ErrNoPriceConfigured)

	p, err := e.prices.SetGlobalPrice(e.ctx, svc.ID, SetPriceRequest{Amount: "90"})
	require.NoError(t, err)
	assert.Equal(t, 2, p.Version)
}

func TestSetPriceRejectsInvalidAmounts(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", true, "")

	for _, amt := range []string{"0", "-5", "10.001", "abc"} {
		_, err := e.prices.SetGlobalPrice(e.ctx, svc.ID, SetPriceRequest{Amount: amt})
		assert.ErrorIs(t, err, apperror.ErrInvalidPrice, amt)
	}

	history, err := e.prices.PriceHistory(e.ctx, svc.ID, "")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestSetPriceRejectsEffectiveFromBeforeCurrent(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", true, "")

	_, err := e.prices.SetGlobalPrice(e.ctx, svc.ID, SetPriceRequest{Amount: "100", EffectiveFrom: "2025-03-01"})
	require.NoError(t, err)
	_, err = e.prices.SetGlobalPrice(e.ctx, svc.ID, SetPriceRequest{Amount: "110", EffectiveFrom: "2025-02-01"})
	assert.ErrorIs(t, err, apperror.ErrValidation)
}

func TestResolvePricePrecedence(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", true, "")
	client := uuid.New()
	other := uuid.New()

	_, err := e.prices.ResolvePrice(e.ctx, svc.ID, client.String())
	assert.ErrorIs(t, err, apperror.ErrNoPriceConfigured)

	_, err = e.prices.SetGlobalPrice(e.ctx, svc.ID, SetPriceRequest{Amount: "100"})
	require.NoError(t, err)
	resolved, err := e.prices.ResolvePrice(e.ctx, svc.ID, client.String())
	require.NoError(t, err)
	assert.Equal(t, model.PriceSourceGlobal, resolved.Source)
	assert.Equal(t, "100.00", resolved.Price)

	_, err = e.prices.SetClientPrice(e.ctx, svc.ID, client.String(), SetPriceRequest{Amount: "80"})
	require.NoError(t, err)
	resolved, err = e.prices.ResolvePrice(e.ctx, svc.ID, client.String())
	require.NoError(t, err)
	assert.Equal(t, model.PriceSourceClient, resolved.Source)
	assert.Equal(t, "80.00", resolved.Price)

	resolved, err = e.prices.ResolvePrice(e.ctx, svc.ID, other.String())
	require.NoError(t, err)
	assert.Equal(t, model.PriceSourceGlobal, resolved.Source)

	require.NoError(t, e.prices.ClosePrice(e.ctx, svc.ID, client.String()))
	resolved, err = e.prices.ResolvePrice(e.ctx, svc.ID, client.String())
	require.NoError(t, err)
	assert.Equal(t, model.PriceSourceGlobal, resolved.Source)
}

func TestFutureDatedPriceKeepsCurrentInForce(t *testing.T) {
	e := newTestEnv(t)
	svc := e.createService(t, "HOSTING", true, "100")

	_, err := e.prices.SetGlobalPrice(e.ctx, svc.ID, SetPriceRequest{Amount: "200", EffectiveFrom: "2025-02-01"})
	require.NoError(t, err)

	resolved, err := e.prices.ResolvePrice(e.ctx, svc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "100.00", resolved.Price)

	history, err := e.prices.PriceHistory(e.ctx, svc.ID, "")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "200.00", history[0].Amount)
	assert.Nil(t, history[0].EffectiveTo)
}

// stickyCache keeps entries until invalidated, whatever their lifetime.
type stickyCache struct {
	entries map[string]model.ResolvedPrice
}

func (c *stickyCache) Get(_ context.Context, serviceID uuid.UUID, scopeKey string) (*model.ResolvedPrice, bool) {
	p, ok := c.entries[serviceID.String()+scopeKey]
	return &p, ok
}

func (c *stickyCache) Set(_ context.Context, serviceID uuid.UUID, scopeKey string, price model.ResolvedPrice) {
	c.entries[serviceID.String()+scopeKey] = price
}

func (c *stickyCache) InvalidateService(context.Context, uuid.UUID) {
	c.entries = make(map[string]model.ResolvedPrice)
}

func TestCachedPriceYieldsToFutureVersion(t *testing.T) {
	e := newTestEnv(t)
	sticky := &stickyCache{entries: make(map[string]model.ResolvedPrice)}
	e.prices.(*priceService).cache = sticky
	svc := e.createService(t, "HOSTING", true, "100")
	client := uuid.New()

	_, err := e.prices.SetGlobalPrice(e.ctx, svc.ID, SetPriceRequest{Amount: "200", EffectiveFrom: "2025-02-01"})
	require.NoError(t, err)
	_, err = e.prices.SetClientPrice(e.ctx, svc.ID, client.String(), SetPriceRequest{Amount: "90"})
	require.NoError(t, err)
	_, err = e.prices.SetClientPrice(e.ctx, svc.ID, client.String(), SetPriceRequest{Amount: "95", EffectiveFrom: "2025-03-01"})
	require.NoError(t, err)

	resolved, err := e.prices.ResolvePrice(e.ctx, svc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "100.00", resolved.Price)
	resolved, err = e.prices.ResolvePrice(e.ctx, svc.ID, client.String())
	require.NoError(t, err)
	assert.Equal(t, "90.00", resolved.Price)
	require.Len(t, sticky.entries, 2)

	e.clock.Set(time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC))
	resolved, err = e.prices.ResolvePrice(e.ctx, svc.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "200.00", resolved.Price)
	resolved, err = e.prices.ResolvePrice(e.ctx, svc.ID, client.String())
	require.NoError(t, err)
	assert.Equal(t, "90.00", resolved.Price)

	e.clock.Set(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC))
	resolved, err = e.prices.ResolvePrice(e.ctx, svc.ID, client.String())
	require.NoError(t, err)
	assert.Equal(t, "95.00", resolved.Price)
}

func TestSetPriceEmitsEvent(t *testing.T) {
	e := newTestEnv(t)
	e.createService(t, "HOSTING", true, "100")

	assert.Equal(t, []string{model.ActionCreateService, model.ActionSetPrice}, e.recorder.Actions())
	evt := e.recorder.Events()[1]
	assert.Equal(t, "tester", evt.Actor)
	assert.Equal(t, "100.00", evt.Data["amount"])
}
