package billing

import (
	"testing"
	"time"

	"backoffice/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstInvoiceDateWithStub(t *testing.T) {
	c := monthly(day(2025, 4, 15))
	c.BillingDayOfMonth = intPtr(1)

	first, err := FirstInvoiceDate(c)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, day(2025, 4, 15), *first)

	c.InvoiceTiming = model.TimingArrears
	first, err = FirstInvoiceDate(c)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, day(2025, 5, 1), *first)
}

func TestFirstInvoiceDateWithoutStub(t *testing.T) {
	c := monthly(day(2025, 1, 1))
	c.InvoiceTiming = model.TimingArrears

	first, err := FirstInvoiceDate(c)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, day(2025, 2, 1), *first)
}

func TestOccurrenceOnStub(t *testing.T) {
	c := monthly(day(2025, 4, 15))
	c.BillingDayOfMonth = intPtr(1)

	occ, ok, err := OccurrenceOn(c, day(2025, 4, 15), true)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, occ.Stub)
	assert.True(t, occ.Partial())
	assert.Equal(t, day(2025, 4, 1), occ.Start)
	assert.Equal(t, day(2025, 4, 30), occ.End)
	assert.Equal(t, day(2025, 4, 15), occ.BilledFrom)

	covered, total := CoverageRatio(occ.Start, occ.End, occ.BilledFrom, occ.BilledTo)
	assert.Equal(t, 16, covered)
	assert.Equal(t, 30, total)

	// the stub is billed only once
	_, ok, err = OccurrenceOn(c, day(2025, 4, 15), false)
	require.NoError(t, err)
	assert.False(t, ok)

	next, err := NextInvoiceDate(c, day(2025, 4, 15))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, day(2025, 5, 1), *next)

	occ, ok, err = OccurrenceOn(c, *next, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, occ.Partial())
	assert.Equal(t, day(2025, 5, 31), occ.BilledTo)
}

func TestOccurrenceOnClipsToEndDate(t *testing.T) {
	c := monthly(day(2025, 1, 1))
	end := day(2025, 3, 10)
	c.EndDate = &end

	occ, ok, err := OccurrenceOn(c, day(2025, 3, 1), false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, occ.Partial())
	assert.Equal(t, day(2025, 3, 10), occ.BilledTo)
}

func TestOccurrenceOnOffSchedule(t *testing.T) {
	c := monthly(day(2025, 1, 1))

	_, ok, err := OccurrenceOn(c, day(2025, 1, 17), false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArrearsBillsFinalPeriod(t *testing.T) {
	c := monthly(day(2025, 1, 1))
	c.InvoiceTiming = model.TimingArrears
	c.TermType = model.TermFixed
	end := day(2025, 3, 31)
	c.EndDate = &end

	periods, err := SchedulePeriods(c, c.StartDate, 10)
	require.NoError(t, err)
	require.Len(t, periods, 3)
	assert.Equal(t, day(2025, 3, 1), periods[2].Start)
	assert.Equal(t, day(2025, 4, 1), periods[2].InvoiceDate)

	next, err := NextInvoiceDate(c, day(2025, 3, 1))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, day(2025, 4, 1), *next)

	occ, ok, err := OccurrenceOn(c, *next, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, occ.Partial())

	next, err = NextInvoiceDate(c, day(2025, 4, 1))
	require.NoError(t, err)
	assert.Nil(t, next)

	// the preview keeps dates up to the end date only
	dates, err := ComputeSchedule(c, c.StartDate, 10)
	require.NoError(t, err)
	assert.Equal(t, []time.Time{day(2025, 2, 1), day(2025, 3, 1)}, dates)
}

func TestArrearsPartialFinalPeriod(t *testing.T) {
	c := monthly(day(2025, 1, 1))
	c.InvoiceTiming = model.TimingArrears
	c.TermType = model.TermFixed
	end := day(2025, 3, 15)
	c.EndDate = &end

	next, err := NextInvoiceDate(c, day(2025, 3, 1))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, day(2025, 3, 16), *next)

	occ, ok, err := OccurrenceOn(c, *next, false)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, occ.Partial())
	assert.Equal(t, day(2025, 3, 1), occ.BilledFrom)
	assert.Equal(t, day(2025, 3, 15), occ.BilledTo)

	covered, total := CoverageRatio(occ.Start, occ.End, occ.BilledFrom, occ.BilledTo)
	assert.Equal(t, 15, covered)
	assert.Equal(t, 31, total)
}

func TestArrearsAutoRenewKeepsNominalDate(t *testing.T) {
	c := monthly(day(2025, 1, 1))
	c.InvoiceTiming = model.TimingArrears
	c.TermType = model.TermAutoRenew
	end := day(2025, 3, 15)
	c.EndDate = &end

	next, err := NextInvoiceDate(c, day(2025, 3, 1))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, day(2025, 4, 1), *next)
}
