// Package billing holds the pure billing rules: schedules, proration, line
// totals and the contract and invoice transition tables. Nothing here touches
// storage; services load entities, ask this package, then persist.
package billing

import (
	"time"

	"backoffice/internal/apperror"
	"backoffice/internal/model"
)

// Period is one billing cycle. End is inclusive.
type Period struct {
	Index       int       `json:"index"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	InvoiceDate time.Time `json:"invoice_date"`
}

// calendar generates nominal period starts for a recurring contract.
// MONTH and YEAR periods are computed from a month index rather than by
// chaining AddDate, so a clamped short month never drags later anchors.
type calendar struct {
	unit    string
	count   int
	anchor  int
	base    time.Time
	arrears bool
}

func newCalendar(c *model.Contract) (calendar, error) {
	if c.BillingIntervalCount < 1 {
		return calendar{}, apperror.Validation("billing_interval_count", "must be at least 1")
	}
	start := model.DateOnly(c.StartDate)
	cal := calendar{
		unit:    c.BillingIntervalUnit,
		count:   c.BillingIntervalCount,
		arrears: c.InvoiceTiming == model.TimingArrears,
	}

	switch c.BillingIntervalUnit {
	case model.IntervalMonth, model.IntervalYear:
		cal.anchor = start.Day()
		if c.BillingDayOfMonth != nil {
			cal.anchor = *c.BillingDayOfMonth
		}
		if cal.anchor < 1 || cal.anchor > 31 {
			return calendar{}, apperror.Validation("billing_day_of_month", "must be between 1 and 31")
		}
		cal.base = time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC)
		if cal.periodStart(0).Before(start) {
			cal.base = cal.base.AddDate(0, cal.stepMonths(), 0)
		}
	case model.IntervalDay, model.IntervalWeek:
		cal.base = start
	default:
		return calendar{}, apperror.Validation("billing_interval_unit", "must be one of DAY, WEEK, MONTH, YEAR")
	}
	return cal, nil
}

func (c calendar) stepMonths() int {
	if c.unit == model.IntervalYear {
		return 12 * c.count
	}
	return c.count
}

func (c calendar) periodStart(i int) time.Time {
	switch c.unit {
	case model.IntervalMonth, model.IntervalYear:
		first := c.base.AddDate(0, i*c.stepMonths(), 0)
		day := min(c.anchor, daysInMonth(first.Year(), first.Month()))
		return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
	case model.IntervalWeek:
		return c.base.AddDate(0, 0, 7*c.count*i)
	default:
		return c.base.AddDate(0, 0, c.count*i)
	}
}

func (c calendar) period(i int) Period {
	start := c.periodStart(i)
	next := c.periodStart(i + 1)
	p := Period{Index: i, Start: start, End: next.AddDate(0, 0, -1), InvoiceDate: start}
	if c.arrears {
		p.InvoiceDate = next
	}
	return p
}

// ComputeSchedule returns up to count invoice dates on or after from.
// It is a pure function of the contract's billing fields. A date after the
// contract's end date stops the sequence; a date equal to it is kept.
func ComputeSchedule(c *model.Contract, from time.Time, count int) ([]time.Time, error) {
	periods, err := SchedulePeriods(c, from, count)
	if err != nil {
		return nil, err
	}
	dates := make([]time.Time, 0, len(periods))
	for _, p := range periods {
		if c.EndDate != nil && p.InvoiceDate.After(model.DateOnly(*c.EndDate)) {
			break
		}
		dates = append(dates, p.InvoiceDate)
	}
	return dates, nil
}

// SchedulePeriods returns up to count billable periods invoiced on or after from.
// A period starting after the contract's end date stops the sequence. An ARREARS
// period running past the end date is invoiced the day after the end date,
// except on AUTO_RENEW contracts, whose term is extended before it comes due.
func SchedulePeriods(c *model.Contract, from time.Time, count int) ([]Period, error) {
	if count < 1 {
		return nil, apperror.Validation("count", "must be at least 1")
	}
	from = model.DateOnly(from)
	start := model.DateOnly(c.StartDate)
	var end *time.Time
	if c.EndDate != nil {
		e := model.DateOnly(*c.EndDate)
		end = &e
	}

	if c.BillingType == model.BillingOneTime {
		d := start
		if from.After(d) {
			d = from
		}
		if end != nil && d.After(*end) {
			return []Period{}, nil
		}
		return []Period{{Index: 0, Start: d, End: d, InvoiceDate: d}}, nil
	}

	cal, err := newCalendar(c)
	if err != nil {
		return nil, err
	}
	out := make([]Period, 0, count)
	for i := 0; len(out) < count; i++ {
		p := cal.period(i)
		if end != nil {
			if p.Start.After(*end) {
				break
			}
			p.InvoiceDate = tailInvoiceDate(c, p.InvoiceDate, *end)
		}
		if p.InvoiceDate.Before(from) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// tailInvoiceDate pulls an ARREARS invoice date in to the day after end.
func tailInvoiceDate(c *model.Contract, date, end time.Time) time.Time {
	if c.InvoiceTiming != model.TimingArrears || c.TermType == model.TermAutoRenew {
		return date
	}
	if after := end.AddDate(0, 0, 1); date.After(after) {
		return after
	}
	return date
}

// PeriodForInvoiceDate finds the period invoiced on the given date.
func PeriodForInvoiceDate(c *model.Contract, date time.Time) (Period, bool, error) {
	periods, err := SchedulePeriods(c, date, 1)
	if err != nil {
		return Period{}, false, err
	}
	if len(periods) == 0 || !periods[0].InvoiceDate.Equal(model.DateOnly(date)) {
		return Period{}, false, nil
	}
	return periods[0], true, nil
}

// NextInvoiceDate returns the first scheduled date strictly after date, or nil when
// the schedule is exhausted.
func NextInvoiceDate(c *model.Contract, date time.Time) (*time.Time, error) {
	if c.BillingType == model.BillingOneTime {
		return nil, nil
	}
	periods, err := SchedulePeriods(c, model.DateOnly(date).AddDate(0, 0, 1), 1)
	if err != nil || len(periods) == 0 {
		return nil, err
	}
	return &periods[0].InvoiceDate, nil
}

// StubPeriod returns the nominal period that contains the contract start when the
// start falls before the first anchored period, or nil when billing starts on an anchor.
func StubPeriod(c *model.Contract) (*Period, error) {
	if c.BillingType == model.BillingOneTime {
		return nil, nil
	}
	cal, err := newCalendar(c)
	if err != nil {
		return nil, err
	}
	if !cal.periodStart(0).After(model.DateOnly(c.StartDate)) {
		return nil, nil
	}
	p := cal.period(-1)
	return &p, nil
}

// AddMonths moves t by n calendar months, clamping the day to the target
// month's length.
func AddMonths(t time.Time, n int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	day := min(t.Day(), daysInMonth(first.Year(), first.Month()))
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
