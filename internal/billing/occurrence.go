package billing

import (
	"time"

	"backoffice/internal/model"
)

// Occurrence is one invoice a contract owes: the nominal period and the part
// of it inside the contract term.
type Occurrence struct {
	Period
	BilledFrom time.Time
	BilledTo   time.Time
	Stub       bool // leading partial period before the first anchored one
}

// Partial reports whether the billed range is shorter than the period.
func (o Occurrence) Partial() bool {
	return o.BilledFrom.After(o.Start) || o.BilledTo.Before(o.End)
}

// stubInvoiceDate is the contract start for ADVANCE billing and the day after
// the stub for ARREARS, pulled in to the day after the end date when the
// contract ends inside the stub.
func stubInvoiceDate(c *model.Contract, stub Period) time.Time {
	if c.InvoiceTiming == model.TimingArrears {
		d := stub.End.AddDate(0, 0, 1)
		if c.EndDate != nil {
			d = tailInvoiceDate(c, d, model.DateOnly(*c.EndDate))
		}
		return d
	}
	return model.DateOnly(c.StartDate)
}

// FirstInvoiceDate is the first date a newly activated contract is invoiced.
// A leading stub comes before the regular schedule. Nil when nothing is owed.
func FirstInvoiceDate(c *model.Contract) (*time.Time, error) {
	stub, err := StubPeriod(c)
	if err != nil {
		return nil, err
	}
	if stub != nil {
		d := stubInvoiceDate(c, *stub)
		return &d, nil
	}
	periods, err := SchedulePeriods(c, c.StartDate, 1)
	if err != nil || len(periods) == 0 {
		return nil, err
	}
	return &periods[0].InvoiceDate, nil
}

// OccurrenceOn resolves the invoice due on date. first is true while the
// contract has never been invoiced; only then can the stub be billed.
func OccurrenceOn(c *model.Contract, date time.Time, first bool) (Occurrence, bool, error) {
	date = model.DateOnly(date)
	start := model.DateOnly(c.StartDate)

	if first {
		stub, err := StubPeriod(c)
		if err != nil {
			return Occurrence{}, false, err
		}
		if stub != nil && stubInvoiceDate(c, *stub).Equal(date) {
			p := *stub
			p.InvoiceDate = date
			return clip(c, Occurrence{Period: p, BilledFrom: start, BilledTo: p.End, Stub: true}), true, nil
		}
	}

	p, ok, err := PeriodForInvoiceDate(c, date)
	if err != nil || !ok {
		return Occurrence{}, false, err
	}
	occ := Occurrence{Period: p, BilledFrom: p.Start, BilledTo: p.End}
	if occ.BilledFrom.Before(start) {
		occ.BilledFrom = start
	}
	return clip(c, occ), true, nil
}

func clip(c *model.Contract, o Occurrence) Occurrence {
	if c.EndDate != nil {
		end := model.DateOnly(*c.EndDate)
		if o.BilledTo.After(end) {
			o.BilledTo = end
		}
	}
	return o
}
