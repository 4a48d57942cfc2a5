package billing

import (
	"time"

	"backoffice/internal/model"
	"backoffice/internal/money"

	"github.com/shopspring/decimal"
)

// ProratedAmount charges lineTotal for the part of [periodStart, periodEnd] that
// falls inside [billedFrom, billedTo]. All bounds are inclusive calendar days.
// A fully covered period is always charged in full.
func ProratedAmount(lineTotal decimal.Decimal, periodStart, periodEnd, billedFrom, billedTo time.Time, policy string) decimal.Decimal {
	periodStart, periodEnd = model.DateOnly(periodStart), model.DateOnly(periodEnd)
	from, to := model.DateOnly(billedFrom), model.DateOnly(billedTo)
	if from.Before(periodStart) {
		from = periodStart
	}
	if to.After(periodEnd) {
		to = periodEnd
	}

	total := inclusiveDays(periodStart, periodEnd)
	if total <= 0 || to.Before(from) {
		return decimal.Zero
	}
	covered := inclusiveDays(from, to)
	if covered >= total {
		return lineTotal
	}

	switch policy {
	case model.ProrationFullPeriod:
		return lineTotal
	case model.ProrationNoCharge:
		return decimal.Zero
	default:
		return money.Round2(lineTotal.Mul(decimal.NewFromInt(int64(covered))).Div(decimal.NewFromInt(int64(total))))
	}
}

// CoverageRatio is covered/total days for a period, used to scale quantities on
// prorated invoice lines.
func CoverageRatio(periodStart, periodEnd, billedFrom, billedTo time.Time) (covered, total int) {
	periodStart, periodEnd = model.DateOnly(periodStart), model.DateOnly(periodEnd)
	from, to := model.DateOnly(billedFrom), model.DateOnly(billedTo)
	if from.Before(periodStart) {
		from = periodStart
	}
	if to.After(periodEnd) {
		to = periodEnd
	}
	total = inclusiveDays(periodStart, periodEnd)
	if to.Before(from) {
		return 0, total
	}
	return inclusiveDays(from, to), total
}

func inclusiveDays(from, to time.Time) int {
	return int(to.Sub(from).Hours()/24) + 1
}
