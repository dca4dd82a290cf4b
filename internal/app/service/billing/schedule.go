package billing

import (
	"time"

	"github.com/fatflowers/paygate/pkg/types"
)

// NextBillingDate advances from by one period of freq. Monthly and yearly
// periods land on billingDay (the day of from when zero), clamped to the
// last day of a shorter month, so a subscription billed on the 31st is
// charged on Feb 28 and back on Mar 31.
func NextBillingDate(from time.Time, freq types.BillingFrequency, billingDay int) time.Time {
	switch freq {
	case types.BillingFrequencyDaily:
		return from.AddDate(0, 0, 1)
	case types.BillingFrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case types.BillingFrequencyYearly:
		return addMonths(from, 12, billingDay)
	default:
		return addMonths(from, 1, billingDay)
	}
}

// nextAfter steps past every period missed while billing was not running,
// so a late tick charges once instead of once per missed period.
func nextAfter(scheduled, now time.Time, freq types.BillingFrequency, billingDay int) time.Time {
	next := NextBillingDate(scheduled, freq, billingDay)
	for !next.After(now) {
		next = NextBillingDate(next, freq, billingDay)
	}
	return next
}

func addMonths(from time.Time, n, day int) time.Time {
	if day <= 0 {
		day = from.Day()
	}
	y, m, _ := from.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, from.Location())
	last := first.AddDate(0, 1, -1).Day()
	return time.Date(first.Year(), first.Month(), min(day, last), from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), from.Location())
}
