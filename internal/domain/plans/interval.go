package plans

import (
	"strings"
	"time"
)

// PeriodEnd returns the end of one billing period that begins at start.
// Month arithmetic follows time.AddDate normalisation (Jan 31 + 1 month
// lands in early March).
func (i Interval) PeriodEnd(start time.Time) time.Time {
	if i == Yearly {
		return start.AddDate(0, 12, 0)
	}
	return start.AddDate(0, 1, 0)
}

// StripeInterval is the recurring interval name the gateway expects.
func (i Interval) StripeInterval() string {
	if i == Yearly {
		return "year"
	}
	return "month"
}

// ParseInterval accepts both catalog names and gateway names.
func ParseInterval(s string) (Interval, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "monthly", "month":
		return Monthly, true
	case "yearly", "year", "annual":
		return Yearly, true
	default:
		return "", false
	}
}
