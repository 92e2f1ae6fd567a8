package stripe

import "strings"

const (
	StatusNone     = "none"
	StatusActive   = "active"
	StatusTrialing = "trialing"
	StatusPastDue  = "past_due"
	StatusCanceled = "canceled"
)

// PaymentUnpaid is the checkout session payment status before funds arrive.
const PaymentUnpaid = "unpaid"

// NormalizeStatus folds the gateway's subscription statuses into the few
// the lifecycle cares about.
func NormalizeStatus(s string) string {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return StatusNone
	case "active":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due", "unpaid":
		return StatusPastDue
	case "canceled", "incomplete_expired":
		return StatusCanceled
	default:
		return s
	}
}
