package subscriptions

import "time"

type State string

const (
	StateAbsent        State = "absent"
	StateFree          State = "free"
	StateTrialing      State = "trialing"
	StateActive        State = "active"
	StatePendingCancel State = "pending_cancel"
	StateExpired       State = "expired"
)

// Classify derives the lifecycle state on read. Nothing but the raw fields
// is stored; EndDate is the only entitlement boundary.
func Classify(s *Subscription, now time.Time) State {
	switch {
	case s == nil:
		return StateAbsent
	case !now.Before(s.EndDate):
		return StateExpired
	case s.StripeSubscriptionID == nil:
		return StateFree
	case s.TrialActive:
		return StateTrialing
	case s.CancelAtPeriodEnd:
		return StatePendingCancel
	default:
		return StateActive
	}
}

// Entitled holds iff a subscription exists and now < EndDate, whatever TrialActive says.
func Entitled(s *Subscription, now time.Time) bool {
	return s != nil && now.Before(s.EndDate)
}
