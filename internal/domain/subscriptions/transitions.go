package subscriptions

import (
	"errors"
	"time"

	"voiceclone-backend/internal/domain/plans"
)

var (
	ErrPlanUnavailable = errors.New("package not found or suspended")
	ErrStillActive     = errors.New("subscription still active")
)

// Remote is the gateway's view of a subscription, reduced to what the
// transitions need.
type Remote struct {
	Ref               string
	Trialing          bool
	CancelAtPeriodEnd bool
	PeriodEnd         time.Time
}

// StartFree builds the Absent -> Free record.
func StartFree(userID uint, free *plans.Plan, now time.Time) Subscription {
	return Subscription{
		UserID:      userID,
		PlanID:      free.ID,
		Plan:        free,
		StartDate:   now,
		EndDate:     plans.Monthly.PeriodEnd(now),
		TrialActive: false,
	}
}

// StartFromCheckout builds the Free/Absent -> Trialing|Active record for a
// completed checkout. at is the event time, so a replay yields the same record.
func StartFromCheckout(userID uint, plan *plans.Plan, remote Remote, at time.Time) (Subscription, error) {
	if !plan.IsActive() {
		return Subscription{}, ErrPlanUnavailable
	}

	ref := remote.Ref
	sub := Subscription{
		UserID:               userID,
		PlanID:               plan.ID,
		Plan:                 plan,
		StartDate:            at,
		EndDate:              plan.Interval.PeriodEnd(at),
		TrialActive:          remote.Trialing,
		StripeSubscriptionID: &ref,
	}
	if remote.CancelAtPeriodEnd && !remote.PeriodEnd.IsZero() {
		sub.CancelAtPeriodEnd = true
		sub.EndDate = remote.PeriodEnd
	}
	return sub, nil
}

// ConvertTrial applies Trialing -> Active after a confirmed payment. It
// returns false when the subscription is not trialing or the gateway still
// reports a trial.
func ConvertTrial(s Subscription, remote Remote, amountPaid int64, at time.Time) (Subscription, bool) {
	if !s.TrialActive || remote.Trialing {
		return s, false
	}
	s.TrialActive = false
	s.StartDate = at
	s.EndDate = s.Interval().PeriodEnd(at)
	s.AmountPaid = &amountPaid
	return s, true
}

// RenewPeriod applies a paid renewal cycle to a non-trial subscription.
func RenewPeriod(s Subscription, amountPaid int64, at time.Time) (Subscription, bool) {
	if s.TrialActive || s.StripeSubscriptionID == nil {
		return s, false
	}
	s.StartDate = at
	s.EndDate = s.Interval().PeriodEnd(at)
	s.AmountPaid = &amountPaid
	return s, true
}

// Mirror folds a "subscription updated" gateway view into the record.
func Mirror(s Subscription, remote Remote) Subscription {
	s.TrialActive = remote.Trialing
	s.CancelAtPeriodEnd = remote.CancelAtPeriodEnd
	if remote.CancelAtPeriodEnd && !remote.PeriodEnd.IsZero() {
		s.EndDate = remote.PeriodEnd
	}
	return s
}

// ScheduleCancel applies Active -> CancelPendingPeriodEnd. Entitlement runs
// until the gateway's current period end.
func ScheduleCancel(s Subscription, periodEnd time.Time) Subscription {
	s.CancelAtPeriodEnd = true
	s.TrialActive = false
	if !periodEnd.IsZero() {
		s.EndDate = periodEnd
	}
	return s
}

// Renew restarts an expired subscription for one more period from now.
func Renew(s Subscription, now time.Time) (Subscription, error) {
	if now.Before(s.EndDate) {
		return s, ErrStillActive
	}
	s.StartDate = now
	s.EndDate = s.Interval().PeriodEnd(now)
	s.TrialActive = false
	s.CancelAtPeriodEnd = false
	return s, nil
}
