package subscriptions

import (
	"time"

	"voiceclone-backend/internal/domain/plans"
)

// Subscription is the ledger entry for one user. The unique index on user_id
// enforces the at-most-one invariant at the database level.
type Subscription struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint `gorm:"not null;uniqueIndex:idx_subscriptions_user_id"`

	PlanID uint `gorm:"not null"`
	Plan   *plans.Plan

	StartDate   time.Time `gorm:"not null"`
	EndDate     time.Time `gorm:"not null;index"`
	TrialActive bool      `gorm:"not null;default:false;index"`

	// nil means locally managed (the free plan).
	StripeSubscriptionID *string `gorm:"column:stripe_subscription_id;uniqueIndex:idx_subscriptions_stripe_subscription_id"`
	// Mirrors the gateway's cancel_at_period_end flag.
	CancelAtPeriodEnd bool `gorm:"not null;default:false"`
	// Minor currency units actually charged; overrides the plan amount in reports.
	AmountPaid *int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Subscription) ExternalRef() string {
	if s == nil || s.StripeSubscriptionID == nil {
		return ""
	}
	return *s.StripeSubscriptionID
}

// Interval returns the billing interval of the attached plan, defaulting to monthly.
func (s *Subscription) Interval() plans.Interval {
	if s == nil || s.Plan == nil {
		return plans.Monthly
	}
	return s.Plan.Interval
}
