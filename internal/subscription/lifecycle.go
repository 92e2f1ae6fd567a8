package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/domain/access"
	"voiceclone-backend/internal/domain/notifications"
	"voiceclone-backend/internal/domain/plans"
	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/infra/stripe"
	"voiceclone-backend/internal/ledger"
)

// Initialize attaches the free plan to a user with no subscription.
func (s *Service) Initialize(ctx context.Context, userID uint) (*subscriptions.Subscription, error) {
	sub, created, err := s.startFree(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !created {
		return nil, apperr.Conflict("subscription already exists")
	}
	return sub, nil
}

// EnsureFree is the login-time backfill: the same transition as Initialize
// but an existing subscription is not an error.
func (s *Service) EnsureFree(ctx context.Context, userID uint) error {
	_, created, err := s.startFree(ctx, userID)
	if err != nil {
		return err
	}
	if created {
		s.log.Info("free subscription backfilled", "user_id", userID)
	}
	return nil
}

func (s *Service) startFree(ctx context.Context, userID uint) (*subscriptions.Subscription, bool, error) {
	free, err := s.catalog.EnsureFree(ctx)
	if err != nil {
		return nil, false, err
	}
	sub := subscriptions.StartFree(userID, free, s.clock())
	created, err := s.ledger.InsertIfAbsent(ctx, &sub)
	if err != nil {
		return nil, false, apperr.Internal("failed to create subscription", err)
	}
	return &sub, created, nil
}

type Checkout struct {
	SessionID string `json:"sessionId"`
	URL       string `json:"url"`
}

func (s *Service) CreateCheckoutSession(ctx context.Context, p access.Principal, packID string) (*Checkout, error) {
	if packID == "" {
		return nil, apperr.Validation("packId is required")
	}
	plan, err := s.catalog.Purchasable(ctx, packID)
	if err != nil {
		return nil, err
	}
	if plan.IsFree() || plan.StripePriceID == nil || *plan.StripePriceID == "" {
		return nil, apperr.Validation("package is not purchasable")
	}

	sess, err := s.gateway.CreateCheckoutSession(ctx, stripe.CheckoutRequest{
		PriceID:    *plan.StripePriceID,
		UserID:     p.UserID,
		PackID:     plan.PackID,
		Email:      p.Email,
		TrialDays:  plan.TrialDays,
		SuccessURL: s.baseURL + "/subscription/stripe-success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.baseURL + "/subscription/stripe-cancel",
	})
	if err != nil {
		return nil, apperr.Upstream("failed to create checkout session", err)
	}
	return &Checkout{SessionID: sess.ID, URL: sess.URL}, nil
}

// ConfirmCheckout handles the browser return from checkout. The session must
// belong to the caller and be paid unless it opened a trial. If the webhook
// already recorded the subscription the stored row is returned unchanged.
func (s *Service) ConfirmCheckout(ctx context.Context, userID uint, sessionID string) (*subscriptions.Subscription, error) {
	if sessionID == "" {
		return nil, apperr.Validation("session_id is required")
	}
	sess, err := s.gateway.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, apperr.Upstream("failed to retrieve checkout session", err)
	}
	if sess.UserID != userID {
		return nil, apperr.Forbidden("checkout session does not belong to this user")
	}
	if sess.SubscriptionRef == "" {
		return nil, apperr.Validation("checkout session is not complete")
	}
	if sess.PaymentStatus == stripe.PaymentUnpaid && !sess.Subscription.Trialing() {
		return nil, apperr.Validation("checkout session is not paid")
	}
	sub, err := s.ApplyCheckout(ctx, sess, s.clock())
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, apperr.Conflict("subscription was canceled; start a new checkout")
	}
	return sub, nil
}

type CancelResult struct {
	Deleted bool       `json:"deleted"`
	EndsAt  *time.Time `json:"endsAt,omitempty"`
}

// Cancel ends a trial immediately and schedules a paid subscription to end
// with its current period.
func (s *Service) Cancel(ctx context.Context, userID uint) (*CancelResult, error) {
	sub, err := s.ledger.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load subscription", err)
	}
	if sub == nil {
		return nil, apperr.NotFound("no subscription found")
	}

	ref := sub.ExternalRef()
	if ref == "" {
		// Locally managed: nothing to cancel remotely.
		if _, err := s.ledger.DeleteByUser(ctx, userID); err != nil {
			return nil, apperr.Internal("failed to delete subscription", err)
		}
		s.notifier.Emit(ctx, userID, notifications.KindSubscriptionCanceled, s.clock())
		return &CancelResult{Deleted: true}, nil
	}

	remote, err := s.gateway.RetrieveSubscription(ctx, ref)
	if err != nil {
		return nil, apperr.Upstream("failed to retrieve subscription", err)
	}

	switch remote.Status {
	case stripe.StatusTrialing:
		if err := s.gateway.CancelSubscription(ctx, ref); err != nil {
			return nil, apperr.Upstream("failed to cancel subscription", err)
		}
		return s.deleteCanceled(ctx, userID, ref)

	case stripe.StatusCanceled:
		return s.deleteCanceled(ctx, userID, ref)

	case stripe.StatusActive, stripe.StatusPastDue:
		updated, err := s.gateway.UpdateSubscription(ctx, ref, true)
		if err != nil {
			return nil, apperr.Upstream("failed to schedule cancellation", err)
		}
		next := subscriptions.ScheduleCancel(*sub, updated.CurrentPeriodEnd)
		ok, err := s.ledger.Save(ctx, &next, ledger.WhileRef(ref))
		if err != nil {
			return nil, apperr.Internal("failed to update subscription", err)
		}
		if !ok {
			return nil, apperr.Conflict("subscription changed during cancellation")
		}
		s.log.Info("subscription cancel scheduled", "user_id", userID, "ref", ref, "ends_at", next.EndDate)
		s.notifier.Emit(ctx, userID, notifications.KindSubscriptionCanceled, next.EndDate)
		end := next.EndDate
		return &CancelResult{Deleted: false, EndsAt: &end}, nil

	default:
		return nil, apperr.Conflict(fmt.Sprintf("subscription cannot be canceled while %s", remote.Status))
	}
}

func (s *Service) deleteCanceled(ctx context.Context, userID uint, ref string) (*CancelResult, error) {
	if _, err := s.ledger.DeleteByUser(ctx, userID); err != nil {
		return nil, apperr.Internal("failed to delete subscription", err)
	}
	s.log.Info("subscription canceled", "user_id", userID, "ref", ref)
	s.notifier.Emit(ctx, userID, notifications.KindSubscriptionCanceled, s.clock())
	return &CancelResult{Deleted: true}, nil
}

// Renew restarts an expired subscription for one period from now. A gateway
// subscription that was canceled remotely cannot be renewed locally.
func (s *Service) Renew(ctx context.Context, userID uint) (*subscriptions.Subscription, error) {
	sub, err := s.ledger.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load subscription", err)
	}
	if sub == nil {
		return nil, apperr.NotFound("no subscription found")
	}

	now := s.clock()
	next, err := subscriptions.Renew(*sub, now)
	if errors.Is(err, subscriptions.ErrStillActive) {
		return nil, apperr.Conflict("subscription still active")
	}
	if err != nil {
		return nil, apperr.Internal("failed to renew subscription", err)
	}

	if ref := sub.ExternalRef(); ref != "" {
		remote, err := s.gateway.RetrieveSubscription(ctx, ref)
		if err != nil {
			return nil, apperr.Upstream("failed to retrieve subscription", err)
		}
		if remote.Status == stripe.StatusCanceled {
			return nil, apperr.Conflict("subscription was canceled; start a new checkout")
		}
	}

	ok, err := s.ledger.Save(ctx, &next)
	if err != nil {
		return nil, apperr.Internal("failed to renew subscription", err)
	}
	if !ok {
		return nil, apperr.NotFound("no subscription found")
	}
	return &next, nil
}

type Details struct {
	PackID       string              `json:"packId"`
	Amount       string              `json:"amount"`
	Begins       string              `json:"begins"`
	Ends         string              `json:"ends"`
	Type         plans.Interval      `json:"type"`
	TrialActive  bool                `json:"trialActive"`
	TrialExpires *string             `json:"trialExpires"`
	State        subscriptions.State `json:"state"`
}

func (s *Service) Details(ctx context.Context, userID uint) (*Details, error) {
	sub, err := s.ledger.FindByUser(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("failed to load subscription", err)
	}
	if sub == nil {
		return nil, apperr.NotFound("no subscription found")
	}
	return buildDetails(sub, s.clock()), nil
}

func buildDetails(sub *subscriptions.Subscription, now time.Time) *Details {
	var amount int64
	d := &Details{
		Begins:      day(sub.StartDate),
		Ends:        day(sub.EndDate),
		Type:        sub.Interval(),
		TrialActive: sub.TrialActive,
		State:       subscriptions.Classify(sub, now),
	}
	if sub.Plan != nil {
		d.PackID = sub.Plan.PackID
		amount = sub.Plan.Amount
	}
	if sub.AmountPaid != nil {
		amount = *sub.AmountPaid
	}
	d.Amount = FormatAmount(amount)
	if sub.TrialActive {
		ends := d.Ends
		d.TrialExpires = &ends
	}
	return d
}

// FormatAmount renders minor units as dollars, e.g. 999 -> "$9.99".
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s$%d.%02d", sign, minor/100, minor%100)
}

func day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Access returns the caller's access policy, derived from the ledger only.
func (s *Service) Access(ctx context.Context, userID uint) (access.Policy, error) {
	sub, err := s.ledger.FindByUser(ctx, userID)
	if err != nil {
		return access.Policy{}, apperr.Internal("failed to load subscription", err)
	}
	return access.ComputePolicy(s.clock(), sub), nil
}

// Entitled is the cheap per-request check.
func (s *Service) Entitled(ctx context.Context, userID uint) (bool, error) {
	ok, err := s.ledger.Entitled(ctx, userID, s.clock())
	if err != nil {
		return false, apperr.Internal("failed to check entitlement", err)
	}
	return ok, nil
}
