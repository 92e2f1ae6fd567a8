package subscription

import (
	"context"
	"errors"
	"time"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/domain/notifications"
	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/infra/stripe"
	"voiceclone-backend/internal/ledger"
)

// The methods below fold gateway events into the ledger. Each is keyed by
// user id or gateway reference and anchored to the event time, so applying
// the same event twice converges. Events about a reference the ledger does
// not know are no-ops.

// ApplyCheckout records a completed checkout as the user's subscription. A
// user already holding this gateway subscription is left as is. A checkout
// whose subscription the gateway has since canceled writes nothing and
// returns a nil subscription.
func (s *Service) ApplyCheckout(ctx context.Context, sess *stripe.CheckoutSession, at time.Time) (*subscriptions.Subscription, error) {
	if sess.UserID == 0 || sess.PackID == "" {
		return nil, apperr.Validation("checkout session is missing userId or packId metadata")
	}
	if sess.SubscriptionRef == "" {
		return nil, apperr.Validation("checkout session has no subscription")
	}

	existing, err := s.ledger.FindByUser(ctx, sess.UserID)
	if err != nil {
		return nil, apperr.Internal("failed to load subscription", err)
	}
	if existing.ExternalRef() == sess.SubscriptionRef {
		return existing, nil
	}

	plan, err := s.catalog.Purchasable(ctx, sess.PackID)
	if err != nil {
		return nil, err
	}

	remote := sess.Subscription
	if remote == nil {
		remote, err = s.gateway.RetrieveSubscription(ctx, sess.SubscriptionRef)
		if err != nil {
			return nil, apperr.Upstream("failed to retrieve subscription", err)
		}
	}

	if remote.Status == stripe.StatusCanceled {
		s.log.Info("checkout skipped, subscription canceled",
			"user_id", sess.UserID, "pack_id", plan.PackID, "ref", remote.Ref)
		return nil, nil
	}

	next, err := subscriptions.StartFromCheckout(sess.UserID, plan, toRemote(remote), at)
	if errors.Is(err, subscriptions.ErrPlanUnavailable) {
		return nil, apperr.NotFound("package not found or suspended")
	}
	if err != nil {
		return nil, apperr.Internal("failed to start subscription", err)
	}

	if err := s.ledger.UpsertByUser(ctx, &next); err != nil {
		return nil, apperr.Internal("failed to record subscription", err)
	}
	s.log.Info("checkout applied",
		"user_id", sess.UserID, "pack_id", plan.PackID, "ref", remote.Ref,
		"trialing", next.TrialActive, "ends_at", next.EndDate)
	return &next, nil
}

// ApplyRemoteUpdate mirrors the trial flag and a scheduled cancellation.
func (s *Service) ApplyRemoteUpdate(ctx context.Context, remote stripe.Subscription) (bool, error) {
	sub, err := s.ledger.FindByRef(ctx, remote.Ref)
	if err != nil {
		return false, apperr.Internal("failed to load subscription", err)
	}
	if sub == nil {
		return false, nil
	}

	next := subscriptions.Mirror(*sub, toRemote(&remote))
	ok, err := s.ledger.Save(ctx, &next, ledger.WhileRef(remote.Ref))
	if err != nil {
		return false, apperr.Internal("failed to update subscription", err)
	}
	return ok, nil
}

// ApplyInvoicePaid converts a trial once the gateway stops reporting it as
// trialing, and extends a paid subscription on a renewal cycle.
func (s *Service) ApplyInvoicePaid(ctx context.Context, inv stripe.InvoiceEvent, at time.Time) (bool, error) {
	sub, err := s.ledger.FindByRef(ctx, inv.SubscriptionRef)
	if err != nil {
		return false, apperr.Internal("failed to load subscription", err)
	}
	if sub == nil {
		return false, nil
	}

	if sub.TrialActive {
		remote, err := s.gateway.RetrieveSubscription(ctx, inv.SubscriptionRef)
		if err != nil {
			return false, apperr.Upstream("failed to retrieve subscription", err)
		}
		next, ok := subscriptions.ConvertTrial(*sub, toRemote(remote), inv.AmountPaid, at)
		if !ok {
			return false, nil
		}
		saved, err := s.ledger.Save(ctx, &next, ledger.WhileTrialing, ledger.WhileRef(inv.SubscriptionRef))
		if err != nil {
			return false, apperr.Internal("failed to convert trial", err)
		}
		if saved {
			s.log.Info("trial converted", "user_id", sub.UserID, "ref", inv.SubscriptionRef, "ends_at", next.EndDate)
		}
		return saved, nil
	}

	if inv.BillingReason != stripe.BillingReasonCycle {
		return false, nil
	}
	next, ok := subscriptions.RenewPeriod(*sub, inv.AmountPaid, at)
	if !ok {
		return false, nil
	}
	saved, err := s.ledger.Save(ctx, &next, ledger.WhileNotTrialing, ledger.WhileRef(inv.SubscriptionRef))
	if err != nil {
		return false, apperr.Internal("failed to renew subscription", err)
	}
	return saved, nil
}

// ApplyRemoteDeletion removes the subscription the gateway deleted.
func (s *Service) ApplyRemoteDeletion(ctx context.Context, ref string, at time.Time) (bool, error) {
	sub, err := s.ledger.FindByRef(ctx, ref)
	if err != nil {
		return false, apperr.Internal("failed to load subscription", err)
	}
	deleted, err := s.ledger.DeleteByRef(ctx, ref)
	if err != nil {
		return false, apperr.Internal("failed to delete subscription", err)
	}
	if deleted && sub != nil {
		s.log.Info("subscription deleted by gateway", "user_id", sub.UserID, "ref", ref)
		s.notifier.Emit(ctx, sub.UserID, notifications.KindSubscriptionCanceled, at)
	}
	return deleted, nil
}

func toRemote(s *stripe.Subscription) subscriptions.Remote {
	return subscriptions.Remote{
		Ref:               s.Ref,
		Trialing:          s.Trialing(),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
		PeriodEnd:         s.CurrentPeriodEnd,
	}
}
