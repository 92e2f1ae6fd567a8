// Package reconciler folds verified gateway webhook deliveries into the
// subscription ledger. A delivery is recorded by event id before it is
// applied; one that was already applied successfully is acknowledged
// without touching the ledger again.
package reconciler

import (
	"context"
	"log/slog"
	"time"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/domain/billing"
	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/infra/stripe"
)

// Applier is the subset of the subscription service the reconciler drives.
type Applier interface {
	ApplyCheckout(ctx context.Context, sess *stripe.CheckoutSession, at time.Time) (*subscriptions.Subscription, error)
	ApplyRemoteUpdate(ctx context.Context, remote stripe.Subscription) (bool, error)
	ApplyInvoicePaid(ctx context.Context, inv stripe.InvoiceEvent, at time.Time) (bool, error)
	ApplyRemoteDeletion(ctx context.Context, ref string, at time.Time) (bool, error)
}

type EventStore interface {
	CreateIfNotExists(ctx context.Context, eventID, eventType string) (bool, *billing.ProcessedEvent, error)
	MarkProcessed(ctx context.Context, id uint, procErr error) error
}

type Outcome string

const (
	OutcomeApplied   Outcome = "received"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

type Reconciler struct {
	secret  string
	applier Applier
	events  EventStore
	log     *slog.Logger
}

func New(secret string, applier Applier, events EventStore, log *slog.Logger) *Reconciler {
	return &Reconciler{secret: secret, applier: applier, events: events, log: log}
}

// Handle verifies the signature over the raw body and applies the event.
// A signature failure is returned before anything is recorded.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) (Outcome, error) {
	evt, err := stripe.VerifyWebhookSignature(payload, signature, r.secret)
	if err != nil {
		r.log.Warn("webhook rejected", "error", err)
		return "", err
	}
	return r.Apply(ctx, evt)
}

// Apply processes an already verified event.
func (r *Reconciler) Apply(ctx context.Context, evt *stripe.Event) (Outcome, error) {
	if !handled(evt.Type) {
		r.log.Debug("webhook ignored", "event_id", evt.ID, "type", evt.Type)
		return OutcomeIgnored, nil
	}

	_, row, err := r.events.CreateIfNotExists(ctx, evt.ID, evt.Type)
	if err != nil {
		return "", apperr.Internal("failed to record event", err)
	}
	if row.Processed() {
		r.log.Info("webhook duplicate", "event_id", evt.ID, "type", evt.Type)
		return OutcomeDuplicate, nil
	}

	applyErr := r.dispatch(ctx, evt)
	if err := r.events.MarkProcessed(ctx, row.ID, applyErr); err != nil {
		r.log.Error("failed to mark event processed", "event_id", evt.ID, "error", err)
	}
	if applyErr != nil {
		r.log.Error("webhook processing failed", "event_id", evt.ID, "type", evt.Type, "error", applyErr)
		return "", applyErr
	}
	r.log.Info("webhook applied", "event_id", evt.ID, "type", evt.Type)
	return OutcomeApplied, nil
}

func (r *Reconciler) dispatch(ctx context.Context, evt *stripe.Event) error {
	switch evt.Type {
	case stripe.EventCheckoutCompleted:
		if evt.Checkout == nil {
			return apperr.Validation("checkout event has no session")
		}
		_, err := r.applier.ApplyCheckout(ctx, evt.Checkout, evt.Created)
		return err

	case stripe.EventSubscriptionUpdated:
		if evt.Subscription == nil {
			return apperr.Validation("subscription event has no subscription")
		}
		_, err := r.applier.ApplyRemoteUpdate(ctx, evt.Subscription.Subscription)
		return err

	case stripe.EventSubscriptionDeleted:
		if evt.Subscription == nil {
			return apperr.Validation("subscription event has no subscription")
		}
		_, err := r.applier.ApplyRemoteDeletion(ctx, evt.Subscription.Ref, evt.Created)
		return err

	case stripe.EventInvoicePaid:
		if evt.Invoice == nil {
			return apperr.Validation("invoice event has no invoice")
		}
		if evt.Invoice.SubscriptionRef == "" {
			return nil
		}
		_, err := r.applier.ApplyInvoicePaid(ctx, *evt.Invoice, evt.Created)
		return err
	}
	return nil
}

func handled(eventType string) bool {
	switch eventType {
	case stripe.EventCheckoutCompleted,
		stripe.EventSubscriptionUpdated,
		stripe.EventSubscriptionDeleted,
		stripe.EventInvoicePaid:
		return true
	}
	return false
}
