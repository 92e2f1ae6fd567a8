package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	sdk "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/webhook"

	"voiceclone-backend/internal/apperr"
)

const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
	EventInvoicePaid         = "invoice.payment_succeeded"

	BillingReasonCycle = "subscription_cycle"
)

// Event is a verified webhook delivery with its payload decoded for the
// types the reconciler handles. Exactly one of the payload fields is set for
// a handled type; all are nil otherwise.
type Event struct {
	ID      string
	Type    string
	Created time.Time

	Checkout     *CheckoutSession
	Subscription *SubscriptionEvent
	Invoice      *InvoiceEvent
}

type SubscriptionEvent struct {
	Subscription
	UserID uint
}

type InvoiceEvent struct {
	ID              string
	SubscriptionRef string
	AmountPaid      int64
	BillingReason   string
}

// VerifyWebhookSignature checks the signature header against the raw body
// and decodes the event. Any failure is a signature error.
func VerifyWebhookSignature(payload []byte, header, secret string) (*Event, error) {
	evt, err := webhook.ConstructEventWithOptions(
		payload,
		header,
		secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		return nil, apperr.Signature("webhook signature verification failed", err)
	}
	return ParseEvent(evt)
}

func ParseEvent(evt sdk.Event) (*Event, error) {
	out := &Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: time.Unix(evt.Created, 0).UTC(),
	}
	if evt.Data == nil {
		return out, nil
	}

	switch out.Type {
	case EventCheckoutCompleted:
		var s sdk.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return nil, apperr.Validation(fmt.Sprintf("malformed %s payload", out.Type))
		}
		out.Checkout = toCheckoutSession(&s)

	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		var s sdk.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return nil, apperr.Validation(fmt.Sprintf("malformed %s payload", out.Type))
		}
		out.Subscription = &SubscriptionEvent{
			Subscription: *toSubscription(&s),
			UserID:       userIDFrom(s.Metadata, ""),
		}

	case EventInvoicePaid:
		var inv sdk.Invoice
		if err := json.Unmarshal(evt.Data.Raw, &inv); err != nil {
			return nil, apperr.Validation(fmt.Sprintf("malformed %s payload", out.Type))
		}
		out.Invoice = &InvoiceEvent{
			ID:            inv.ID,
			AmountPaid:    inv.AmountPaid,
			BillingReason: string(inv.BillingReason),
		}
		if inv.Subscription != nil {
			out.Invoice.SubscriptionRef = inv.Subscription.ID
		}
	}
	return out, nil
}
