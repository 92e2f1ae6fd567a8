package stripe

import (
	"context"
	"time"
)

// Gateway is the subset of the payment processor the subscription core uses.
// Implementations must not retry; callers decide what a failure means.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, id string) (*CheckoutSession, error)
	RetrieveSubscription(ctx context.Context, ref string) (*Subscription, error)
	UpdateSubscription(ctx context.Context, ref string, cancelAtPeriodEnd bool) (*Subscription, error)
	CancelSubscription(ctx context.Context, ref string) error

	RetrievePrice(ctx context.Context, id string) (*Price, error)
	CreatePrice(ctx context.Context, req PriceRequest) (*Price, error)
	SetDefaultPrice(ctx context.Context, productID, priceID string) error
}

type CheckoutRequest struct {
	PriceID    string
	UserID     uint
	PackID     string
	Email      string
	TrialDays  int
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the gateway session reduced to what the core reads.
// UserID and PackID come from the session metadata.
type CheckoutSession struct {
	ID              string
	URL             string
	UserID          uint
	PackID          string
	PaymentStatus   string
	SubscriptionRef string
	Subscription    *Subscription
}

type Subscription struct {
	Ref               string
	Status            string
	CancelAtPeriodEnd bool
	CurrentPeriodEnd  time.Time
}

func (s *Subscription) Trialing() bool {
	return s != nil && s.Status == StatusTrialing
}

type Price struct {
	ID        string
	ProductID string
	Amount    int64
	Currency  string
	Interval  string
}

// PriceRequest creates a recurring price. When ProductID is empty a product
// named ProductName is created alongside it.
type PriceRequest struct {
	ProductID   string
	ProductName string
	Amount      int64
	Currency    string
	Interval    string
	PackID      string
}
