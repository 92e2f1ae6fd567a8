package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"voiceclone-backend/internal/infra/stripe"
)

var ErrGatewayDown = errors.New("gateway unavailable")

// FakeGateway is an in-memory stripe.Gateway. Set Fail to make every call
// return ErrGatewayDown.
type FakeGateway struct {
	mu sync.Mutex

	Fail bool

	Sessions      map[string]*stripe.CheckoutSession
	Subscriptions map[string]*stripe.Subscription
	Prices        map[string]*stripe.Price
	Defaults      map[string]string

	Canceled []string
	Updated  []string
	Created  []stripe.CheckoutRequest

	seq int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		Sessions:      map[string]*stripe.CheckoutSession{},
		Subscriptions: map[string]*stripe.Subscription{},
		Prices:        map[string]*stripe.Price{},
		Defaults:      map[string]string{},
	}
}

// PutSubscription seeds the gateway-side view of a subscription.
func (g *FakeGateway) PutSubscription(s stripe.Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Subscriptions[s.Ref] = &s
}

func (g *FakeGateway) CreateCheckoutSession(_ context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrGatewayDown
	}
	g.seq++
	s := &stripe.CheckoutSession{
		ID:     fmt.Sprintf("cs_test_%d", g.seq),
		URL:    fmt.Sprintf("https://checkout.test/cs_test_%d", g.seq),
		UserID: req.UserID,
		PackID: req.PackID,
	}
	g.Sessions[s.ID] = s
	g.Created = append(g.Created, req)
	return s, nil
}

func (g *FakeGateway) RetrieveSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrGatewayDown
	}
	s, ok := g.Sessions[id]
	if !ok {
		return nil, fmt.Errorf("no such checkout session: %s", id)
	}
	out := *s
	if sub, ok := g.Subscriptions[s.SubscriptionRef]; ok {
		cp := *sub
		out.Subscription = &cp
	}
	return &out, nil
}

func (g *FakeGateway) RetrieveSubscription(_ context.Context, ref string) (*stripe.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrGatewayDown
	}
	s, ok := g.Subscriptions[ref]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", ref)
	}
	out := *s
	return &out, nil
}

func (g *FakeGateway) UpdateSubscription(_ context.Context, ref string, cancelAtPeriodEnd bool) (*stripe.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrGatewayDown
	}
	s, ok := g.Subscriptions[ref]
	if !ok {
		return nil, fmt.Errorf("no such subscription: %s", ref)
	}
	s.CancelAtPeriodEnd = cancelAtPeriodEnd
	g.Updated = append(g.Updated, ref)
	out := *s
	return &out, nil
}

func (g *FakeGateway) CancelSubscription(_ context.Context, ref string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return ErrGatewayDown
	}
	if s, ok := g.Subscriptions[ref]; ok {
		s.Status = stripe.StatusCanceled
	}
	g.Canceled = append(g.Canceled, ref)
	return nil
}

func (g *FakeGateway) RetrievePrice(_ context.Context, id string) (*stripe.Price, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrGatewayDown
	}
	p, ok := g.Prices[id]
	if !ok {
		return nil, fmt.Errorf("no such price: %s", id)
	}
	out := *p
	return &out, nil
}

func (g *FakeGateway) CreatePrice(_ context.Context, req stripe.PriceRequest) (*stripe.Price, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return nil, ErrGatewayDown
	}
	g.seq++
	product := req.ProductID
	if product == "" {
		product = fmt.Sprintf("prod_test_%d", g.seq)
	}
	p := &stripe.Price{
		ID:        fmt.Sprintf("price_test_%d", g.seq),
		ProductID: product,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Interval:  req.Interval,
	}
	g.Prices[p.ID] = p
	out := *p
	return &out, nil
}

func (g *FakeGateway) SetDefaultPrice(_ context.Context, productID, priceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Fail {
		return ErrGatewayDown
	}
	g.Defaults[productID] = priceID
	return nil
}

// CompleteSession links a session to a subscription, as paying does.
func (g *FakeGateway) CompleteSession(sessionID string, sub stripe.Subscription) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.Sessions[sessionID]; ok {
		s.SubscriptionRef = sub.Ref
		s.PaymentStatus = "paid"
	}
	g.Subscriptions[sub.Ref] = &sub
}
