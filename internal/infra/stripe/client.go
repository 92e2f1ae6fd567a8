package stripe

import (
	"context"
	"fmt"
	"strconv"
	"time"

	sdk "github.com/stripe/stripe-go/v75"
	"github.com/stripe/stripe-go/v75/client"
)

const (
	metaUserID = "userId"
	metaPackID = "packId"
)

// Client is the stripe-go backed Gateway.
type Client struct {
	api *client.API
}

func NewClient(secretKey string) *Client {
	return &Client{api: client.New(secretKey, nil)}
}

// NewClientWithBackends is used by tests that point the SDK at a local server.
func NewClientWithBackends(secretKey string, backends *sdk.Backends) *Client {
	return &Client{api: client.New(secretKey, backends)}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	userID := strconv.FormatUint(uint64(req.UserID), 10)

	params := &sdk.CheckoutSessionParams{
		SuccessURL: sdk.String(req.SuccessURL),
		CancelURL:  sdk.String(req.CancelURL),
		Mode:       sdk.String(string(sdk.CheckoutSessionModeSubscription)),
		LineItems: []*sdk.CheckoutSessionLineItemParams{
			{Price: sdk.String(req.PriceID), Quantity: sdk.Int64(1)},
		},
		ClientReferenceID: sdk.String(userID),
		SubscriptionData: &sdk.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metaUserID: userID,
				metaPackID: req.PackID,
			},
		},
	}
	if req.Email != "" {
		params.CustomerEmail = sdk.String(req.Email)
	}
	if req.TrialDays > 0 {
		params.SubscriptionData.TrialPeriodDays = sdk.Int64(int64(req.TrialDays))
	}
	params.AddMetadata(metaUserID, userID)
	params.AddMetadata(metaPackID, req.PackID)
	params.Context = ctx

	s, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return toCheckoutSession(s), nil
}

func (c *Client) RetrieveSession(ctx context.Context, id string) (*CheckoutSession, error) {
	params := &sdk.CheckoutSessionParams{}
	params.AddExpand("subscription")
	params.Context = ctx

	s, err := c.api.CheckoutSessions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", id, err)
	}
	return toCheckoutSession(s), nil
}

func (c *Client) RetrieveSubscription(ctx context.Context, ref string) (*Subscription, error) {
	params := &sdk.SubscriptionParams{}
	params.Context = ctx

	s, err := c.api.Subscriptions.Get(ref, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription %s: %w", ref, err)
	}
	return toSubscription(s), nil
}

func (c *Client) UpdateSubscription(ctx context.Context, ref string, cancelAtPeriodEnd bool) (*Subscription, error) {
	params := &sdk.SubscriptionParams{CancelAtPeriodEnd: sdk.Bool(cancelAtPeriodEnd)}
	params.Context = ctx

	s, err := c.api.Subscriptions.Update(ref, params)
	if err != nil {
		return nil, fmt.Errorf("update subscription %s: %w", ref, err)
	}
	return toSubscription(s), nil
}

func (c *Client) CancelSubscription(ctx context.Context, ref string) error {
	params := &sdk.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := c.api.Subscriptions.Cancel(ref, params); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", ref, err)
	}
	return nil
}

func (c *Client) RetrievePrice(ctx context.Context, id string) (*Price, error) {
	params := &sdk.PriceParams{}
	params.Context = ctx

	p, err := c.api.Prices.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve price %s: %w", id, err)
	}
	return toPrice(p), nil
}

func (c *Client) CreatePrice(ctx context.Context, req PriceRequest) (*Price, error) {
	params := &sdk.PriceParams{
		Currency:   sdk.String(req.Currency),
		UnitAmount: sdk.Int64(req.Amount),
		Recurring: &sdk.PriceRecurringParams{
			Interval: sdk.String(req.Interval),
		},
	}
	if req.ProductID != "" {
		params.Product = sdk.String(req.ProductID)
	} else {
		params.ProductData = &sdk.PriceProductDataParams{Name: sdk.String(req.ProductName)}
	}
	if req.PackID != "" {
		params.AddMetadata(metaPackID, req.PackID)
	}
	params.Context = ctx

	p, err := c.api.Prices.New(params)
	if err != nil {
		return nil, fmt.Errorf("create price: %w", err)
	}
	return toPrice(p), nil
}

func (c *Client) SetDefaultPrice(ctx context.Context, productID, priceID string) error {
	params := &sdk.ProductParams{DefaultPrice: sdk.String(priceID)}
	params.Context = ctx

	if _, err := c.api.Products.Update(productID, params); err != nil {
		return fmt.Errorf("set default price on %s: %w", productID, err)
	}
	return nil
}

func toCheckoutSession(s *sdk.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            s.ID,
		URL:           s.URL,
		PaymentStatus: string(s.PaymentStatus),
		UserID:        userIDFrom(s.Metadata, s.ClientReferenceID),
	}
	if s.Metadata != nil {
		out.PackID = s.Metadata[metaPackID]
	}
	if s.Subscription != nil && s.Subscription.ID != "" {
		out.SubscriptionRef = s.Subscription.ID
		// Expanded objects carry a status; bare references do not.
		if s.Subscription.Status != "" {
			out.Subscription = toSubscription(s.Subscription)
		}
	}
	return out
}

func toSubscription(s *sdk.Subscription) *Subscription {
	out := &Subscription{
		Ref:               s.ID,
		Status:            NormalizeStatus(string(s.Status)),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.CurrentPeriodEnd > 0 {
		out.CurrentPeriodEnd = time.Unix(s.CurrentPeriodEnd, 0).UTC()
	}
	return out
}

func toPrice(p *sdk.Price) *Price {
	out := &Price{
		ID:       p.ID,
		Amount:   p.UnitAmount,
		Currency: string(p.Currency),
	}
	if p.Product != nil {
		out.ProductID = p.Product.ID
	}
	if p.Recurring != nil {
		out.Interval = string(p.Recurring.Interval)
	}
	return out
}

func userIDFrom(md map[string]string, clientRef string) uint {
	s := ""
	if md != nil {
		s = md[metaUserID]
	}
	if s == "" {
		s = clientRef
	}
	if s == "" {
		return 0
	}
	uid, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0
	}
	return uint(uid)
}
