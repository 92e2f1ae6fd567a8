// Package catalog manages purchasable plans and keeps their gateway prices
// in step with the local amount.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/domain/plans"
	"voiceclone-backend/internal/infra/stripe"
)

// Input is the admin payload for creating or updating a plan.
type Input struct {
	PackID           string `json:"packId"`
	Amount           *int64 `json:"amount"`
	Currency         string `json:"currency"`
	SubscriptionType string `json:"subscriptionType"`
	FreeTrialDays    *int   `json:"freeTrialDays"`
}

type Service struct {
	db      *gorm.DB
	gateway stripe.Gateway
	log     *slog.Logger
}

func NewService(db *gorm.DB, gateway stripe.Gateway, log *slog.Logger) *Service {
	return &Service{db: db, gateway: gateway, log: log}
}

func (s *Service) Create(ctx context.Context, in Input) (*plans.Plan, error) {
	p := plans.Plan{
		PackID:   strings.TrimSpace(in.PackID),
		Currency: "usd",
		Status:   plans.StatusActive,
	}
	if err := apply(&p, in); err != nil {
		return nil, err
	}
	if in.Amount == nil {
		return nil, apperr.Validation("amount is required")
	}
	if err := p.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	existing, err := s.find(ctx, p.PackID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("package already exists")
	}

	if !p.IsFree() {
		price, err := s.gateway.CreatePrice(ctx, stripe.PriceRequest{
			ProductName: p.PackID,
			Amount:      p.Amount,
			Currency:    p.Currency,
			Interval:    p.Interval.StripeInterval(),
			PackID:      p.PackID,
		})
		if err != nil {
			return nil, apperr.Upstream("failed to create gateway price", err)
		}
		p.StripePriceID = &price.ID
	}

	if err := s.db.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, apperr.Internal("failed to save package", err)
	}
	s.log.Info("plan created", "pack_id", p.PackID, "amount", p.Amount, "interval", p.Interval)
	return &p, nil
}

// Update changes a plan in place. A new amount, currency or interval on a
// paid plan creates a new gateway price on the same product, makes it the
// product default and repoints the plan; live subscriptions keep what they
// captured.
func (s *Service) Update(ctx context.Context, packID string, in Input) (*plans.Plan, error) {
	p, err := s.mustFind(ctx, packID)
	if err != nil {
		return nil, err
	}

	before := *p
	if err := apply(p, in); err != nil {
		return nil, err
	}
	p.PackID = before.PackID
	if err := p.Validate(); err != nil {
		return nil, apperr.Validation(err.Error())
	}

	priceChanged := p.Amount != before.Amount || p.Currency != before.Currency || p.Interval != before.Interval
	if priceChanged && !p.IsFree() {
		priceID, err := s.repointPrice(ctx, p)
		if err != nil {
			return nil, err
		}
		p.StripePriceID = &priceID
		s.log.Info("plan price repointed", "pack_id", p.PackID, "old_amount", before.Amount, "amount", p.Amount, "price_id", priceID)
	}

	err = s.db.WithContext(ctx).Model(&plans.Plan{}).Where("id = ?", p.ID).Updates(map[string]any{
		"amount":           p.Amount,
		"currency":         p.Currency,
		"billing_interval": p.Interval,
		"trial_days":       p.TrialDays,
		"stripe_price_id":  p.StripePriceID,
	}).Error
	if err != nil {
		return nil, apperr.Internal("failed to update package", err)
	}
	return p, nil
}

func (s *Service) repointPrice(ctx context.Context, p *plans.Plan) (string, error) {
	req := stripe.PriceRequest{
		ProductName: p.PackID,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Interval:    p.Interval.StripeInterval(),
		PackID:      p.PackID,
	}
	if p.StripePriceID != nil && *p.StripePriceID != "" {
		current, err := s.gateway.RetrievePrice(ctx, *p.StripePriceID)
		if err != nil {
			return "", apperr.Upstream("failed to load current gateway price", err)
		}
		req.ProductID = current.ProductID
	}

	price, err := s.gateway.CreatePrice(ctx, req)
	if err != nil {
		return "", apperr.Upstream("failed to create gateway price", err)
	}
	if err := s.gateway.SetDefaultPrice(ctx, price.ProductID, price.ID); err != nil {
		return "", apperr.Upstream("failed to set default gateway price", err)
	}
	return price.ID, nil
}

func (s *Service) SetStatus(ctx context.Context, packID string, status plans.Status) (*plans.Plan, error) {
	p, err := s.mustFind(ctx, packID)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&plans.Plan{}).Where("id = ?", p.ID).Update("status", status).Error; err != nil {
		return nil, apperr.Internal("failed to update package status", err)
	}
	p.Status = status
	s.log.Info("plan status changed", "pack_id", p.PackID, "status", status)
	return p, nil
}

func (s *Service) Suspend(ctx context.Context, packID string) (*plans.Plan, error) {
	return s.SetStatus(ctx, packID, plans.StatusSuspended)
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]plans.Plan, error) {
	var out []plans.Plan
	q := s.db.WithContext(ctx).Model(&plans.Plan{})
	if activeOnly {
		q = q.Where("status = ?", plans.StatusActive)
	}
	if err := q.Order("amount ASC, id ASC").Find(&out).Error; err != nil {
		return nil, apperr.Internal("failed to load packages", err)
	}
	return out, nil
}

// Get returns a plan by pack id, or a not-found error.
func (s *Service) Get(ctx context.Context, packID string) (*plans.Plan, error) {
	return s.mustFind(ctx, packID)
}

// Purchasable returns an Active plan that can be checked out.
func (s *Service) Purchasable(ctx context.Context, packID string) (*plans.Plan, error) {
	p, err := s.find(ctx, packID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive() {
		return nil, apperr.NotFound("package not found or suspended")
	}
	return p, nil
}

// EnsureFree returns the signup plan, creating it on first use.
func (s *Service) EnsureFree(ctx context.Context) (*plans.Plan, error) {
	free := plans.NewFreePlan()
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "pack_id"}},
		DoNothing: true,
	}).Create(&free).Error
	if err != nil {
		return nil, apperr.Internal("failed to ensure free package", err)
	}
	return s.mustFind(ctx, plans.FreePackID)
}

func (s *Service) find(ctx context.Context, packID string) (*plans.Plan, error) {
	var p plans.Plan
	err := s.db.WithContext(ctx).Where("pack_id = ?", strings.TrimSpace(packID)).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("failed to load package", err)
	}
	return &p, nil
}

func (s *Service) mustFind(ctx context.Context, packID string) (*plans.Plan, error) {
	p, err := s.find(ctx, packID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound(fmt.Sprintf("package %s not found", packID))
	}
	return p, nil
}

func apply(p *plans.Plan, in Input) error {
	if in.Amount != nil {
		p.Amount = *in.Amount
	}
	if c := strings.ToLower(strings.TrimSpace(in.Currency)); c != "" {
		p.Currency = c
	}
	if in.SubscriptionType != "" {
		iv, ok := plans.ParseInterval(in.SubscriptionType)
		if !ok {
			return apperr.Validation("subscriptionType must be Monthly or Yearly")
		}
		p.Interval = iv
	}
	if in.FreeTrialDays != nil {
		p.TrialDays = *in.FreeTrialDays
	}
	return nil
}
