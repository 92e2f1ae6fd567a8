package testutil

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"

	"voiceclone-backend/internal/domain/access"
	"voiceclone-backend/internal/domain/plans"
	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/domain/users"
)

// TestUser inserts a local user.
func TestUser(t *testing.T, db *gorm.DB, opts ...func(*users.User)) *users.User {
	t.Helper()

	u := &users.User{
		Name:         "Test User",
		Email:        fmt.Sprintf("test_%d@example.com", time.Now().UnixNano()),
		AuthProvider: users.ProviderLocal,
		Role:         access.RoleUser,
		IsVerified:   true,
	}
	for _, opt := range opts {
		opt(u)
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return u
}

// TestPlan inserts a plan. The default is an active paid monthly plan.
func TestPlan(t *testing.T, db *gorm.DB, packID string, opts ...func(*plans.Plan)) *plans.Plan {
	t.Helper()

	price := "price_" + packID
	p := &plans.Plan{
		PackID:        packID,
		Amount:        999,
		Currency:      "usd",
		Interval:      plans.Monthly,
		Status:        plans.StatusActive,
		TrialDays:     7,
		StripePriceID: &price,
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("Failed to create test plan: %v", err)
	}
	return p
}

// FreePlan inserts the zero-amount signup plan.
func FreePlan(t *testing.T, db *gorm.DB) *plans.Plan {
	t.Helper()

	p := plans.NewFreePlan()
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("Failed to create free plan: %v", err)
	}
	return &p
}

// TestSubscription inserts a subscription row directly.
func TestSubscription(t *testing.T, db *gorm.DB, s subscriptions.Subscription) *subscriptions.Subscription {
	t.Helper()

	s.StartDate = s.StartDate.UTC()
	s.EndDate = s.EndDate.UTC()
	s.Plan = nil
	if err := db.Create(&s).Error; err != nil {
		t.Fatalf("Failed to create test subscription: %v", err)
	}
	return &s
}

func Ref(s string) *string { return &s }
