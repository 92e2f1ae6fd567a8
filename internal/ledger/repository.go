// Package ledger is the authoritative store of subscriptions, one row per
// user. Every mutation is a single statement so concurrent callers cannot
// break the one-subscription-per-user rule.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"voiceclone-backend/internal/domain/subscriptions"
)

// Cond narrows an UPDATE beyond the primary key.
type Cond struct {
	Query string
	Args  []any
}

var (
	// WhileTrialing matches only rows still flagged as a trial.
	WhileTrialing = Cond{Query: "trial_active = ?", Args: []any{true}}
	// WhileNotTrialing matches only rows past their trial.
	WhileNotTrialing = Cond{Query: "trial_active = ?", Args: []any{false}}
)

// WhileRef matches only rows still linked to the given gateway subscription.
func WhileRef(ref string) Cond {
	return Cond{Query: "stripe_subscription_id = ?", Args: []any{ref}}
}

var lifecycleColumns = []string{
	"plan_id",
	"start_date",
	"end_date",
	"trial_active",
	"stripe_subscription_id",
	"cancel_at_period_end",
	"amount_paid",
	"updated_at",
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByUser returns the user's subscription with its plan, or nil when the
// user has none.
func (r *Repository) FindByUser(ctx context.Context, userID uint) (*subscriptions.Subscription, error) {
	return r.first(ctx, "user_id = ?", userID)
}

// FindByRef looks a subscription up by its gateway reference; nil when unknown.
func (r *Repository) FindByRef(ctx context.Context, ref string) (*subscriptions.Subscription, error) {
	if ref == "" {
		return nil, nil
	}
	return r.first(ctx, "stripe_subscription_id = ?", ref)
}

func (r *Repository) first(ctx context.Context, query string, args ...any) (*subscriptions.Subscription, error) {
	var s subscriptions.Subscription
	err := r.db.WithContext(ctx).Preload("Plan").Where(query, args...).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}
	return &s, nil
}

// InsertIfAbsent creates s unless the user already has a subscription.
// It reports whether a row was written.
func (r *Repository) InsertIfAbsent(ctx context.Context, s *subscriptions.Subscription) (bool, error) {
	normalize(s)
	tx := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(s)
	if tx.Error != nil {
		return false, fmt.Errorf("insert subscription: %w", tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// UpsertByUser writes s as the user's only subscription, replacing the
// lifecycle columns of an existing row in the same statement.
func (r *Repository) UpsertByUser(ctx context.Context, s *subscriptions.Subscription) error {
	normalize(s)
	err := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns(lifecycleColumns),
		}).
		Create(s).Error
	if err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}
	return nil
}

// Save writes the lifecycle columns of an existing row. It never inserts, so
// a row deleted concurrently stays deleted. false means nothing matched.
func (r *Repository) Save(ctx context.Context, s *subscriptions.Subscription, conds ...Cond) (bool, error) {
	normalize(s)
	q := r.db.WithContext(ctx).Model(&subscriptions.Subscription{}).Where("id = ?", s.ID)
	for _, c := range conds {
		q = q.Where(c.Query, c.Args...)
	}
	tx := q.Updates(map[string]any{
		"plan_id":                s.PlanID,
		"start_date":             s.StartDate,
		"end_date":               s.EndDate,
		"trial_active":           s.TrialActive,
		"stripe_subscription_id": s.StripeSubscriptionID,
		"cancel_at_period_end":   s.CancelAtPeriodEnd,
		"amount_paid":            s.AmountPaid,
	})
	if tx.Error != nil {
		return false, fmt.Errorf("update subscription %d: %w", s.ID, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (r *Repository) DeleteByUser(ctx context.Context, userID uint) (bool, error) {
	tx := r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(&subscriptions.Subscription{})
	if tx.Error != nil {
		return false, fmt.Errorf("delete subscription of user %d: %w", userID, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

func (r *Repository) DeleteByRef(ctx context.Context, ref string) (bool, error) {
	if ref == "" {
		return false, nil
	}
	tx := r.db.WithContext(ctx).Where("stripe_subscription_id = ?", ref).Delete(&subscriptions.Subscription{})
	if tx.Error != nil {
		return false, fmt.Errorf("delete subscription %s: %w", ref, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}

// Entitled is the hot-path access check: one indexed read, no joins.
func (r *Repository) Entitled(ctx context.Context, userID uint, now time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&subscriptions.Subscription{}).
		Where("user_id = ? AND end_date > ?", userID, now.UTC()).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("entitlement check: %w", err)
	}
	return n > 0, nil
}

// EndingBetween lists subscriptions whose end date is in [from, to) with the
// given trial flag, oldest id first.
func (r *Repository) EndingBetween(ctx context.Context, from, to time.Time, trialing bool) ([]subscriptions.Subscription, error) {
	var out []subscriptions.Subscription
	err := r.db.WithContext(ctx).
		Where("end_date >= ? AND end_date < ? AND trial_active = ?", from.UTC(), to.UTC(), trialing).
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list subscriptions ending between %s and %s: %w", from.Format(time.RFC3339), to.Format(time.RFC3339), err)
	}
	return out, nil
}

func normalize(s *subscriptions.Subscription) {
	s.StartDate = s.StartDate.UTC()
	s.EndDate = s.EndDate.UTC()
}
