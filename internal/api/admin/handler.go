package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
	"voiceclone-backend/internal/domain/access"
	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/domain/users"
	"voiceclone-backend/internal/sweep"
)

type SweepRunner interface {
	RunOnce(ctx context.Context, now time.Time) sweep.Report
}

type Handler struct {
	db    *gorm.DB
	sweep SweepRunner
	now   func() time.Time
}

func NewHandler(db *gorm.DB, runner SweepRunner) *Handler {
	return &Handler{db: db, sweep: runner, now: time.Now}
}

type AdminUser struct {
	ID         uint                `json:"id"`
	Name       string              `json:"name"`
	Email      string              `json:"email"`
	Role       access.Role         `json:"role"`
	IsVerified bool                `json:"is_verified"`
	PackID     *string             `json:"pack_id,omitempty"`
	State      subscriptions.State `json:"state"`
	StripeSub  *string             `json:"stripe_subscription_id,omitempty"`
	Start      *time.Time          `json:"subscription_start,omitempty"`
	End        *time.Time          `json:"subscription_end,omitempty"`
}

func toAdminUser(u users.User, sub *subscriptions.Subscription, now time.Time) AdminUser {
	out := AdminUser{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       u.Principal().Role,
		IsVerified: u.IsVerified,
		State:      subscriptions.Classify(sub, now),
	}
	if sub != nil {
		out.StripeSub = sub.StripeSubscriptionID
		start, end := sub.StartDate, sub.EndDate
		out.Start, out.End = &start, &end
		if sub.Plan != nil {
			out.PackID = &sub.Plan.PackID
		}
	}
	return out
}

// GET /admin/users
func (h *Handler) ListAllUsers(c *gin.Context) {
	ctx := c.Request.Context()

	var list []users.User
	if err := h.db.WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		httpx.Fail(c, apperr.Internal("Failed to load users", err))
		return
	}
	var subs []subscriptions.Subscription
	if err := h.db.WithContext(ctx).Preload("Plan").Find(&subs).Error; err != nil {
		httpx.Fail(c, apperr.Internal("Failed to load subscriptions", err))
		return
	}
	byUser := make(map[uint]*subscriptions.Subscription, len(subs))
	for i := range subs {
		byUser[subs[i].UserID] = &subs[i]
	}

	now := h.now().UTC()
	out := make([]AdminUser, 0, len(list))
	for _, u := range list {
		out = append(out, toAdminUser(u, byUser[u.ID], now))
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "users": out})
}

// GET /admin/user/:id
func (h *Handler) GetUserDetails(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		httpx.Fail(c, apperr.Validation("invalid user id"))
		return
	}

	ctx := c.Request.Context()
	var user users.User
	err = h.db.WithContext(ctx).First(&user, uint(id)).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.Fail(c, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to load user", err))
		return
	}

	var sub *subscriptions.Subscription
	var row subscriptions.Subscription
	err = h.db.WithContext(ctx).Preload("Plan").Where("user_id = ?", user.ID).First(&row).Error
	switch {
	case err == nil:
		sub = &row
	case !errors.Is(err, gorm.ErrRecordNotFound):
		httpx.Fail(c, apperr.Internal("failed to load subscription", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    toAdminUser(user, sub, h.now().UTC()),
		"access":  access.ComputePolicy(h.now().UTC(), sub),
	})
}

// POST /admin/sweep runs the daily notification sweep now.
func (h *Handler) RunSweep(c *gin.Context) {
	report := h.sweep.RunOnce(c.Request.Context(), h.now().UTC())
	c.JSON(http.StatusOK, gin.H{"success": true, "report": report})
}
