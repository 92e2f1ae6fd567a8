package billing

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"voiceclone-backend/internal/app/http/httpx"
	"voiceclone-backend/internal/domain/access"
	"voiceclone-backend/internal/domain/subscriptions"
	"voiceclone-backend/internal/subscription"
)

type Subscriptions interface {
	Initialize(ctx context.Context, userID uint) (*subscriptions.Subscription, error)
	CreateCheckoutSession(ctx context.Context, p access.Principal, packID string) (*subscription.Checkout, error)
	ConfirmCheckout(ctx context.Context, userID uint, sessionID string) (*subscriptions.Subscription, error)
	Cancel(ctx context.Context, userID uint) (*subscription.CancelResult, error)
	Renew(ctx context.Context, userID uint) (*subscriptions.Subscription, error)
	Details(ctx context.Context, userID uint) (*subscription.Details, error)
	Access(ctx context.Context, userID uint) (access.Policy, error)
}

type Handler struct {
	subs Subscriptions
}

func NewHandler(subs Subscriptions) *Handler {
	return &Handler{subs: subs}
}

// POST /subscription/initialize
func (h *Handler) Initialize(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	sub, err := h.subs.Initialize(c.Request.Context(), p.UserID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "subscription": toDTO(sub)})
}

// POST /subscription/stripe-session
func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	var input struct {
		PackID string `json:"packId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	out, err := h.subs.CreateCheckoutSession(c.Request.Context(), p, input.PackID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessionId": out.SessionID, "url": out.URL})
}

// GET /subscription/stripe-success?session_id=
func (h *Handler) StripeSuccess(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	sub, err := h.subs.ConfirmCheckout(c.Request.Context(), p.UserID, c.Query("session_id"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	message := "Subscription started!"
	if sub.TrialActive {
		message = "Subscription started with trial period!"
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": message, "subscription": toDTO(sub)})
}

// GET /subscription/stripe-cancel
func (h *Handler) StripeCancel(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": "Checkout was canceled. No charge was made."})
}

// POST /subscription/cancel
func (h *Handler) Cancel(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	res, err := h.subs.Cancel(c.Request.Context(), p.UserID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	if res.Deleted {
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Subscription canceled successfully.", "deleted": true})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Subscription will end with the current billing period.",
		"deleted": false,
		"endsAt":  res.EndsAt,
	})
}

// PUT /subscription/renew
func (h *Handler) Renew(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	sub, err := h.subs.Renew(c.Request.Context(), p.UserID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": toDTO(sub)})
}

// GET /subscription/details
func (h *Handler) Details(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	d, err := h.subs.Details(c.Request.Context(), p.UserID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "subscription": d})
}

// GET /subscription/access
func (h *Handler) Access(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	policy, err := h.subs.Access(c.Request.Context(), p.UserID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"entitled":     policy.Entitled,
		"state":        policy.State,
		"endsAt":       policy.EndsAt,
		"capabilities": policy.Capabilities,
	})
}
