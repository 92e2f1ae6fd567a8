package notifications

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
	"voiceclone-backend/internal/domain/notifications"
)

type Inbox interface {
	List(ctx context.Context, userID uint, unreadOnly bool) ([]notifications.Notification, error)
	MarkRead(ctx context.Context, userID, id uint) (*notifications.Notification, error)
}

type Handler struct {
	inbox Inbox
}

func NewHandler(inbox Inbox) *Handler {
	return &Handler{inbox: inbox}
}

// GET /notifications?unread=true
func (h *Handler) List(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	list, err := h.inbox.List(c.Request.Context(), p.UserID, unreadOnly)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notifications": list})
}

// PATCH /notifications/:id/read
func (h *Handler) MarkRead(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		httpx.Fail(c, apperr.Validation("invalid notification id"))
		return
	}

	n, err := h.inbox.MarkRead(c.Request.Context(), p.UserID, uint(id))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "notification": n})
}
