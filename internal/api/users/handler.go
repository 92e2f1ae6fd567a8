package users

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
	"voiceclone-backend/internal/domain/access"
	"voiceclone-backend/internal/domain/users"
)

type AccessReader interface {
	Access(ctx context.Context, userID uint) (access.Policy, error)
}

type Handler struct {
	db     *gorm.DB
	access AccessReader
}

func NewHandler(db *gorm.DB, access AccessReader) *Handler {
	return &Handler{db: db, access: access}
}

type UserDTO struct {
	ID           uint        `json:"id"`
	Name         string      `json:"name"`
	Email        string      `json:"email"`
	Role         access.Role `json:"role"`
	AuthProvider string      `json:"authProvider"`
	IsVerified   bool        `json:"isVerified"`
}

type MeResponse struct {
	User   UserDTO       `json:"user"`
	Access access.Policy `json:"access"`
}

// GET /me
func (h *Handler) GetCurrentUser(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var user users.User
	err := h.db.WithContext(ctx).First(&user, p.UserID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		httpx.Fail(c, apperr.NotFound("User not found"))
		return
	}
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to load user", err))
		return
	}

	policy, err := h.access.Access(ctx, user.ID)
	if err != nil {
		httpx.Fail(c, err)
		return
	}

	c.JSON(http.StatusOK, MeResponse{
		User: UserDTO{
			ID:           user.ID,
			Name:         user.Name,
			Email:        user.Email,
			Role:         user.Principal().Role,
			AuthProvider: user.AuthProvider,
			IsVerified:   user.IsVerified,
		},
		Access: policy,
	})
}
