package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
	"voiceclone-backend/internal/domain/access"
	"voiceclone-backend/internal/pkg/jwt"
)

// AuthMiddleware authenticates the bearer access token and stores the caller
// as an access.Principal in the request context.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			httpx.Fail(c, apperr.Unauthorized("Authorization header missing"))
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
			httpx.Fail(c, apperr.Unauthorized("Bearer token malformed"))
			return
		}

		claims, err := jwt.ParseToken(strings.TrimSpace(tokenString), secret, jwt.KindAccess)
		if errors.Is(err, jwt.ErrExpiredToken) {
			httpx.Fail(c, apperr.Unauthorized("token expired"))
			return
		}
		if err != nil {
			httpx.Fail(c, apperr.Unauthorized("Invalid or expired token"))
			return
		}

		p, err := claims.Principal()
		if err != nil || p.UserID == 0 {
			httpx.Fail(c, apperr.Unauthorized("Invalid token claims"))
			return
		}

		httpx.SetPrincipal(c, p)
		c.Next()
	}
}

func RequireRole(role access.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := httpx.MustPrincipal(c)
		if !ok {
			return
		}
		if p.Role != role {
			httpx.Fail(c, apperr.Forbidden("Access denied"))
			return
		}
		c.Next()
	}
}
