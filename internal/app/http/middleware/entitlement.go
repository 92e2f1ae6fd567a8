package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
)

type EntitlementChecker interface {
	Entitled(ctx context.Context, userID uint) (bool, error)
}

// RequireEntitlement lets the request through only while the caller holds a
// subscription whose period has not ended.
func RequireEntitlement(checker EntitlementChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := httpx.MustPrincipal(c)
		if !ok {
			return
		}

		entitled, err := checker.Entitled(c.Request.Context(), p.UserID)
		if err != nil {
			httpx.Fail(c, err)
			return
		}
		if !entitled {
			httpx.Fail(c, apperr.Forbidden("Subscription not found or expired"))
			return
		}
		c.Next()
	}
}
