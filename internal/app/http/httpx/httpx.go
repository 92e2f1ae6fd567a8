// Package httpx holds the response and request-context helpers shared by
// every handler.
package httpx

import (
	"github.com/gin-gonic/gin"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/domain/access"
)

const principalKey = "principal"

// Fail aborts the request with the error envelope for err. Errors outside
// the apperr taxonomy become a generic 500.
func Fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	c.AbortWithStatusJSON(apperr.HTTPStatus(kind), gin.H{
		"success": false,
		"error":   kind,
		"message": apperr.MessageOf(err),
	})
}

// BadRequest reports a request that did not bind.
func BadRequest(c *gin.Context, err error) {
	Fail(c, apperr.Validation(err.Error()))
}

func SetPrincipal(c *gin.Context, p access.Principal) {
	c.Set(principalKey, p)
}

// CurrentPrincipal returns the caller set by the auth middleware.
func CurrentPrincipal(c *gin.Context) (access.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return access.Principal{}, false
	}
	p, ok := v.(access.Principal)
	return p, ok
}

// MustPrincipal is CurrentPrincipal for routes behind the auth middleware.
// It writes the 401 itself; callers return when ok is false.
func MustPrincipal(c *gin.Context) (access.Principal, bool) {
	p, ok := CurrentPrincipal(c)
	if !ok {
		Fail(c, apperr.Unauthorized("authentication required"))
	}
	return p, ok
}
