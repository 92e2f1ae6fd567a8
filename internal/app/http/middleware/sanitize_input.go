package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/microcosm-cc/bluemonday"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
)

// SanitizeAndCleanInputMiddleware strips markup from every string in a JSON
// request body, nested values included.
func SanitizeAndCleanInputMiddleware() gin.HandlerFunc {
	policy := bluemonday.StrictPolicy()

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost &&
			c.Request.Method != http.MethodPut &&
			c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}
		if ct := c.ContentType(); ct != "" && !strings.Contains(ct, "json") {
			c.Next()
			return
		}

		buf, err := io.ReadAll(c.Request.Body)
		if err != nil {
			httpx.Fail(c, apperr.Validation("Invalid body"))
			return
		}
		if len(bytes.TrimSpace(buf)) == 0 {
			c.Request.Body = io.NopCloser(bytes.NewReader(buf))
			c.Next()
			return
		}

		var body any
		if err := json.Unmarshal(buf, &body); err != nil {
			httpx.Fail(c, apperr.Validation("Malformed JSON"))
			return
		}

		newBody, err := json.Marshal(sanitize(policy, body))
		if err != nil {
			httpx.Fail(c, apperr.Internal("failed to encode body", err))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(newBody))
		c.Request.ContentLength = int64(len(newBody))

		c.Next()
	}
}

func sanitize(policy *bluemonday.Policy, v any) any {
	switch t := v.(type) {
	case string:
		return policy.Sanitize(t)
	case map[string]any:
		for k, item := range t {
			t[k] = sanitize(policy, item)
		}
		return t
	case []any:
		for i, item := range t {
			t[i] = sanitize(policy, item)
		}
		return t
	default:
		return v
	}
}
