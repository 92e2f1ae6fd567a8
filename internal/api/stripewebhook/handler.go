package stripewebhook

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/reconciler"
)

const maxBodyBytes = 65536

type Reconciler interface {
	Handle(ctx context.Context, payload []byte, signature string) (reconciler.Outcome, error)
}

type Handler struct {
	reconciler Reconciler
}

func NewHandler(r Reconciler) *Handler {
	return &Handler{reconciler: r}
}

// POST /subscription/stripe
//
// Answers 200 or 400 only; a 400 makes the gateway redeliver.
func (h *Handler) StripeWebhook(c *gin.Context) {
	payload, err := readStripeBody(c, maxBodyBytes)
	if err != nil {
		reject(c, apperr.Validation("Error reading request body"))
		return
	}

	outcome, err := h.reconciler.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		reject(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "status": outcome})
}

func reject(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   apperr.KindOf(err),
		"message": apperr.MessageOf(err),
	})
}

func readStripeBody(c *gin.Context, maxBytes int64) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
	return io.ReadAll(c.Request.Body)
}
