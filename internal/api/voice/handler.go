package voice

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
	"voiceclone-backend/internal/infra/redisstore"
)

type JobQueue interface {
	Push(ctx context.Context, job *redisstore.VoiceJob) error
	Length(ctx context.Context) (int64, error)
}

type Handler struct {
	queue JobQueue
	log   *slog.Logger
}

func NewHandler(queue JobQueue, log *slog.Logger) *Handler {
	return &Handler{queue: queue, log: log}
}

// POST /voice/clone
func (h *Handler) Clone(c *gin.Context) {
	p, ok := httpx.MustPrincipal(c)
	if !ok {
		return
	}

	var input struct {
		Name     string `json:"name" binding:"required,max=120"`
		AudioURL string `json:"audioUrl" binding:"required,url"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	job := &redisstore.VoiceJob{
		JobID:     uuid.New().String(),
		UserID:    p.UserID,
		Name:      input.Name,
		AudioURL:  input.AudioURL,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.queue.Push(c.Request.Context(), job); err != nil {
		h.log.Error("failed to queue voice job", "user_id", p.UserID, "error", err)
		httpx.Fail(c, apperr.Internal("failed to queue voice clone", err))
		return
	}

	h.log.Info("voice job queued", "job_id", job.JobID, "user_id", p.UserID)
	c.JSON(http.StatusAccepted, gin.H{"success": true, "jobId": job.JobID})
}

// GET /admin/voice/queue
func (h *Handler) QueueLength(c *gin.Context) {
	n, err := h.queue.Length(c.Request.Context())
	if err != nil {
		httpx.Fail(c, apperr.Internal("failed to read queue", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pending": n})
}
