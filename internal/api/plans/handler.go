package plans

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"voiceclone-backend/internal/apperr"
	"voiceclone-backend/internal/app/http/httpx"
	"voiceclone-backend/internal/catalog"
	"voiceclone-backend/internal/domain/plans"
)

type Catalog interface {
	Create(ctx context.Context, in catalog.Input) (*plans.Plan, error)
	Update(ctx context.Context, packID string, in catalog.Input) (*plans.Plan, error)
	SetStatus(ctx context.Context, packID string, status plans.Status) (*plans.Plan, error)
	Suspend(ctx context.Context, packID string) (*plans.Plan, error)
	List(ctx context.Context, activeOnly bool) ([]plans.Plan, error)
}

type Handler struct {
	catalog Catalog
}

func NewHandler(c Catalog) *Handler {
	return &Handler{catalog: c}
}

// POST /package/add
func (h *Handler) Create(c *gin.Context) {
	var input catalog.Input
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	p, err := h.catalog.Create(c.Request.Context(), input)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "package": p})
}

// PUT /package/:packId
func (h *Handler) Update(c *gin.Context) {
	var input struct {
		catalog.Input
		Status string `json:"status"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		httpx.BadRequest(c, err)
		return
	}

	var status plans.Status
	if input.Status != "" {
		status = plans.Status(input.Status)
		if status != plans.StatusActive && status != plans.StatusSuspended {
			httpx.Fail(c, apperr.Validation("status must be Active or Suspended"))
			return
		}
	}

	ctx := c.Request.Context()
	p, err := h.catalog.Update(ctx, c.Param("packId"), input.Input)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	if status != "" && status != p.Status {
		if p, err = h.catalog.SetStatus(ctx, p.PackID, status); err != nil {
			httpx.Fail(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "package": p})
}

// PUT /package/:packId/suspend
func (h *Handler) Suspend(c *gin.Context) {
	p, err := h.catalog.Suspend(c.Request.Context(), c.Param("packId"))
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "package": p})
}

// GET /package
func (h *Handler) ListAll(c *gin.Context) {
	h.list(c, false)
}

// GET /package/active
func (h *Handler) ListActive(c *gin.Context) {
	h.list(c, true)
}

func (h *Handler) list(c *gin.Context, activeOnly bool) {
	list, err := h.catalog.List(c.Request.Context(), activeOnly)
	if err != nil {
		httpx.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "packages": list})
}
