package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/LavaJover/shvark-affiliate-service/internal/delivery/http/dto"
	"github.com/LavaJover/shvark-affiliate-service/internal/delivery/http/mappers"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase"
	affiliatedto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/affiliate"
	"github.com/gin-gonic/gin"
)

type AffiliateHandler struct {
	useCase  usecase.ReferralGraphUsecase
	maxDepth func() int
	logger   *slog.Logger
}

func NewAffiliateHandler(useCase usecase.ReferralGraphUsecase, maxDepth func() int, logger *slog.Logger) *AffiliateHandler {
	return &AffiliateHandler{useCase: useCase, maxDepth: maxDepth, logger: logger}
}

// Enroll handles POST /api/v1/affiliates
func (h *AffiliateHandler) Enroll(c *gin.Context) {
	var req dto.EnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	affiliate, err := h.useCase.Enroll(c.Request.Context(), &affiliatedto.EnrollInput{
		AccountID:  req.AccountID,
		ParentCode: req.ParentCode,
		ParentID:   req.ParentID,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, mappers.ToAffiliateOutput(affiliate))
}

// Get handles GET /api/v1/affiliates/:id
func (h *AffiliateHandler) Get(c *gin.Context) {
	affiliate, err := h.useCase.GetAffiliate(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, mappers.ToAffiliateOutput(affiliate))
}

// Upline handles GET /api/v1/affiliates/:id/upline?depth=
func (h *AffiliateHandler) Upline(c *gin.Context) {
	depth := h.maxDepth()
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be a positive integer"})
			return
		}
		if parsed < depth {
			depth = parsed
		}
	}

	nodes, err := h.useCase.ResolveUpline(c.Request.Context(), c.Param("id"), depth)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upline": mappers.ToUplineOutput(nodes)})
}

// Downline handles GET /api/v1/affiliates/:id/downline
func (h *AffiliateHandler) Downline(c *gin.Context) {
	page, limit := pagination(c)
	children, total, err := h.useCase.ListDownline(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, affiliatedto.DownlineOutput{
		Children: mappers.ToAffiliateOutputs(children),
		Total:    total,
		Page:     page,
		Limit:    limit,
	})
}

// AttachParent handles POST /api/v1/affiliates/:id/parent
func (h *AffiliateHandler) AttachParent(c *gin.Context) {
	var req dto.AttachParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.useCase.AttachChild(c.Request.Context(), req.ParentID, c.Param("id")); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Reparent handles PUT /api/v1/admin/affiliates/:id/parent
func (h *AffiliateHandler) Reparent(c *gin.Context) {
	var req dto.ReparentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.useCase.ReparentOverride(c.Request.Context(), &affiliatedto.ReparentInput{
		AdminID:     adminID(c),
		ChildID:     c.Param("id"),
		NewParentID: req.ParentID,
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SetStatus handles PATCH /api/v1/admin/affiliates/:id/status
func (h *AffiliateHandler) SetStatus(c *gin.Context) {
	var req dto.SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	err := h.useCase.SetStatus(c.Request.Context(), &affiliatedto.SetStatusInput{
		AdminID:     adminID(c),
		AffiliateID: c.Param("id"),
		Status:      req.Status,
		Reason:      req.Reason,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
