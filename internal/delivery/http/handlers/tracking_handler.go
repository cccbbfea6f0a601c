package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/LavaJover/shvark-affiliate-service/internal/delivery/http/dto"
	"github.com/LavaJover/shvark-affiliate-service/internal/delivery/http/mappers"
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/commission"
	clickdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/click"
	"github.com/gin-gonic/gin"
)

// TrackingHandler takes clicks from the landing pages and conversions pushed over HTTP instead of kafka.
type TrackingHandler struct {
	clicks  usecase.ClickUsecase
	engine  commission.CommissionEngine
	logger  *slog.Logger
	metrics *metrics.AffiliateMetrics
}

func NewTrackingHandler(clicks usecase.ClickUsecase, engine commission.CommissionEngine, logger *slog.Logger, m *metrics.AffiliateMetrics) *TrackingHandler {
	return &TrackingHandler{clicks: clicks, engine: engine, logger: logger, metrics: m}
}

// RecordClick handles POST /api/v1/clicks
func (h *TrackingHandler) RecordClick(c *gin.Context) {
	var req dto.RecordClickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.metrics.RecordClick("invalid")
		badRequest(c, err)
		return
	}

	click, err := h.clicks.RecordClick(c.Request.Context(), &clickdto.RecordClickInput{
		Code:         req.Code,
		VisitorToken: req.VisitorToken,
		IP:           c.ClientIP(),
		UserAgent:    c.Request.UserAgent(),
		LandingURL:   req.LandingURL,
	})
	if err != nil {
		h.metrics.RecordClick("rejected")
		writeError(c, h.logger, err)
		return
	}

	h.metrics.RecordClick("ok")
	c.JSON(http.StatusCreated, gin.H{
		"click_id":     click.ID,
		"affiliate_id": click.AffiliateID,
		"expires_at":   click.ExpiresAt,
	})
}

// Conversion handles POST /api/v1/conversions
func (h *TrackingHandler) Conversion(c *gin.Context) {
	var req dto.ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.engine.Process(c.Request.Context(), &domain.ConversionEvent{
		ID:           req.ConversionID,
		VisitorToken: req.VisitorToken,
		AccountID:    req.AccountID,
		GrossAmount:  req.GrossAmount,
		Currency:     req.Currency,
		OccurredAt:   req.Timestamp,
	})
	// a cycle still yields a recorded rejection
	if err != nil && !(result != nil && errors.Is(err, domain.ErrCycleDetected)) {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, mappers.ToConversionResultOutput(result))
}
