package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/antifraud"
	"github.com/gin-gonic/gin"
)

type AntiFraudHandler struct {
	guard  antifraud.FraudGuard
	logger *slog.Logger
}

func NewAntiFraudHandler(guard antifraud.FraudGuard, logger *slog.Logger) *AntiFraudHandler {
	return &AntiFraudHandler{guard: guard, logger: logger}
}

type auditLogResponse struct {
	ID               string                `json:"id"`
	ConversionID     string                `json:"conversion_id"`
	AffiliateID      string                `json:"affiliate_id"`
	Decision         string                `json:"decision"`
	Reason           string                `json:"reason,omitempty"`
	NeedsGraphReview bool                  `json:"needs_graph_review"`
	Results          []*domain.CheckResult `json:"results"`
	CheckedAt        time.Time             `json:"checked_at"`
}

// AuditLogs handles GET /api/v1/admin/fraud-logs
func (h *AntiFraudHandler) AuditLogs(c *gin.Context) {
	filter := &domain.FraudAuditFilter{
		AffiliateID:      c.Query("affiliate_id"),
		ConversionID:     c.Query("conversion_id"),
		OnlyFlagged:      c.Query("flagged") == "true",
		NeedsGraphReview: c.Query("graph_review") == "true",
		Limit:            50,
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 500 {
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	for key, target := range map[string]**time.Time{"from": &filter.FromDate, "to": &filter.ToDate} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be RFC3339"})
			return
		}
		*target = &parsed
	}

	logs, err := h.guard.ListAuditLogs(c.Request.Context(), filter)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	response := make([]auditLogResponse, 0, len(logs))
	for _, log := range logs {
		response = append(response, auditLogResponse{
			ID:               log.ID,
			ConversionID:     log.ConversionID,
			AffiliateID:      log.AffiliateID,
			Decision:         string(log.Decision),
			Reason:           log.Reason,
			NeedsGraphReview: log.NeedsGraphReview,
			Results:          log.Results,
			CheckedAt:        log.CheckedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"logs": response})
}
