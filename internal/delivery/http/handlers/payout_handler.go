package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/LavaJover/shvark-affiliate-service/internal/delivery/http/dto"
	"github.com/LavaJover/shvark-affiliate-service/internal/delivery/http/mappers"
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	payoutdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/payout"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/payout"
	"github.com/gin-gonic/gin"
)

type PayoutHandler struct {
	manager payout.PayoutManager
	logger  *slog.Logger
}

func NewPayoutHandler(manager payout.PayoutManager, logger *slog.Logger) *PayoutHandler {
	return &PayoutHandler{manager: manager, logger: logger}
}

// Request handles POST /api/v1/affiliates/:id/payouts
func (h *PayoutHandler) Request(c *gin.Context) {
	var req dto.PayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	created, err := h.manager.RequestPayout(c.Request.Context(), &payoutdto.RequestPayoutInput{
		AffiliateID: c.Param("id"),
		Amount:      req.Amount,
		Currency:    strings.ToUpper(req.Currency),
		Method:      req.Method,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, mappers.ToPayoutOutput(created))
}

// List handles GET /api/v1/affiliates/:id/payouts
func (h *PayoutHandler) List(c *gin.Context) {
	page, limit := pagination(c)
	payouts, total, err := h.manager.ListPayouts(c.Request.Context(), c.Param("id"), page, limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payouts": mappers.ToPayoutOutputs(payouts),
		"total":   total,
		"page":    page,
		"limit":   limit,
	})
}

// Advance handles POST /api/v1/admin/payouts/:id/advance
func (h *PayoutHandler) Advance(c *gin.Context) {
	advanced, err := h.manager.Advance(c.Request.Context(), c.Param("id"))
	if err != nil {
		var failure *domain.ProviderFailure
		if errors.As(err, &failure) && advanced != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":     failure.Error(),
				"retryable": failure.Retryable,
				"payout":    mappers.ToPayoutOutput(advanced),
			})
			return
		}
		writeError(c, h.logger, err)
		return
	}
	h.logger.Info("payout advanced by admin", "payout_id", advanced.ID, "status", advanced.Status, "admin_id", adminID(c))
	c.JSON(http.StatusOK, mappers.ToPayoutOutput(advanced))
}

// Callback handles POST /api/v1/payouts/callback, the provider's late result.
func (h *PayoutHandler) Callback(c *gin.Context) {
	var req dto.ProviderCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	reconciled, err := h.manager.Reconcile(c.Request.Context(), &payoutdto.ReconcileInput{
		PayoutID:    req.PayoutID,
		ProviderRef: req.ProviderRef,
		Succeeded:   req.Status == "succeeded",
		Error:       req.Error,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, mappers.ToPayoutOutput(reconciled))
}
