package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/LavaJover/shvark-affiliate-service/internal/delivery/http/dto"
	"github.com/LavaJover/shvark-affiliate-service/internal/delivery/http/mappers"
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase"
	ledgerdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/ledger"
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
)

type LedgerHandler struct {
	useCase usecase.LedgerUsecase
	logger  *slog.Logger
}

func NewLedgerHandler(useCase usecase.LedgerUsecase, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{useCase: useCase, logger: logger}
}

// Balance handles GET /api/v1/affiliates/:id/balance?currency=
func (h *LedgerHandler) Balance(c *gin.Context) {
	ctx := c.Request.Context()
	affiliateID := c.Param("id")

	if currency := c.Query("currency"); currency != "" {
		balance, err := h.useCase.BalanceOf(ctx, affiliateID, strings.ToUpper(currency))
		if err != nil {
			writeError(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, mappers.ToBalanceOutput(balance))
		return
	}

	balances, err := h.useCase.Balances(ctx, affiliateID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": lo.Map(balances, func(b *domain.Balance, _ int) ledgerdto.BalanceOutput {
		return mappers.ToBalanceOutput(b)
	})})
}

// Entries handles GET /api/v1/affiliates/:id/commissions
func (h *LedgerHandler) Entries(c *gin.Context) {
	h.listEntries(c, c.Param("id"))
}

// Queue handles GET /api/v1/admin/commissions, the review queue across affiliates.
func (h *LedgerHandler) Queue(c *gin.Context) {
	h.listEntries(c, c.Query("affiliate_id"))
}

func (h *LedgerHandler) listEntries(c *gin.Context, affiliateID string) {
	page, limit := pagination(c)
	var statuses []string
	if raw := c.Query("status"); raw != "" {
		statuses = lo.Compact(lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
			return strings.ToUpper(strings.TrimSpace(s))
		}))
	}

	entries, total, err := h.useCase.ListEntries(c.Request.Context(), &ledgerdto.ListEntriesInput{
		AffiliateID: affiliateID,
		Statuses:    statuses,
		FraudHold:   optionalBool(c, "fraud_hold"),
		Page:        page,
		Limit:       limit,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, ledgerdto.EntriesOutput{
		Entries: mappers.ToEntryOutputs(entries),
		Total:   total,
		Page:    page,
		Limit:   limit,
	})
}

// Decide handles POST /api/v1/admin/commissions/:id/decision
func (h *LedgerHandler) Decide(c *gin.Context) {
	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	entry, err := h.useCase.Decide(c.Request.Context(), &ledgerdto.DecideInput{
		EntryID:  c.Param("id"),
		Decision: req.Decision,
		AdminID:  adminID(c),
		Note:     req.Note,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, mappers.ToEntryOutput(entry))
}

// RebuildBalance handles POST /api/v1/admin/affiliates/:id/balance/rebuild?currency=
func (h *LedgerHandler) RebuildBalance(c *gin.Context) {
	currency := strings.ToUpper(c.Query("currency"))
	if currency == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "currency is required"})
		return
	}
	balance, err := h.useCase.RebuildBalance(c.Request.Context(), c.Param("id"), currency)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.logger.Info("balance rebuilt by admin", "affiliate_id", c.Param("id"), "currency", currency, "admin_id", adminID(c))
	c.JSON(http.StatusOK, mappers.ToBalanceOutput(balance))
}
