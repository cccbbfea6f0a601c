package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/gin-gonic/gin"
)

var statusByError = []struct {
	err    error
	status int
}{
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrAffiliateNotFound, http.StatusNotFound},
	{domain.ErrEntryNotFound, http.StatusNotFound},
	{domain.ErrPayoutNotFound, http.StatusNotFound},
	{domain.ErrCycleDetected, http.StatusConflict},
	{domain.ErrAlreadyHasParent, http.StatusConflict},
	{domain.ErrAlreadyDecided, http.StatusConflict},
	{domain.ErrReferralCodeTaken, http.StatusConflict},
	{domain.ErrDuplicateConversion, http.StatusConflict},
	{domain.ErrPayoutBusy, http.StatusConflict},
	{domain.ErrPayoutTerminal, http.StatusConflict},
	{domain.ErrReconcileConflict, http.StatusConflict},
	{domain.ErrInsufficientBalance, http.StatusUnprocessableEntity},
	{domain.ErrAffiliateInactive, http.StatusUnprocessableEntity},
	{domain.ErrInvalidPayout, http.StatusUnprocessableEntity},
	{domain.ErrInvalidDecision, http.StatusUnprocessableEntity},
	{domain.ErrInvalidStatus, http.StatusUnprocessableEntity},
	{domain.ErrInvalidClick, http.StatusUnprocessableEntity},
	{domain.ErrInvalidConversion, http.StatusUnprocessableEntity},
}

func statusFor(err error) int {
	var failure *domain.ProviderFailure
	if errors.As(err, &failure) {
		return http.StatusBadGateway
	}
	for _, candidate := range statusByError {
		if errors.Is(err, candidate.err) {
			return candidate.status
		}
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
}
