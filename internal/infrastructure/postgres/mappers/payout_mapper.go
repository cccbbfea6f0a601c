package mappers

import (
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/models"
)

func ToDomainPayout(model *models.PayoutModel) *domain.PayoutRequest {
	payout := &domain.PayoutRequest{
		ID:                  model.ID,
		AffiliateID:         model.AffiliateID,
		Amount:              model.Amount,
		Currency:            model.Currency,
		Method:              model.Method,
		Status:              model.Status,
		Attempts:            model.Attempts,
		NextAttemptAt:       model.NextAttemptAt,
		ProcessingStartedAt: model.ProcessingStartedAt,
		DispatchedAt:        model.DispatchedAt,
		LastError:           model.LastError,
		NeedsReview:         model.NeedsReview,
		CreatedAt:           model.CreatedAt,
		UpdatedAt:           model.UpdatedAt,
		CompletedAt:         model.CompletedAt,
	}
	if model.ProviderRef != nil {
		payout.ProviderRef = *model.ProviderRef
	}
	return payout
}

func ToGORMPayout(payout *domain.PayoutRequest) *models.PayoutModel {
	model := &models.PayoutModel{
		ID:                  payout.ID,
		AffiliateID:         payout.AffiliateID,
		Amount:              payout.Amount,
		Currency:            payout.Currency,
		Method:              payout.Method,
		Status:              payout.Status,
		Attempts:            payout.Attempts,
		NextAttemptAt:       payout.NextAttemptAt,
		ProcessingStartedAt: payout.ProcessingStartedAt,
		DispatchedAt:        payout.DispatchedAt,
		LastError:           payout.LastError,
		NeedsReview:         payout.NeedsReview,
		CreatedAt:           payout.CreatedAt,
		UpdatedAt:           payout.UpdatedAt,
		CompletedAt:         payout.CompletedAt,
	}
	if payout.ProviderRef != "" {
		ref := payout.ProviderRef
		model.ProviderRef = &ref
	}
	return model
}

func ToDomainAllocation(model *models.PayoutAllocationModel) *domain.PayoutAllocation {
	return &domain.PayoutAllocation{
		ID:        model.ID,
		PayoutID:  model.PayoutID,
		EntryID:   model.EntryID,
		Amount:    model.Amount,
		CreatedAt: model.CreatedAt,
	}
}
