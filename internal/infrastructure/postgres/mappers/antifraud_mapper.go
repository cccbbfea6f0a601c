package mappers

import (
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/models"
)

func ToDomainFraudAuditLog(model *models.FraudAuditLogModel) *domain.FraudAuditLog {
	return &domain.FraudAuditLog{
		ID:               model.ID,
		ConversionID:     model.ConversionID,
		AffiliateID:      model.AffiliateID,
		Decision:         model.Decision,
		Reason:           model.Reason,
		Results:          model.Results,
		NeedsGraphReview: model.NeedsGraphReview,
		CheckedAt:        model.CheckedAt,
		CreatedAt:        model.CreatedAt,
	}
}

func ToGORMFraudAuditLog(log *domain.FraudAuditLog) *models.FraudAuditLogModel {
	return &models.FraudAuditLogModel{
		ID:               log.ID,
		ConversionID:     log.ConversionID,
		AffiliateID:      log.AffiliateID,
		Decision:         log.Decision,
		Reason:           log.Reason,
		Results:          log.Results,
		NeedsGraphReview: log.NeedsGraphReview,
		CheckedAt:        log.CheckedAt,
		CreatedAt:        log.CreatedAt,
	}
}
