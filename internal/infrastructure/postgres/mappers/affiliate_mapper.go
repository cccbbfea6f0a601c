package mappers

import (
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/models"
)

func ToDomainAffiliate(model *models.AffiliateModel) *domain.Affiliate {
	return &domain.Affiliate{
		ID:           model.ID,
		AccountID:    model.AccountID,
		ReferralCode: model.ReferralCode,
		ParentID:     model.ParentID,
		Status:       model.Status,
		StatusReason: model.StatusReason,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
}

func ToGORMAffiliate(affiliate *domain.Affiliate) *models.AffiliateModel {
	return &models.AffiliateModel{
		ID:           affiliate.ID,
		AccountID:    affiliate.AccountID,
		ReferralCode: affiliate.ReferralCode,
		ParentID:     affiliate.ParentID,
		Status:       affiliate.Status,
		StatusReason: affiliate.StatusReason,
		CreatedAt:    affiliate.CreatedAt,
		UpdatedAt:    affiliate.UpdatedAt,
	}
}

func ToGORMAffiliateAuditLog(log *domain.AffiliateAuditLog) *models.AffiliateAuditLogModel {
	return &models.AffiliateAuditLogModel{
		ID:          log.ID,
		AffiliateID: log.AffiliateID,
		ActorID:     log.ActorID,
		Action:      log.Action,
		Reason:      log.Reason,
		Metadata:    log.Metadata,
		CreatedAt:   log.CreatedAt,
	}
}
