package mappers

import (
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/models"
)

func ToDomainClick(model *models.ClickEventModel) *domain.ClickEvent {
	return &domain.ClickEvent{
		ID:            model.ID,
		ReferralCode:  model.ReferralCode,
		AffiliateID:   model.AffiliateID,
		VisitorToken:  model.VisitorToken,
		IPHash:        model.IPHash,
		UserAgentHash: model.UserAgentHash,
		LandingURL:    model.LandingURL,
		ClickedAt:     model.ClickedAt,
		ExpiresAt:     model.ExpiresAt,
	}
}

func ToGORMClick(click *domain.ClickEvent) *models.ClickEventModel {
	return &models.ClickEventModel{
		ID:            click.ID,
		ReferralCode:  click.ReferralCode,
		AffiliateID:   click.AffiliateID,
		VisitorToken:  click.VisitorToken,
		IPHash:        click.IPHash,
		UserAgentHash: click.UserAgentHash,
		LandingURL:    click.LandingURL,
		ClickedAt:     click.ClickedAt,
		ExpiresAt:     click.ExpiresAt,
	}
}
