package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	clickdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/click"
)

type ClickUsecase interface {
	RecordClick(ctx context.Context, input *clickdto.RecordClickInput) (*domain.ClickEvent, error)
	ResolveAttribution(ctx context.Context, visitorToken string, at time.Time) (string, bool, error)
}

type DefaultClickUsecase struct {
	ClickRepo     domain.ClickRepository
	AffiliateRepo domain.AffiliateRepository
	// Settings returns the current schedule; the attribution window is read on every click.
	Settings func() domain.CommissionSettings
	now      func() time.Time
}

func NewDefaultClickUsecase(clickRepo domain.ClickRepository, affiliateRepo domain.AffiliateRepository, settings func() domain.CommissionSettings) *DefaultClickUsecase {
	return &DefaultClickUsecase{
		ClickRepo:     clickRepo,
		AffiliateRepo: affiliateRepo,
		Settings:      settings,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (uc *DefaultClickUsecase) RecordClick(ctx context.Context, input *clickdto.RecordClickInput) (*domain.ClickEvent, error) {
	if strings.TrimSpace(input.VisitorToken) == "" {
		return nil, domain.ErrInvalidClick
	}
	affiliate, err := uc.AffiliateRepo.GetAffiliateByCode(ctx, input.Code)
	if err != nil {
		return nil, err
	}
	if !affiliate.IsActive() {
		return nil, domain.ErrAffiliateInactive
	}

	clickedAt := uc.now()
	click := &domain.ClickEvent{
		ReferralCode:  affiliate.ReferralCode,
		AffiliateID:   affiliate.ID,
		VisitorToken:  input.VisitorToken,
		IPHash:        hashValue(input.IP),
		UserAgentHash: hashValue(input.UserAgent),
		LandingURL:    input.LandingURL,
		ClickedAt:     clickedAt,
		ExpiresAt:     clickedAt.Add(uc.Settings().AttributionWindow),
	}
	if err := uc.ClickRepo.CreateClick(ctx, click); err != nil {
		return nil, err
	}
	return click, nil
}

// ResolveAttribution reports the first-touch affiliate of the visitor at the given instant.
func (uc *DefaultClickUsecase) ResolveAttribution(ctx context.Context, visitorToken string, at time.Time) (string, bool, error) {
	if visitorToken == "" {
		return "", false, nil
	}
	click, err := uc.ClickRepo.FindFirstTouch(ctx, visitorToken, at.UTC())
	if err != nil {
		return "", false, err
	}
	if click == nil {
		return "", false, nil
	}
	return click.AffiliateID, true, nil
}

func hashValue(value string) string {
	if value == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}
