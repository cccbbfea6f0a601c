package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type DefaultClickRepository struct {
	DB *gorm.DB
}

func NewDefaultClickRepository(db *gorm.DB) *DefaultClickRepository {
	return &DefaultClickRepository{DB: db}
}

func (r *DefaultClickRepository) CreateClick(ctx context.Context, click *domain.ClickEvent) error {
	if click.ID == "" {
		click.ID = uuid.New().String()
	}
	return r.DB.WithContext(ctx).Create(mappers.ToGORMClick(click)).Error
}

// FindFirstTouch returns nil, nil when no click of the visitor covers at.
func (r *DefaultClickRepository) FindFirstTouch(ctx context.Context, visitorToken string, at time.Time) (*domain.ClickEvent, error) {
	var model models.ClickEventModel
	err := r.DB.WithContext(ctx).
		Where("visitor_token = ?", visitorToken).
		Where("clicked_at <= ? AND expires_at >= ?", at, at).
		Order("clicked_at ASC, id ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find first-touch click: %w", err)
	}
	return mappers.ToDomainClick(&model), nil
}

func (r *DefaultClickRepository) GetClicksByAffiliateID(ctx context.Context, affiliateID string, page, limit int64) ([]*domain.ClickEvent, int64, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	baseQuery := r.DB.WithContext(ctx).Model(&models.ClickEventModel{}).Where("affiliate_id = ?", affiliateID)
	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count clicks: %w", err)
	}

	var clickModels []models.ClickEventModel
	if err := baseQuery.
		Order("clicked_at DESC").
		Offset(int((page - 1) * limit)).
		Limit(int(limit)).
		Find(&clickModels).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find clicks: %w", err)
	}

	return lo.Map(clickModels, func(m models.ClickEventModel, _ int) *domain.ClickEvent {
		return mappers.ToDomainClick(&m)
	}), total, nil
}
