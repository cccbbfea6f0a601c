package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type antiFraudRepository struct {
	db *gorm.DB
}

func NewAntiFraudRepository(db *gorm.DB) domain.AntiFraudRepository {
	return &antiFraudRepository{db: db}
}

func (r *antiFraudRepository) CountAttributedConversions(ctx context.Context, affiliateID string, from, to time.Time, excludeConversionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ConversionModel{}).
		Where("attributed_affiliate_id = ?", affiliateID).
		Where("occurred_at >= ? AND occurred_at <= ?", from, to).
		Where("id <> ?", excludeConversionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count attributed conversions: %w", err)
	}
	return count, nil
}

func (r *antiFraudRepository) CreateAuditLog(ctx context.Context, log *domain.FraudAuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return r.db.WithContext(ctx).Create(mappers.ToGORMFraudAuditLog(log)).Error
}

func (r *antiFraudRepository) GetAuditLogs(ctx context.Context, filter *domain.FraudAuditFilter) ([]*domain.FraudAuditLog, error) {
	query := r.db.WithContext(ctx).Model(&models.FraudAuditLogModel{})

	if filter.AffiliateID != "" {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if filter.ConversionID != "" {
		query = query.Where("conversion_id = ?", filter.ConversionID)
	}
	if filter.OnlyFlagged {
		query = query.Where("decision <> ?", domain.FraudPass)
	}
	if filter.NeedsGraphReview {
		query = query.Where("needs_graph_review = ?", true)
	}
	if filter.FromDate != nil {
		query = query.Where("checked_at >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("checked_at <= ?", *filter.ToDate)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var logModels []models.FraudAuditLogModel
	if err := query.
		Order("created_at DESC").
		Offset(filter.Offset).
		Limit(limit).
		Find(&logModels).Error; err != nil {
		return nil, fmt.Errorf("failed to get fraud audit logs: %w", err)
	}

	return lo.Map(logModels, func(m models.FraudAuditLogModel, _ int) *domain.FraudAuditLog {
		return mappers.ToDomainFraudAuditLog(&m)
	}), nil
}
