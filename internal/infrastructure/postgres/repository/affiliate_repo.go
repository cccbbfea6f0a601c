package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/mappers"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/models"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

type DefaultAffiliateRepository struct {
	DB *gorm.DB
}

func NewDefaultAffiliateRepository(db *gorm.DB) *DefaultAffiliateRepository {
	return &DefaultAffiliateRepository{DB: db}
}

func (r *DefaultAffiliateRepository) CreateAffiliate(ctx context.Context, affiliate *domain.Affiliate) error {
	if affiliate.ID == "" {
		affiliate.ID = uuid.New().String()
	}
	model := mappers.ToGORMAffiliate(affiliate)
	if err := r.DB.WithContext(ctx).Create(model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrReferralCodeTaken
		}
		return fmt.Errorf("failed to create affiliate: %w", err)
	}
	affiliate.CreatedAt = model.CreatedAt
	affiliate.UpdatedAt = model.UpdatedAt
	return nil
}

func (r *DefaultAffiliateRepository) GetAffiliateByID(ctx context.Context, affiliateID string) (*domain.Affiliate, error) {
	return getAffiliate(ctx, r.DB, "id = ?", affiliateID)
}

func (r *DefaultAffiliateRepository) GetAffiliateByCode(ctx context.Context, code string) (*domain.Affiliate, error) {
	return getAffiliate(ctx, r.DB, "referral_code = ?", code)
}

func getAffiliate(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*domain.Affiliate, error) {
	var model models.AffiliateModel
	if err := db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAffiliateNotFound
		}
		return nil, err
	}
	return mappers.ToDomainAffiliate(&model), nil
}

func (r *DefaultAffiliateRepository) GetChildren(ctx context.Context, parentID string, page, limit int64) ([]*domain.Affiliate, int64, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	baseQuery := r.DB.WithContext(ctx).Model(&models.AffiliateModel{}).Where("parent_id = ?", parentID)
	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count children: %w", err)
	}

	var affiliateModels []models.AffiliateModel
	if err := baseQuery.
		Order("created_at ASC").
		Offset(int((page - 1) * limit)).
		Limit(int(limit)).
		Find(&affiliateModels).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find children: %w", err)
	}

	return lo.Map(affiliateModels, func(m models.AffiliateModel, _ int) *domain.Affiliate {
		return mappers.ToDomainAffiliate(&m)
	}), total, nil
}

func (r *DefaultAffiliateRepository) UpdateStatus(ctx context.Context, affiliateID string, status domain.AffiliateStatus, reason string) error {
	res := r.DB.WithContext(ctx).
		Model(&models.AffiliateModel{}).
		Where("id = ?", affiliateID).
		Updates(map[string]interface{}{
			"status":        status,
			"status_reason": reason,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAffiliateNotFound
	}
	return nil
}

func (r *DefaultAffiliateRepository) CreateAuditLog(ctx context.Context, log *domain.AffiliateAuditLog) error {
	return createAffiliateAuditLog(ctx, r.DB, log)
}

func createAffiliateAuditLog(ctx context.Context, db *gorm.DB, log *domain.AffiliateAuditLog) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(mappers.ToGORMAffiliateAuditLog(log)).Error
}

func (r *DefaultAffiliateRepository) WithGraphLock(ctx context.Context, affiliateIDs []string, fn func(tx domain.AffiliateGraphTx) error) error {
	ids := lo.Uniq(lo.Compact(affiliateIDs))
	sort.Strings(ids)

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		graph := &graphTx{tx: tx}
		for _, id := range ids {
			if _, err := graph.GetAffiliateByID(ctx, id); err != nil {
				return err
			}
		}
		return fn(graph)
	})
}

// graphTx reads lock every visited row, so two concurrent re-parentings that could close
// a cycle through each other's ancestors serialize (or deadlock and abort) instead of both passing.
type graphTx struct {
	tx *gorm.DB
}

func (g *graphTx) GetAffiliateByID(ctx context.Context, affiliateID string) (*domain.Affiliate, error) {
	return getAffiliate(ctx, g.tx.Clauses(forUpdate()), "id = ?", affiliateID)
}

func (g *graphTx) SetParent(ctx context.Context, childID string, parentID *string) error {
	res := g.tx.WithContext(ctx).
		Model(&models.AffiliateModel{}).
		Where("id = ?", childID).
		Updates(map[string]interface{}{
			"parent_id":  parentID,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAffiliateNotFound
	}
	return nil
}

func (g *graphTx) CreateAuditLog(ctx context.Context, log *domain.AffiliateAuditLog) error {
	return createAffiliateAuditLog(ctx, g.tx, log)
}
