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

type DefaultPayoutRepository struct {
	DB *gorm.DB
}

func NewDefaultPayoutRepository(db *gorm.DB) *DefaultPayoutRepository {
	return &DefaultPayoutRepository{DB: db}
}

func (r *DefaultPayoutRepository) CreateWithReservation(ctx context.Context, payout *domain.PayoutRequest) error {
	if payout.ID == "" {
		payout.ID = uuid.New().String()
	}
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := lockBalance(ctx, tx, payout.AffiliateID, payout.Currency)
		if err != nil {
			return fmt.Errorf("failed to lock balance: %w", err)
		}
		if available(balance).LessThan(payout.Amount) {
			return domain.ErrInsufficientBalance
		}

		if err := tx.Create(mappers.ToGORMPayout(payout)).Error; err != nil {
			return fmt.Errorf("failed to create payout: %w", err)
		}

		balance.Reserved = balance.Reserved.Add(payout.Amount)
		if err := saveBalance(ctx, tx, balance); err != nil {
			return fmt.Errorf("failed to reserve amount: %w", err)
		}
		return nil
	})
}

func (r *DefaultPayoutRepository) GetPayoutByID(ctx context.Context, payoutID string) (*domain.PayoutRequest, error) {
	var model models.PayoutModel
	if err := r.DB.WithContext(ctx).First(&model, "id = ?", payoutID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, err
	}
	return mappers.ToDomainPayout(&model), nil
}

func (r *DefaultPayoutRepository) GetPayoutByProviderRef(ctx context.Context, providerRef string) (*domain.PayoutRequest, error) {
	var model models.PayoutModel
	if err := r.DB.WithContext(ctx).First(&model, "provider_ref = ?", providerRef).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPayoutNotFound
		}
		return nil, err
	}
	return mappers.ToDomainPayout(&model), nil
}

// Claim only succeeds for the caller that observed expectedAttempts; a payout waiting for its
// retry is claimable once next_attempt_at has passed.
func (r *DefaultPayoutRepository) Claim(ctx context.Context, payoutID string, expectedAttempts int, now time.Time) (*domain.PayoutRequest, error) {
	res := r.DB.WithContext(ctx).
		Model(&models.PayoutModel{}).
		Where("id = ? AND attempts = ?", payoutID, expectedAttempts).
		Where(
			r.DB.Where("status = ?", domain.PayoutRequested).
				Or("status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?", domain.PayoutProcessing, now),
		).
		Updates(map[string]interface{}{
			"status":                domain.PayoutProcessing,
			"attempts":              expectedAttempts + 1,
			"next_attempt_at":       nil,
			"processing_started_at": now,
			"updated_at":            now,
		})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to claim payout: %w", res.Error)
	}

	payout, err := r.GetPayoutByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 0 {
		if payout.Status.Terminal() {
			return nil, domain.ErrPayoutTerminal
		}
		return nil, domain.ErrPayoutBusy
	}
	return payout, nil
}

// MarkDispatched reports ErrPayoutBusy when the payout is no longer processing.
func (r *DefaultPayoutRepository) MarkDispatched(ctx context.Context, payoutID, providerRef string, at time.Time) error {
	res := r.DB.WithContext(ctx).
		Model(&models.PayoutModel{}).
		Where("id = ? AND status = ?", payoutID, domain.PayoutProcessing).
		Updates(map[string]interface{}{
			"provider_ref":  providerRef,
			"dispatched_at": at,
			"updated_at":    at,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to record dispatch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrPayoutBusy
	}
	return nil
}

func (r *DefaultPayoutRepository) ScheduleRetry(ctx context.Context, payoutID string, attempts int, nextAttemptAt time.Time, lastErr string) error {
	res := r.DB.WithContext(ctx).
		Model(&models.PayoutModel{}).
		Where("id = ? AND status = ? AND attempts = ?", payoutID, domain.PayoutProcessing, attempts).
		Updates(map[string]interface{}{
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastErr,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("failed to schedule retry: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrPayoutBusy
	}
	return nil
}

// FailAndRelease reports false when the payout was already terminal.
func (r *DefaultPayoutRepository) FailAndRelease(ctx context.Context, payoutID, lastErr string, now time.Time) (bool, error) {
	released := false
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payout models.PayoutModel
		if err := tx.Clauses(forUpdate()).First(&payout, "id = ?", payoutID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPayoutNotFound
			}
			return err
		}
		if payout.Status.Terminal() {
			return nil
		}

		balance, err := lockBalance(ctx, tx, payout.AffiliateID, payout.Currency)
		if err != nil {
			return fmt.Errorf("failed to lock balance: %w", err)
		}
		balance.Reserved = balance.Reserved.Sub(payout.Amount)
		if err := saveBalance(ctx, tx, balance); err != nil {
			return fmt.Errorf("failed to release reservation: %w", err)
		}

		if err := tx.Model(&models.PayoutModel{}).Where("id = ?", payoutID).Updates(map[string]interface{}{
			"status":          domain.PayoutFailed,
			"last_error":      lastErr,
			"next_attempt_at": nil,
			"updated_at":      now,
		}).Error; err != nil {
			return fmt.Errorf("failed to mark payout failed: %w", err)
		}
		released = true
		return nil
	})
	return released, err
}

func (r *DefaultPayoutRepository) MarkNeedsReview(ctx context.Context, payoutID, reason string) error {
	return r.DB.WithContext(ctx).
		Model(&models.PayoutModel{}).
		Where("id = ?", payoutID).
		Updates(map[string]interface{}{
			"needs_review": true,
			"last_error":   reason,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *DefaultPayoutRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*domain.PayoutRequest, error) {
	var payoutModels []models.PayoutModel
	if err := r.DB.WithContext(ctx).
		Where("status = ?", domain.PayoutRequested).
		Or("status = ? AND next_attempt_at IS NOT NULL AND next_attempt_at <= ?", domain.PayoutProcessing, now).
		Order("created_at ASC").
		Limit(limit).
		Find(&payoutModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list due payouts: %w", err)
	}
	return lo.Map(payoutModels, func(m models.PayoutModel, _ int) *domain.PayoutRequest {
		return mappers.ToDomainPayout(&m)
	}), nil
}

func (r *DefaultPayoutRepository) ListStuck(ctx context.Context, startedBefore time.Time, limit int) ([]*domain.PayoutRequest, error) {
	var payoutModels []models.PayoutModel
	if err := r.DB.WithContext(ctx).
		Where("status = ? AND next_attempt_at IS NULL AND processing_started_at < ?", domain.PayoutProcessing, startedBefore).
		Order("processing_started_at ASC").
		Limit(limit).
		Find(&payoutModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list stuck payouts: %w", err)
	}
	return lo.Map(payoutModels, func(m models.PayoutModel, _ int) *domain.PayoutRequest {
		return mappers.ToDomainPayout(&m)
	}), nil
}

func (r *DefaultPayoutRepository) GetPayoutsByAffiliateID(ctx context.Context, affiliateID string, page, limit int64) ([]*domain.PayoutRequest, int64, error) {
	page, limit = normalizePage(page, limit)

	var total int64
	baseQuery := r.DB.WithContext(ctx).Model(&models.PayoutModel{}).Where("affiliate_id = ?", affiliateID)
	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count payouts: %w", err)
	}

	var payoutModels []models.PayoutModel
	if err := baseQuery.
		Order("created_at DESC").
		Offset(int((page - 1) * limit)).
		Limit(int(limit)).
		Find(&payoutModels).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find payouts: %w", err)
	}
	return lo.Map(payoutModels, func(m models.PayoutModel, _ int) *domain.PayoutRequest {
		return mappers.ToDomainPayout(&m)
	}), total, nil
}
