package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/models"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const uniqueViolationCode = "23505"

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
		return true
	}
	// sqlite (tests, local runs)
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func forUpdate() clause.Locking {
	return clause.Locking{Strength: "UPDATE"}
}

func normalizePage(page, limit int64) (int64, int64) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}

// lockBalance returns the balance row of (affiliate, currency) locked for update, creating it first if needed.
func lockBalance(ctx context.Context, tx *gorm.DB, affiliateID, currency string) (*models.AffiliateBalanceModel, error) {
	seed := models.AffiliateBalanceModel{
		AffiliateID: affiliateID,
		Currency:    currency,
		Pending:     decimal.Zero,
		Approved:    decimal.Zero,
		Paid:        decimal.Zero,
		Reserved:    decimal.Zero,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, err
	}

	var balance models.AffiliateBalanceModel
	if err := tx.WithContext(ctx).
		Clauses(forUpdate()).
		Where("affiliate_id = ? AND currency = ?", affiliateID, currency).
		First(&balance).Error; err != nil {
		return nil, err
	}
	return &balance, nil
}

func saveBalance(ctx context.Context, tx *gorm.DB, balance *models.AffiliateBalanceModel) error {
	return tx.WithContext(ctx).
		Model(&models.AffiliateBalanceModel{}).
		Where("affiliate_id = ? AND currency = ?", balance.AffiliateID, balance.Currency).
		Updates(map[string]interface{}{
			"pending":    balance.Pending,
			"approved":   balance.Approved,
			"paid":       balance.Paid,
			"reserved":   balance.Reserved,
			"updated_at": time.Now().UTC(),
		}).Error
}

func available(balance *models.AffiliateBalanceModel) decimal.Decimal {
	return balance.Approved.Sub(balance.Paid).Sub(balance.Reserved)
}
