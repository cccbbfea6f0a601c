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
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type DefaultLedgerRepository struct {
	DB *gorm.DB
}

func NewDefaultLedgerRepository(db *gorm.DB) *DefaultLedgerRepository {
	return &DefaultLedgerRepository{DB: db}
}

func (r *DefaultLedgerRepository) HasConversion(ctx context.Context, conversionID string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).
		Model(&models.ConversionModel{}).
		Where("id = ?", conversionID).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("failed to look up conversion: %w", err)
	}
	return count > 0, nil
}

func (r *DefaultLedgerRepository) SaveConversionRecord(ctx context.Context, record *domain.ConversionRecord) error {
	return createConversion(r.DB.WithContext(ctx), record)
}

// createConversion claims the conversion id; the row is the replay guard for every outcome.
func createConversion(db *gorm.DB, record *domain.ConversionRecord) error {
	if err := db.Create(mappers.ToGORMConversion(record)).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateConversion
		}
		return fmt.Errorf("failed to save conversion: %w", err)
	}
	return nil
}

func (r *DefaultLedgerRepository) PersistConversion(ctx context.Context, record *domain.ConversionRecord, entries []*domain.CommissionEntry) error {
	pendingByAffiliate := make(map[string]decimal.Decimal)
	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.New().String()
		}
		pendingByAffiliate[entry.AffiliateID] = pendingByAffiliate[entry.AffiliateID].Add(entry.Amount)
	}
	affiliateIDs := lo.Keys(pendingByAffiliate)
	sort.Strings(affiliateIDs)

	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createConversion(tx, record); err != nil {
			return err
		}

		balances := make(map[string]*models.AffiliateBalanceModel, len(affiliateIDs))
		for _, affiliateID := range affiliateIDs {
			balance, err := lockBalance(ctx, tx, affiliateID, record.Currency)
			if err != nil {
				return fmt.Errorf("failed to lock balance of %s: %w", affiliateID, err)
			}
			balances[affiliateID] = balance
		}

		if len(entries) > 0 {
			entryModels := lo.Map(entries, func(e *domain.CommissionEntry, _ int) *models.CommissionEntryModel {
				return mappers.ToGORMEntry(e)
			})
			if err := tx.Create(&entryModels).Error; err != nil {
				if isUniqueViolation(err) {
					return domain.ErrDuplicateConversion
				}
				return fmt.Errorf("failed to insert commission entries: %w", err)
			}
		}

		for _, affiliateID := range affiliateIDs {
			balance := balances[affiliateID]
			balance.Pending = balance.Pending.Add(pendingByAffiliate[affiliateID])
			if err := saveBalance(ctx, tx, balance); err != nil {
				return fmt.Errorf("failed to update balance of %s: %w", affiliateID, err)
			}
		}
		return nil
	})
}

func (r *DefaultLedgerRepository) GetEntryByID(ctx context.Context, entryID string) (*domain.CommissionEntry, error) {
	var model models.CommissionEntryModel
	if err := r.DB.WithContext(ctx).First(&model, "id = ?", entryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrEntryNotFound
		}
		return nil, err
	}
	return mappers.ToDomainEntry(&model), nil
}

// DecideEntry is optimistic on the entry (only a PENDING row is updated) and locks the balance
// row before the entry so it never waits on SettlePayout in the opposite order.
func (r *DefaultLedgerRepository) DecideEntry(ctx context.Context, entryID string, status domain.CommissionStatus, actorID, note string, at time.Time) (*domain.CommissionEntry, error) {
	var decided *domain.CommissionEntry
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var entry models.CommissionEntryModel
		if err := tx.First(&entry, "id = ?", entryID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrEntryNotFound
			}
			return err
		}
		if entry.Status != domain.CommissionPending {
			return domain.ErrAlreadyDecided
		}

		balance, err := lockBalance(ctx, tx, entry.AffiliateID, entry.Currency)
		if err != nil {
			return fmt.Errorf("failed to lock balance: %w", err)
		}

		res := tx.Model(&models.CommissionEntryModel{}).
			Where("id = ? AND status = ?", entryID, domain.CommissionPending).
			Updates(map[string]interface{}{
				"status":        status,
				"decided_by":    actorID,
				"decision_note": note,
				"decided_at":    at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return domain.ErrAlreadyDecided
		}

		balance.Pending = balance.Pending.Sub(entry.Amount)
		if status == domain.CommissionApproved {
			balance.Approved = balance.Approved.Add(entry.Amount)
		}
		if err := saveBalance(ctx, tx, balance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		entry.Status = status
		entry.DecidedBy = actorID
		entry.DecisionNote = note
		entry.DecidedAt = &at
		decided = mappers.ToDomainEntry(&entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decided, nil
}

// SettlePayout allocates the payout amount first-in-first-out over APPROVED entries, moves fully
// covered entries to PAID and completes the payout. Completed payouts are returned as is.
// With allowFailed a FAILED payout (expired while the provider was still working) is
// re-reserved and settled if the available balance still covers it.
func (r *DefaultLedgerRepository) SettlePayout(ctx context.Context, payoutID, providerRef string, at time.Time, allowFailed bool) ([]string, error) {
	var entryIDs []string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var payout models.PayoutModel
		if err := tx.Clauses(forUpdate()).First(&payout, "id = ?", payoutID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrPayoutNotFound
			}
			return err
		}

		switch payout.Status {
		case domain.PayoutCompleted:
			var allocations []models.PayoutAllocationModel
			if err := tx.Where("payout_id = ?", payoutID).Find(&allocations).Error; err != nil {
				return err
			}
			entryIDs = lo.Map(allocations, func(a models.PayoutAllocationModel, _ int) string { return a.EntryID })
			return nil
		case domain.PayoutFailed:
			if !allowFailed {
				return domain.ErrPayoutTerminal
			}
		}

		balance, err := lockBalance(ctx, tx, payout.AffiliateID, payout.Currency)
		if err != nil {
			return fmt.Errorf("failed to lock balance: %w", err)
		}
		if payout.Status == domain.PayoutFailed {
			if available(balance).LessThan(payout.Amount) {
				return domain.ErrReconcileConflict
			}
			balance.Reserved = balance.Reserved.Add(payout.Amount)
		}

		var entries []models.CommissionEntryModel
		if err := tx.Clauses(forUpdate()).
			Where("affiliate_id = ? AND currency = ? AND status = ?", payout.AffiliateID, payout.Currency, domain.CommissionApproved).
			Order("created_at ASC, id ASC").
			Find(&entries).Error; err != nil {
			return fmt.Errorf("failed to load approved entries: %w", err)
		}

		remaining := payout.Amount
		for i := range entries {
			if !remaining.IsPositive() {
				break
			}
			entry := &entries[i]
			open := entry.Amount.Sub(entry.SettledAmount)
			if !open.IsPositive() {
				continue
			}
			take := decimal.Min(open, remaining)
			entry.SettledAmount = entry.SettledAmount.Add(take)
			updates := map[string]interface{}{"settled_amount": entry.SettledAmount}
			if entry.SettledAmount.Equal(entry.Amount) {
				updates["status"] = domain.CommissionPaid
				updates["paid_at"] = at
			}
			if err := tx.Model(&models.CommissionEntryModel{}).Where("id = ?", entry.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("failed to settle entry %s: %w", entry.ID, err)
			}
			allocation := models.PayoutAllocationModel{
				ID:        uuid.New().String(),
				PayoutID:  payoutID,
				EntryID:   entry.ID,
				Amount:    take,
				CreatedAt: at,
			}
			if err := tx.Create(&allocation).Error; err != nil {
				return fmt.Errorf("failed to record allocation: %w", err)
			}
			entryIDs = append(entryIDs, entry.ID)
			remaining = remaining.Sub(take)
		}
		if remaining.IsPositive() {
			return fmt.Errorf("%w: %s short for payout %s", domain.ErrLedgerInconsistent, remaining, payoutID)
		}

		balance.Paid = balance.Paid.Add(payout.Amount)
		balance.Reserved = balance.Reserved.Sub(payout.Amount)
		if err := saveBalance(ctx, tx, balance); err != nil {
			return fmt.Errorf("failed to update balance: %w", err)
		}

		updates := map[string]interface{}{
			"status":          domain.PayoutCompleted,
			"completed_at":    at,
			"updated_at":      at,
			"next_attempt_at": nil,
			"last_error":      "",
		}
		if providerRef != "" {
			updates["provider_ref"] = providerRef
		}
		return tx.Model(&models.PayoutModel{}).Where("id = ?", payoutID).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return entryIDs, nil
}

func (r *DefaultLedgerRepository) GetBalance(ctx context.Context, affiliateID, currency string) (*domain.Balance, error) {
	var model models.AffiliateBalanceModel
	err := r.DB.WithContext(ctx).
		Where("affiliate_id = ? AND currency = ?", affiliateID, currency).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &domain.Balance{AffiliateID: affiliateID, Currency: currency}, nil
		}
		return nil, err
	}
	return mappers.ToDomainBalance(&model), nil
}

func (r *DefaultLedgerRepository) GetBalances(ctx context.Context, affiliateID string) ([]*domain.Balance, error) {
	var balanceModels []models.AffiliateBalanceModel
	if err := r.DB.WithContext(ctx).
		Where("affiliate_id = ?", affiliateID).
		Order("currency ASC").
		Find(&balanceModels).Error; err != nil {
		return nil, err
	}
	return lo.Map(balanceModels, func(m models.AffiliateBalanceModel, _ int) *domain.Balance {
		return mappers.ToDomainBalance(&m)
	}), nil
}

// RebuildBalance recomputes the materialized balance from entry history and open payouts.
func (r *DefaultLedgerRepository) RebuildBalance(ctx context.Context, affiliateID, currency string) (*domain.Balance, error) {
	var rebuilt *domain.Balance
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		balance, err := lockBalance(ctx, tx, affiliateID, currency)
		if err != nil {
			return err
		}

		var entries []models.CommissionEntryModel
		if err := tx.Where("affiliate_id = ? AND currency = ?", affiliateID, currency).Find(&entries).Error; err != nil {
			return err
		}
		var openPayouts []models.PayoutModel
		if err := tx.Where("affiliate_id = ? AND currency = ? AND status IN ?", affiliateID, currency,
			[]domain.PayoutStatus{domain.PayoutRequested, domain.PayoutProcessing}).
			Find(&openPayouts).Error; err != nil {
			return err
		}

		balance.Pending, balance.Approved, balance.Paid, balance.Reserved = decimal.Zero, decimal.Zero, decimal.Zero, decimal.Zero
		for _, e := range entries {
			switch e.Status {
			case domain.CommissionPending:
				balance.Pending = balance.Pending.Add(e.Amount)
			case domain.CommissionApproved, domain.CommissionPaid:
				balance.Approved = balance.Approved.Add(e.Amount)
			}
			balance.Paid = balance.Paid.Add(e.SettledAmount)
		}
		for _, p := range openPayouts {
			balance.Reserved = balance.Reserved.Add(p.Amount)
		}

		if err := saveBalance(ctx, tx, balance); err != nil {
			return err
		}
		rebuilt = mappers.ToDomainBalance(balance)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rebuilt, nil
}

func (r *DefaultLedgerRepository) ListEntries(ctx context.Context, filter domain.EntryFilter) ([]*domain.CommissionEntry, int64, error) {
	page, limit := normalizePage(filter.Page, filter.Limit)

	baseQuery := r.DB.WithContext(ctx).Model(&models.CommissionEntryModel{})
	if filter.AffiliateID != "" {
		baseQuery = baseQuery.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if filter.ConversionID != "" {
		baseQuery = baseQuery.Where("conversion_id = ?", filter.ConversionID)
	}
	if len(filter.Statuses) > 0 {
		baseQuery = baseQuery.Where("status IN ?", filter.Statuses)
	}
	if filter.FraudHold != nil {
		baseQuery = baseQuery.Where("fraud_hold = ?", *filter.FraudHold)
	}

	var total int64
	if err := baseQuery.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count entries: %w", err)
	}

	var entryModels []models.CommissionEntryModel
	if err := baseQuery.
		Order("created_at DESC, level ASC").
		Offset(int((page - 1) * limit)).
		Limit(int(limit)).
		Find(&entryModels).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to find entries: %w", err)
	}

	return lo.Map(entryModels, func(m models.CommissionEntryModel, _ int) *domain.CommissionEntry {
		return mappers.ToDomainEntry(&m)
	}), total, nil
}

func (r *DefaultLedgerRepository) ListMaturedPending(ctx context.Context, createdBefore time.Time, limit int) ([]*domain.CommissionEntry, error) {
	var entryModels []models.CommissionEntryModel
	if err := r.DB.WithContext(ctx).
		Where("status = ? AND fraud_hold = ? AND created_at < ?", domain.CommissionPending, false, createdBefore).
		Order("created_at ASC").
		Limit(limit).
		Find(&entryModels).Error; err != nil {
		return nil, fmt.Errorf("failed to list matured entries: %w", err)
	}
	return lo.Map(entryModels, func(m models.CommissionEntryModel, _ int) *domain.CommissionEntry {
		return mappers.ToDomainEntry(&m)
	}), nil
}

func (r *DefaultLedgerRepository) GetAllocations(ctx context.Context, payoutID string) ([]*domain.PayoutAllocation, error) {
	var allocationModels []models.PayoutAllocationModel
	if err := r.DB.WithContext(ctx).
		Where("payout_id = ?", payoutID).
		Order("created_at ASC").
		Find(&allocationModels).Error; err != nil {
		return nil, err
	}
	return lo.Map(allocationModels, func(m models.PayoutAllocationModel, _ int) *domain.PayoutAllocation {
		return mappers.ToDomainAllocation(&m)
	}), nil
}
