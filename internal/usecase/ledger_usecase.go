package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/metrics"
	ledgerdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/ledger"
	"github.com/samber/lo"
)

const (
	EventCommissionDecided = "commission.decided"
	EventCommissionPaid    = "commission.paid"

	AutoApproveActor     = "system:auto-approve"
	autoApproveBatchSize = 500
)

type LedgerUsecase interface {
	Decide(ctx context.Context, input *ledgerdto.DecideInput) (*domain.CommissionEntry, error)
	MarkPaid(ctx context.Context, payoutID, providerRef string, allowFailed bool) ([]string, error)
	BalanceOf(ctx context.Context, affiliateID, currency string) (*domain.Balance, error)
	Balances(ctx context.Context, affiliateID string) ([]*domain.Balance, error)
	RebuildBalance(ctx context.Context, affiliateID, currency string) (*domain.Balance, error)
	ListEntries(ctx context.Context, input *ledgerdto.ListEntriesInput) ([]*domain.CommissionEntry, int64, error)
	AutoApproveMatured(ctx context.Context, now time.Time) (int, error)
}

type DefaultLedgerUsecase struct {
	LedgerRepo domain.LedgerRepository
	Publisher  domain.EventPublisher
	Settings   func() domain.CommissionSettings
	logger     *slog.Logger
	metrics    *metrics.AffiliateMetrics
	now        func() time.Time
}

func NewDefaultLedgerUsecase(
	ledgerRepo domain.LedgerRepository,
	publisher domain.EventPublisher,
	settings func() domain.CommissionSettings,
	logger *slog.Logger,
	m *metrics.AffiliateMetrics,
) *DefaultLedgerUsecase {
	return &DefaultLedgerUsecase{
		LedgerRepo: ledgerRepo,
		Publisher:  publisher,
		Settings:   settings,
		logger:     logger,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Decide is the one-shot admin decision on a pending entry. Fraud-held entries are decided the same way.
func (uc *DefaultLedgerUsecase) Decide(ctx context.Context, input *ledgerdto.DecideInput) (*domain.CommissionEntry, error) {
	if input.AdminID == "" {
		return nil, domain.ErrUnauthorized
	}
	status, ok := domain.Decision(input.Decision).Status()
	if !ok {
		return nil, domain.ErrInvalidDecision
	}
	return uc.decide(ctx, input.EntryID, status, input.AdminID, input.Note, "admin")
}

func (uc *DefaultLedgerUsecase) decide(ctx context.Context, entryID string, status domain.CommissionStatus, actorID, note, actorKind string) (*domain.CommissionEntry, error) {
	entry, err := uc.LedgerRepo.DecideEntry(ctx, entryID, status, actorID, note, uc.now())
	if err != nil {
		return nil, err
	}

	uc.metrics.RecordEntryDecision(string(status), actorKind)
	uc.logger.Info("commission entry decided",
		"entry_id", entry.ID,
		"affiliate_id", entry.AffiliateID,
		"status", status,
		"actor_id", actorID)
	uc.publish(ctx, EventCommissionDecided, entry)
	return entry, nil
}

// MarkPaid settles a payout against approved entries. Only the payout manager calls it.
func (uc *DefaultLedgerUsecase) MarkPaid(ctx context.Context, payoutID, providerRef string, allowFailed bool) ([]string, error) {
	entryIDs, err := uc.LedgerRepo.SettlePayout(ctx, payoutID, providerRef, uc.now(), allowFailed)
	if err != nil {
		if errors.Is(err, domain.ErrLedgerInconsistent) {
			uc.metrics.RecordError("ledger")
			uc.logger.Error("ledger cannot cover payout", "payout_id", payoutID, "error", err)
		}
		return nil, err
	}

	for _, entryID := range entryIDs {
		entry, err := uc.LedgerRepo.GetEntryByID(ctx, entryID)
		if err != nil {
			uc.logger.Error("failed to load settled entry", "entry_id", entryID, "error", err)
			continue
		}
		if entry.Status == domain.CommissionPaid {
			uc.publish(ctx, EventCommissionPaid, entry)
		}
	}
	return entryIDs, nil
}

func (uc *DefaultLedgerUsecase) BalanceOf(ctx context.Context, affiliateID, currency string) (*domain.Balance, error) {
	return uc.LedgerRepo.GetBalance(ctx, affiliateID, currency)
}

func (uc *DefaultLedgerUsecase) Balances(ctx context.Context, affiliateID string) ([]*domain.Balance, error) {
	return uc.LedgerRepo.GetBalances(ctx, affiliateID)
}

// RebuildBalance recomputes the materialized balance from entry history and logs any drift it repaired.
func (uc *DefaultLedgerUsecase) RebuildBalance(ctx context.Context, affiliateID, currency string) (*domain.Balance, error) {
	before, err := uc.LedgerRepo.GetBalance(ctx, affiliateID, currency)
	if err != nil {
		return nil, err
	}
	after, err := uc.LedgerRepo.RebuildBalance(ctx, affiliateID, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild balance: %w", err)
	}

	if !before.Pending.Equal(after.Pending) || !before.Approved.Equal(after.Approved) ||
		!before.Paid.Equal(after.Paid) || !before.Reserved.Equal(after.Reserved) {
		uc.metrics.RecordError("balance_drift")
		uc.logger.Warn("balance drift repaired",
			"affiliate_id", affiliateID,
			"currency", currency,
			"pending", fmt.Sprintf("%s -> %s", before.Pending, after.Pending),
			"approved", fmt.Sprintf("%s -> %s", before.Approved, after.Approved),
			"paid", fmt.Sprintf("%s -> %s", before.Paid, after.Paid),
			"reserved", fmt.Sprintf("%s -> %s", before.Reserved, after.Reserved))
	}
	return after, nil
}

func (uc *DefaultLedgerUsecase) ListEntries(ctx context.Context, input *ledgerdto.ListEntriesInput) ([]*domain.CommissionEntry, int64, error) {
	filter := domain.EntryFilter{
		AffiliateID: input.AffiliateID,
		FraudHold:   input.FraudHold,
		Page:        input.Page,
		Limit:       input.Limit,
		Statuses: lo.Map(input.Statuses, func(s string, _ int) domain.CommissionStatus {
			return domain.CommissionStatus(s)
		}),
	}
	return uc.LedgerRepo.ListEntries(ctx, filter)
}

// AutoApproveMatured approves pending entries older than the approval hold. Fraud-held entries
// always wait for an admin. Disabled when the hold period is zero.
func (uc *DefaultLedgerUsecase) AutoApproveMatured(ctx context.Context, now time.Time) (int, error) {
	hold := uc.Settings().ApprovalHoldPeriod
	if hold <= 0 {
		return 0, nil
	}

	entries, err := uc.LedgerRepo.ListMaturedPending(ctx, now.UTC().Add(-hold), autoApproveBatchSize)
	if err != nil {
		return 0, err
	}

	approved := 0
	for _, entry := range entries {
		if _, err := uc.decide(ctx, entry.ID, domain.CommissionApproved, AutoApproveActor, "approval hold elapsed", "system"); err != nil {
			// an admin got there first
			if errors.Is(err, domain.ErrAlreadyDecided) {
				continue
			}
			return approved, fmt.Errorf("failed to auto-approve entry %s: %w", entry.ID, err)
		}
		approved++
	}
	return approved, nil
}

func (uc *DefaultLedgerUsecase) publish(ctx context.Context, eventType string, entry *domain.CommissionEntry) {
	if uc.Publisher == nil {
		return
	}
	event := domain.CommissionEvent{
		Type:         eventType,
		EntryID:      entry.ID,
		ConversionID: entry.ConversionID,
		AffiliateID:  entry.AffiliateID,
		Level:        entry.Level,
		Amount:       entry.Amount,
		Currency:     entry.Currency,
		Status:       string(entry.Status),
		FraudHold:    entry.FraudHold,
		OccurredAt:   uc.now(),
	}
	if err := uc.Publisher.PublishCommissionEvents(ctx, event); err != nil {
		uc.metrics.RecordError("publisher")
		uc.logger.Error("failed to publish commission event", "entry_id", entry.ID, "type", eventType, "error", err)
	}
}
