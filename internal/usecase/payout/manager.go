package payout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/metrics"
	payoutdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/payout"
	"github.com/samber/lo"
)

const (
	EventPayoutRequested = "payout.requested"
	EventPayoutRetrying  = "payout.retrying"
	EventPayoutCompleted = "payout.completed"
	EventPayoutFailed    = "payout.failed"

	stuckReason = "processing timeout"
)

// Ledger is the part of the commission ledger the manager settles through.
type Ledger interface {
	MarkPaid(ctx context.Context, payoutID, providerRef string, allowFailed bool) ([]string, error)
}

type AffiliateLookup interface {
	GetAffiliate(ctx context.Context, affiliateID string) (*domain.Affiliate, error)
}

type PayoutManager interface {
	RequestPayout(ctx context.Context, input *payoutdto.RequestPayoutInput) (*domain.PayoutRequest, error)
	Advance(ctx context.Context, payoutID string) (*domain.PayoutRequest, error)
	ExpireStuck(ctx context.Context, now time.Time) (int, error)
	Reconcile(ctx context.Context, input *payoutdto.ReconcileInput) (*domain.PayoutRequest, error)
	RunDue(ctx context.Context, now time.Time, limit int) (int, error)
	GetPayout(ctx context.Context, payoutID string) (*domain.PayoutRequest, error)
	ListPayouts(ctx context.Context, affiliateID string, page, limit int64) ([]*domain.PayoutRequest, int64, error)
}

type Manager struct {
	Payouts    domain.PayoutRepository
	Ledger     Ledger
	Affiliates AffiliateLookup
	Provider   domain.PaymentProvider
	Publisher  domain.EventPublisher
	Settings   func() domain.PayoutSettings

	logger  *slog.Logger
	metrics *metrics.AffiliateMetrics
	now     func() time.Time
}

func NewManager(
	payouts domain.PayoutRepository,
	ledger Ledger,
	affiliates AffiliateLookup,
	provider domain.PaymentProvider,
	publisher domain.EventPublisher,
	settings func() domain.PayoutSettings,
	logger *slog.Logger,
	m *metrics.AffiliateMetrics,
) *Manager {
	return &Manager{
		Payouts:    payouts,
		Ledger:     ledger,
		Affiliates: affiliates,
		Provider:   provider,
		Publisher:  publisher,
		Settings:   settings,
		logger:     logger,
		metrics:    m,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RequestPayout reserves the amount against the available balance in one transaction.
// No payout row exists when the balance does not cover it.
func (m *Manager) RequestPayout(ctx context.Context, input *payoutdto.RequestPayoutInput) (*domain.PayoutRequest, error) {
	settings := m.Settings()
	switch {
	case !input.Amount.IsPositive():
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrInvalidPayout)
	case input.Amount.LessThan(settings.MinAmount):
		return nil, fmt.Errorf("%w: amount below minimum %s", domain.ErrInvalidPayout, settings.MinAmount)
	case input.Currency == "" || input.Method == "":
		return nil, fmt.Errorf("%w: currency and method are required", domain.ErrInvalidPayout)
	}

	affiliate, err := m.Affiliates.GetAffiliate(ctx, input.AffiliateID)
	if err != nil {
		return nil, err
	}
	if !affiliate.IsActive() {
		return nil, domain.ErrAffiliateInactive
	}

	now := m.now()
	payout := &domain.PayoutRequest{
		AffiliateID: affiliate.ID,
		Amount:      input.Amount,
		Currency:    input.Currency,
		Method:      input.Method,
		Status:      domain.PayoutRequested,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.Payouts.CreateWithReservation(ctx, payout); err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) {
			m.metrics.RecordPayoutRequested(input.Currency, "insufficient_balance")
		}
		return nil, err
	}

	m.metrics.RecordPayoutRequested(input.Currency, "reserved")
	m.logger.Info("payout requested", "payout_id", payout.ID, "affiliate_id", payout.AffiliateID, "amount", payout.Amount.String(), "currency", payout.Currency)
	m.publish(ctx, EventPayoutRequested, payout, "")
	return payout, nil
}

// Advance makes one dispatch attempt. The claim (status processing, attempts+1) commits before the
// provider is called so no ledger lock is held while the call is in flight.
func (m *Manager) Advance(ctx context.Context, payoutID string) (*domain.PayoutRequest, error) {
	settings := m.Settings()

	current, err := m.Payouts.GetPayoutByID(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if current.Status.Terminal() {
		return current, domain.ErrPayoutTerminal
	}
	if current.ProviderRef != "" {
		// the provider already accepted it, only the settlement is missing
		return m.settle(ctx, current, current.ProviderRef)
	}

	claimed, err := m.Payouts.Claim(ctx, payoutID, current.Attempts, m.now())
	if err != nil {
		return nil, err
	}

	dispatchCtx, cancel := context.WithTimeout(ctx, settings.DispatchTimeout)
	started := time.Now()
	providerRef, dispatchErr := m.Provider.Dispatch(dispatchCtx, domain.DispatchRequest{
		PayoutID: claimed.ID,
		Amount:   claimed.Amount,
		Currency: claimed.Currency,
		Method:   claimed.Method,
	})
	cancel()
	elapsed := time.Since(started).Seconds()

	if dispatchErr == nil {
		m.metrics.RecordDispatch("success", elapsed)
		if err := m.Payouts.MarkDispatched(ctx, claimed.ID, providerRef, m.now()); err != nil {
			m.metrics.RecordError("payout_dispatch")
			m.logger.Error("failed to record provider reference", "payout_id", claimed.ID, "provider_ref", providerRef, "error", err)
		}
		return m.settle(ctx, claimed, providerRef)
	}

	retryable := isRetryable(dispatchErr)
	m.metrics.RecordDispatch(lo.Ternary(retryable, "retryable", "fatal"), elapsed)

	if retryable && claimed.Attempts < settings.MaxAttempts {
		nextAt := m.now().Add(settings.Backoff(claimed.Attempts))
		if err := m.Payouts.ScheduleRetry(ctx, claimed.ID, claimed.Attempts, nextAt, dispatchErr.Error()); err != nil {
			return nil, fmt.Errorf("failed to schedule payout retry: %w", err)
		}
		claimed.NextAttemptAt = &nextAt
		claimed.LastError = dispatchErr.Error()
		m.logger.Warn("payout dispatch failed, retry scheduled",
			"payout_id", claimed.ID,
			"attempt", claimed.Attempts,
			"next_attempt_at", nextAt,
			"error", dispatchErr)
		m.publish(ctx, EventPayoutRetrying, claimed, dispatchErr.Error())
		return claimed, &domain.ProviderFailure{PayoutID: claimed.ID, Attempt: claimed.Attempts, Retryable: true, Err: dispatchErr}
	}

	if _, err := m.fail(ctx, claimed, dispatchErr.Error()); err != nil {
		return nil, err
	}
	return claimed, &domain.ProviderFailure{PayoutID: claimed.ID, Attempt: claimed.Attempts, Retryable: false, Err: dispatchErr}
}

// settle books a provider success. allowFailed covers a payout that expired while the provider was
// still working on it.
func (m *Manager) settle(ctx context.Context, payout *domain.PayoutRequest, providerRef string) (*domain.PayoutRequest, error) {
	entryIDs, err := m.Ledger.MarkPaid(ctx, payout.ID, providerRef, true)
	if err != nil {
		if errors.Is(err, domain.ErrReconcileConflict) {
			m.flagForReview(ctx, payout.ID, fmt.Sprintf("provider paid %s but the balance no longer covers it", providerRef))
		}
		return nil, fmt.Errorf("failed to settle payout %s: %w", payout.ID, err)
	}

	settled, err := m.Payouts.GetPayoutByID(ctx, payout.ID)
	if err != nil {
		return nil, err
	}
	m.metrics.RecordPayoutFinished(settled.Currency, string(domain.PayoutCompleted))
	m.logger.Info("payout completed", "payout_id", settled.ID, "provider_ref", providerRef, "entries", len(entryIDs))
	m.publish(ctx, EventPayoutCompleted, settled, "")
	return settled, nil
}

func (m *Manager) fail(ctx context.Context, payout *domain.PayoutRequest, reason string) (bool, error) {
	released, err := m.Payouts.FailAndRelease(ctx, payout.ID, reason, m.now())
	if err != nil {
		return false, fmt.Errorf("failed to release payout %s: %w", payout.ID, err)
	}
	if released {
		payout.Status = domain.PayoutFailed
		payout.LastError = reason
		m.metrics.RecordPayoutFinished(payout.Currency, string(domain.PayoutFailed))
		m.logger.Warn("payout failed, reservation released", "payout_id", payout.ID, "reason", reason)
		m.publish(ctx, EventPayoutFailed, payout, reason)
	}
	return released, nil
}

func (m *Manager) flagForReview(ctx context.Context, payoutID, reason string) {
	m.metrics.RecordReconcile("conflict")
	if err := m.Payouts.MarkNeedsReview(ctx, payoutID, reason); err != nil {
		m.logger.Error("failed to flag payout for review", "payout_id", payoutID, "error", err)
		return
	}
	m.logger.Error("payout needs manual review", "payout_id", payoutID, "reason", reason)
}

// ExpireStuck fails payouts whose dispatch has been in flight longer than the processing timeout.
// A late provider result for them goes through Reconcile. Payouts the provider already accepted are
// settled instead and do not count as expired.
func (m *Manager) ExpireStuck(ctx context.Context, now time.Time) (int, error) {
	stuck, err := m.Payouts.ListStuck(ctx, now.UTC().Add(-m.Settings().ProcessingTimeout), 100)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, payout := range stuck {
		if payout.ProviderRef != "" {
			if _, err := m.settle(ctx, payout, payout.ProviderRef); err != nil {
				m.metrics.RecordError("payout_worker")
				m.logger.Error("failed to settle dispatched payout", "payout_id", payout.ID, "provider_ref", payout.ProviderRef, "error", err)
			}
			continue
		}
		released, err := m.fail(ctx, payout, stuckReason)
		if err != nil {
			return expired, err
		}
		if released {
			expired++
		}
	}
	return expired, nil
}

// Reconcile applies a late provider result. It is idempotent: a completed payout stays completed and
// a success for an expired payout is settled once if the balance still covers it.
func (m *Manager) Reconcile(ctx context.Context, input *payoutdto.ReconcileInput) (*domain.PayoutRequest, error) {
	var (
		payout *domain.PayoutRequest
		err    error
	)
	if input.PayoutID != "" {
		payout, err = m.Payouts.GetPayoutByID(ctx, input.PayoutID)
	} else {
		payout, err = m.Payouts.GetPayoutByProviderRef(ctx, input.ProviderRef)
	}
	if err != nil {
		return nil, err
	}

	if !input.Succeeded {
		switch payout.Status {
		case domain.PayoutCompleted:
			m.flagForReview(ctx, payout.ID, "provider reported failure for a completed payout")
			return payout, domain.ErrReconcileConflict
		case domain.PayoutFailed:
			m.metrics.RecordReconcile("noop")
			return payout, nil
		}
		reason := input.Error
		if reason == "" {
			reason = "provider reported failure"
		}
		if _, err := m.fail(ctx, payout, reason); err != nil {
			return nil, err
		}
		m.metrics.RecordReconcile("failed")
		return m.Payouts.GetPayoutByID(ctx, payout.ID)
	}

	if payout.Status == domain.PayoutCompleted {
		m.metrics.RecordReconcile("noop")
		return payout, nil
	}

	settled, err := m.settle(ctx, payout, input.ProviderRef)
	if err != nil {
		if errors.Is(err, domain.ErrReconcileConflict) {
			return nil, domain.ErrReconcileConflict
		}
		return nil, err
	}
	m.metrics.RecordReconcile("settled")
	return settled, nil
}

// RunDue advances payouts that are waiting for their first or next attempt.
func (m *Manager) RunDue(ctx context.Context, now time.Time, limit int) (int, error) {
	due, err := m.Payouts.ListDue(ctx, now.UTC(), limit)
	if err != nil {
		return 0, err
	}

	advanced := 0
	for _, payout := range due {
		if ctx.Err() != nil {
			return advanced, ctx.Err()
		}
		_, err := m.Advance(ctx, payout.ID)
		var failure *domain.ProviderFailure
		switch {
		case err == nil, errors.As(err, &failure):
			advanced++
		case errors.Is(err, domain.ErrPayoutBusy), errors.Is(err, domain.ErrPayoutTerminal):
		default:
			m.metrics.RecordError("payout_worker")
			m.logger.Error("failed to advance payout", "payout_id", payout.ID, "error", err)
		}
	}
	return advanced, nil
}

func (m *Manager) GetPayout(ctx context.Context, payoutID string) (*domain.PayoutRequest, error) {
	return m.Payouts.GetPayoutByID(ctx, payoutID)
}

func (m *Manager) ListPayouts(ctx context.Context, affiliateID string, page, limit int64) ([]*domain.PayoutRequest, int64, error) {
	return m.Payouts.GetPayoutsByAffiliateID(ctx, affiliateID, page, limit)
}

func (m *Manager) publish(ctx context.Context, eventType string, payout *domain.PayoutRequest, reason string) {
	if m.Publisher == nil {
		return
	}
	event := domain.PayoutEvent{
		Type:        eventType,
		PayoutID:    payout.ID,
		AffiliateID: payout.AffiliateID,
		Amount:      payout.Amount,
		Currency:    payout.Currency,
		Status:      string(payout.Status),
		ProviderRef: payout.ProviderRef,
		Error:       reason,
		OccurredAt:  m.now(),
	}
	if err := m.Publisher.PublishPayoutEvent(ctx, event); err != nil {
		m.metrics.RecordError("publisher")
		m.logger.Error("failed to publish payout event", "payout_id", payout.ID, "type", eventType, "error", err)
	}
}

// isRetryable treats anything that is not an explicit non-retryable provider error as transient.
func isRetryable(err error) bool {
	var providerErr *domain.ProviderError
	if errors.As(err, &providerErr) {
		return providerErr.Retryable
	}
	return true
}
