package payout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/pgtest"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase"
	affiliatedto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/affiliate"
	payoutdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/payout"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Dispatch(ctx context.Context, req domain.DispatchRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.PayoutEvent
}

func (p *recordingPublisher) PublishCommissionEvents(ctx context.Context, events ...domain.CommissionEvent) error {
	return nil
}

func (p *recordingPublisher) PublishPayoutEvent(ctx context.Context, event domain.PayoutEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

// flakyLedger fails the next MarkPaid calls, as a dropped database connection would.
type flakyLedger struct {
	Ledger
	failures int
}

func (l *flakyLedger) MarkPaid(ctx context.Context, payoutID, providerRef string, allowFailed bool) ([]string, error) {
	if l.failures > 0 {
		l.failures--
		return nil, errors.New("connection reset by peer")
	}
	return l.Ledger.MarkPaid(ctx, payoutID, providerRef, allowFailed)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	manager   *Manager
	ledger    *repository.DefaultLedgerRepository
	payouts   *repository.DefaultPayoutRepository
	graph     *usecase.DefaultReferralGraphUsecase
	provider  *mockProvider
	publisher *recordingPublisher
	clock     *clock
	settings  domain.PayoutSettings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := pgtest.NewDB(t)
	m := metrics.NewAffiliateMetrics(prometheus.NewRegistry())

	f := &fixture{
		ledger:    repository.NewDefaultLedgerRepository(db),
		payouts:   repository.NewDefaultPayoutRepository(db),
		provider:  &mockProvider{},
		publisher: &recordingPublisher{},
		clock:     &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)},
		settings: domain.PayoutSettings{
			MinAmount:         decimal.RequireFromString("10"),
			MaxAttempts:       2,
			BaseBackoff:       time.Minute,
			MaxBackoff:        time.Hour,
			DispatchTimeout:   time.Second,
			ProcessingTimeout: 10 * time.Minute,
		},
	}

	graph, err := usecase.NewDefaultReferralGraphUsecase(repository.NewDefaultAffiliateRepository(db), true, logger)
	require.NoError(t, err)
	f.graph = graph

	ledger := usecase.NewDefaultLedgerUsecase(f.ledger, f.publisher, func() domain.CommissionSettings { return domain.CommissionSettings{} }, logger, m)
	f.manager = NewManager(f.payouts, ledger, graph, f.provider, f.publisher, func() domain.PayoutSettings { return f.settings }, logger, m)
	f.manager.now = f.clock.Now
	return f
}

// affiliateWithApproved enrolls an affiliate and books one approved entry per amount.
func (f *fixture) affiliateWithApproved(t *testing.T, amounts ...string) *domain.Affiliate {
	t.Helper()
	ctx := context.Background()
	affiliate, err := f.graph.Enroll(ctx, &affiliatedto.EnrollInput{AccountID: uuid.New().String()})
	require.NoError(t, err)

	for i, amount := range amounts {
		conversionID := uuid.New().String()
		at := f.clock.Now().Add(time.Duration(i) * time.Second)
		entry := &domain.CommissionEntry{
			ConversionID:  conversionID,
			AffiliateID:   affiliate.ID,
			Level:         1,
			Rate:          decimal.RequireFromString("0.1"),
			Amount:        decimal.RequireFromString(amount),
			SettledAmount: decimal.Zero,
			Currency:      "USD",
			Status:        domain.CommissionPending,
			CreatedAt:     at,
		}
		record := &domain.ConversionRecord{
			ID:                    conversionID,
			VisitorToken:          "visitor",
			AttributedAffiliateID: affiliate.ID,
			GrossAmount:           entry.Amount.Mul(decimal.NewFromInt(10)),
			Currency:              "USD",
			Outcome:               domain.OutcomeCommissioned,
			Remainder:             decimal.Zero,
			OccurredAt:            at,
			ProcessedAt:           at,
		}
		require.NoError(t, f.ledger.PersistConversion(ctx, record, []*domain.CommissionEntry{entry}))
		_, err := f.ledger.DecideEntry(ctx, entry.ID, domain.CommissionApproved, "admin-1", "", at)
		require.NoError(t, err)
	}
	return affiliate
}

func (f *fixture) request(t *testing.T, affiliate *domain.Affiliate, amount string) *domain.PayoutRequest {
	t.Helper()
	payout, err := f.manager.RequestPayout(context.Background(), &payoutdto.RequestPayoutInput{
		AffiliateID: affiliate.ID,
		Amount:      decimal.RequireFromString(amount),
		Currency:    "USD",
		Method:      "bank",
	})
	require.NoError(t, err)
	return payout
}

func (f *fixture) assertBalance(t *testing.T, affiliateID, approved, paid, reserved string) {
	t.Helper()
	balance, err := f.ledger.GetBalance(context.Background(), affiliateID, "USD")
	require.NoError(t, err)
	assert.True(t, balance.Approved.Equal(decimal.RequireFromString(approved)), "approved %s", balance.Approved)
	assert.True(t, balance.Paid.Equal(decimal.RequireFromString(paid)), "paid %s", balance.Paid)
	assert.True(t, balance.Reserved.Equal(decimal.RequireFromString(reserved)), "reserved %s", balance.Reserved)
}

func TestRequestPayout_ReservesAvailableBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "100")

	payout := f.request(t, affiliate, "30")
	assert.Equal(t, domain.PayoutRequested, payout.Status)
	assert.NotEmpty(t, payout.ID)
	f.assertBalance(t, affiliate.ID, "100", "0", "30")

	_, err := f.manager.RequestPayout(ctx, &payoutdto.RequestPayoutInput{
		AffiliateID: affiliate.ID, Amount: decimal.RequireFromString("80"), Currency: "USD", Method: "bank",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	f.assertBalance(t, affiliate.ID, "100", "0", "30")
	assert.Equal(t, []string{EventPayoutRequested}, f.publisher.types())
}

func TestRequestPayout_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "100")

	cases := []*payoutdto.RequestPayoutInput{
		{AffiliateID: affiliate.ID, Amount: decimal.Zero, Currency: "USD", Method: "bank"},
		{AffiliateID: affiliate.ID, Amount: decimal.RequireFromString("5"), Currency: "USD", Method: "bank"},
		{AffiliateID: affiliate.ID, Amount: decimal.RequireFromString("50"), Method: "bank"},
	}
	for _, input := range cases {
		_, err := f.manager.RequestPayout(ctx, input)
		assert.ErrorIs(t, err, domain.ErrInvalidPayout)
	}

	require.NoError(t, f.graph.SetStatus(ctx, &affiliatedto.SetStatusInput{
		AdminID: "admin-1", AffiliateID: affiliate.ID, Status: string(domain.AffiliateSuspended), Reason: "review",
	}))
	_, err := f.manager.RequestPayout(ctx, &payoutdto.RequestPayoutInput{
		AffiliateID: affiliate.ID, Amount: decimal.RequireFromString("50"), Currency: "USD", Method: "bank",
	})
	assert.ErrorIs(t, err, domain.ErrAffiliateInactive)
	f.assertBalance(t, affiliate.ID, "100", "0", "0")
}

func TestRequestPayout_ConcurrentRequestsReserveOnce(t *testing.T) {
	f := newFixture(t)
	affiliate := f.affiliateWithApproved(t, "60", "40")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.manager.RequestPayout(context.Background(), &payoutdto.RequestPayoutInput{
				AffiliateID: affiliate.ID, Amount: decimal.RequireFromString("100"), Currency: "USD", Method: "bank",
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, domain.ErrInsufficientBalance) {
				rejected++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	f.assertBalance(t, affiliate.ID, "100", "0", "100")
}

func TestAdvance_SuccessSettlesEntries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "60", "40")
	payout := f.request(t, affiliate, "100")

	f.provider.On("Dispatch", mock.Anything, mock.MatchedBy(func(req domain.DispatchRequest) bool {
		return req.PayoutID == payout.ID && req.Amount.Equal(decimal.RequireFromString("100"))
	})).Return("prov-1", nil).Once()

	done, err := f.manager.Advance(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutCompleted, done.Status)
	assert.Equal(t, "prov-1", done.ProviderRef)
	assert.Equal(t, 1, done.Attempts)
	require.NotNil(t, done.CompletedAt)
	f.assertBalance(t, affiliate.ID, "100", "100", "0")

	entries, _, err := f.ledger.ListEntries(ctx, domain.EntryFilter{AffiliateID: affiliate.ID, Limit: 10})
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Equal(t, domain.CommissionPaid, entry.Status)
		assert.NotNil(t, entry.PaidAt)
	}

	_, err = f.manager.Advance(ctx, payout.ID)
	assert.ErrorIs(t, err, domain.ErrPayoutTerminal)
	f.provider.AssertExpectations(t)
	assert.Equal(t, []string{EventPayoutRequested, EventPayoutCompleted}, f.publisher.types())
}

func TestAdvance_PartialPayoutLeavesRemainderApproved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "60", "40")
	payout := f.request(t, affiliate, "70")
	f.provider.On("Dispatch", mock.Anything, mock.Anything).Return("prov-2", nil).Once()

	_, err := f.manager.Advance(ctx, payout.ID)
	require.NoError(t, err)
	f.assertBalance(t, affiliate.ID, "100", "70", "0")

	approved, _, err := f.ledger.ListEntries(ctx, domain.EntryFilter{
		AffiliateID: affiliate.ID,
		Statuses:    []domain.CommissionStatus{domain.CommissionApproved},
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, approved, 1)
	assert.True(t, approved[0].SettledAmount.Equal(decimal.RequireFromString("10")))

	next := f.request(t, affiliate, "30")
	assert.Equal(t, domain.PayoutRequested, next.Status)
}

func TestAdvance_RetriesWithBackoffThenFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "100")
	payout := f.request(t, affiliate, "50")

	transient := &domain.ProviderError{Retryable: true, Err: errors.New("503 service unavailable")}
	f.provider.On("Dispatch", mock.Anything, mock.Anything).Return("", transient).Twice()

	_, err := f.manager.Advance(ctx, payout.ID)
	var failure *domain.ProviderFailure
	require.ErrorAs(t, err, &failure)
	assert.True(t, failure.Retryable)
	assert.Equal(t, 1, failure.Attempt)

	retrying, err := f.payouts.GetPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutProcessing, retrying.Status)
	require.NotNil(t, retrying.NextAttemptAt)
	assert.True(t, retrying.NextAttemptAt.Equal(f.clock.Now().Add(time.Minute)))
	f.assertBalance(t, affiliate.ID, "100", "0", "50")

	advanced, err := f.manager.RunDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Zero(t, advanced)

	f.clock.Advance(2 * time.Minute)
	advanced, err = f.manager.RunDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, advanced)

	failed, err := f.payouts.GetPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutFailed, failed.Status)
	assert.Equal(t, 2, failed.Attempts)
	f.assertBalance(t, affiliate.ID, "100", "0", "0")
	f.provider.AssertExpectations(t)
	assert.Equal(t, []string{EventPayoutRequested, EventPayoutRetrying, EventPayoutFailed}, f.publisher.types())
}

func TestAdvance_PermanentErrorFailsImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "100")
	payout := f.request(t, affiliate, "50")

	f.provider.On("Dispatch", mock.Anything, mock.Anything).
		Return("", &domain.ProviderError{Retryable: false, Err: errors.New("account closed")}).Once()

	_, err := f.manager.Advance(ctx, payout.ID)
	var failure *domain.ProviderFailure
	require.ErrorAs(t, err, &failure)
	assert.False(t, failure.Retryable)

	failed, err := f.payouts.GetPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutFailed, failed.Status)
	assert.Contains(t, failed.LastError, "account closed")
	f.assertBalance(t, affiliate.ID, "100", "0", "0")
}

func TestExpireStuck_LateSuccessIsReconciled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "100")
	payout := f.request(t, affiliate, "40")

	// a worker claimed the payout and never came back
	_, err := f.payouts.Claim(ctx, payout.ID, 0, f.clock.Now())
	require.NoError(t, err)

	expired, err := f.manager.ExpireStuck(ctx, f.clock.Now().Add(5*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, expired)

	expired, err = f.manager.ExpireStuck(ctx, f.clock.Now().Add(11*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	f.assertBalance(t, affiliate.ID, "100", "0", "0")

	settled, err := f.manager.Reconcile(ctx, &payoutdto.ReconcileInput{PayoutID: payout.ID, ProviderRef: "late-1", Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutCompleted, settled.Status)
	f.assertBalance(t, affiliate.ID, "100", "40", "0")

	again, err := f.manager.Reconcile(ctx, &payoutdto.ReconcileInput{ProviderRef: "late-1", Succeeded: true})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutCompleted, again.Status)
	f.assertBalance(t, affiliate.ID, "100", "40", "0")
}

func TestExpireStuck_SettlesDispatchedPayout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "100")
	payout := f.request(t, affiliate, "100")

	f.manager.Ledger = &flakyLedger{Ledger: f.manager.Ledger, failures: 1}
	f.provider.On("Dispatch", mock.Anything, mock.Anything).Return("prov-1", nil).Once()

	_, err := f.manager.Advance(ctx, payout.ID)
	require.Error(t, err)

	dispatched, err := f.payouts.GetPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutProcessing, dispatched.Status)
	assert.Equal(t, "prov-1", dispatched.ProviderRef)
	require.NotNil(t, dispatched.DispatchedAt)
	f.assertBalance(t, affiliate.ID, "100", "0", "100")

	expired, err := f.manager.ExpireStuck(ctx, f.clock.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, expired)

	settled, err := f.payouts.GetPayoutByID(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutCompleted, settled.Status)
	assert.Equal(t, "prov-1", settled.ProviderRef)
	f.assertBalance(t, affiliate.ID, "100", "100", "0")

	_, err = f.manager.RequestPayout(ctx, &payoutdto.RequestPayoutInput{
		AffiliateID: affiliate.ID, Amount: decimal.RequireFromString("100"), Currency: "USD", Method: "bank",
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	f.provider.AssertExpectations(t)
}

func TestAdvance_DispatchedPayoutIsNotSentTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "100")
	payout := f.request(t, affiliate, "60")

	f.manager.Ledger = &flakyLedger{Ledger: f.manager.Ledger, failures: 1}
	f.provider.On("Dispatch", mock.Anything, mock.Anything).Return("prov-1", nil).Once()

	_, err := f.manager.Advance(ctx, payout.ID)
	require.Error(t, err)

	done, err := f.manager.Advance(ctx, payout.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutCompleted, done.Status)
	assert.Equal(t, 1, done.Attempts)
	f.assertBalance(t, affiliate.ID, "100", "60", "0")
	f.provider.AssertNumberOfCalls(t, "Dispatch", 1)
}

func TestReconcile_ConflictFlagsForReview(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "100")
	first := f.request(t, affiliate, "80")

	f.provider.On("Dispatch", mock.Anything, mock.Anything).
		Return("", &domain.ProviderError{Retryable: false, Err: errors.New("rejected")}).Once()
	_, err := f.manager.Advance(ctx, first.ID)
	require.Error(t, err)

	second := f.request(t, affiliate, "80")
	f.provider.On("Dispatch", mock.Anything, mock.Anything).Return("prov-second", nil).Once()
	_, err = f.manager.Advance(ctx, second.ID)
	require.NoError(t, err)

	_, err = f.manager.Reconcile(ctx, &payoutdto.ReconcileInput{PayoutID: first.ID, ProviderRef: "prov-first", Succeeded: true})
	assert.ErrorIs(t, err, domain.ErrReconcileConflict)

	flagged, err := f.payouts.GetPayoutByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutFailed, flagged.Status)
	assert.True(t, flagged.NeedsReview)
	f.assertBalance(t, affiliate.ID, "100", "80", "0")
}

func TestReconcile_FailureReleasesReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	affiliate := f.affiliateWithApproved(t, "100")
	payout := f.request(t, affiliate, "25")

	failed, err := f.manager.Reconcile(ctx, &payoutdto.ReconcileInput{PayoutID: payout.ID, Succeeded: false, Error: "bounced"})
	require.NoError(t, err)
	assert.Equal(t, domain.PayoutFailed, failed.Status)
	assert.Equal(t, "bounced", failed.LastError)
	f.assertBalance(t, affiliate.ID, "100", "0", "0")

	_, err = f.manager.Reconcile(ctx, &payoutdto.ReconcileInput{PayoutID: "missing", Succeeded: true})
	assert.ErrorIs(t, err, domain.ErrPayoutNotFound)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(errors.New("connection reset")))
	assert.True(t, isRetryable(context.DeadlineExceeded))
	assert.True(t, isRetryable(&domain.ProviderError{Retryable: true, Err: errors.New("429")}))
	assert.False(t, isRetryable(&domain.ProviderError{Retryable: false, Err: errors.New("400")}))
}
