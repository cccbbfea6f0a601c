package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/antifraud"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

const EventCommissionCreated = "commission.created"

type Attributor interface {
	ResolveAttribution(ctx context.Context, visitorToken string, at time.Time) (string, bool, error)
}

type UplineResolver interface {
	ResolveUpline(ctx context.Context, affiliateID string, maxDepth int) ([]domain.UplineNode, error)
}

type Result struct {
	Outcome     domain.ConversionOutcome
	AffiliateID string
	Entries     []*domain.CommissionEntry
	Remainder   decimal.Decimal
	Reason      string
}

type CommissionEngine interface {
	Process(ctx context.Context, event *domain.ConversionEvent) (*Result, error)
}

type Engine struct {
	Ledger      domain.LedgerRepository
	Attribution Attributor
	Graph       UplineResolver
	Guard       antifraud.FraudGuard
	Publisher   domain.EventPublisher
	// Settings is read once per conversion, so a schedule change applies to the next event.
	Settings func() domain.CommissionSettings

	logger  *slog.Logger
	metrics *metrics.AffiliateMetrics
	now     func() time.Time
}

func NewEngine(
	ledger domain.LedgerRepository,
	attribution Attributor,
	graph UplineResolver,
	guard antifraud.FraudGuard,
	publisher domain.EventPublisher,
	settings func() domain.CommissionSettings,
	logger *slog.Logger,
	m *metrics.AffiliateMetrics,
) *Engine {
	return &Engine{
		Ledger:      ledger,
		Attribution: attribution,
		Graph:       graph,
		Guard:       guard,
		Publisher:   publisher,
		Settings:    settings,
		logger:      logger,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Process attributes the conversion, vets it and atomically books one entry per earning upline level.
// Non-commissioned outcomes are results, not errors; a cycle additionally returns an error wrapping
// domain.ErrCycleDetected so the graph gets repaired.
func (e *Engine) Process(ctx context.Context, event *domain.ConversionEvent) (*Result, error) {
	started := time.Now()
	if err := event.Validate(); err != nil {
		return nil, err
	}
	event.OccurredAt = event.OccurredAt.UTC()

	result, err := e.process(ctx, event)
	if result != nil {
		e.metrics.RecordConversion(string(result.Outcome), event.Currency, time.Since(started).Seconds())
	}
	if err != nil && !errors.Is(err, domain.ErrCycleDetected) {
		e.metrics.RecordError("commission")
	}
	return result, err
}

func (e *Engine) process(ctx context.Context, event *domain.ConversionEvent) (*Result, error) {
	settings := e.Settings()

	exists, err := e.Ledger.HasConversion(ctx, event.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check conversion %s: %w", event.ID, err)
	}
	if exists {
		return duplicate(""), nil
	}

	record := &domain.ConversionRecord{
		ID:           event.ID,
		VisitorToken: event.VisitorToken,
		AccountID:    event.AccountID,
		GrossAmount:  event.GrossAmount,
		Currency:     event.Currency,
		Remainder:    decimal.Zero,
		OccurredAt:   event.OccurredAt,
		ProcessedAt:  e.now(),
	}

	affiliateID, ok, err := e.Attribution.ResolveAttribution(ctx, event.VisitorToken, event.OccurredAt)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve attribution: %w", err)
	}
	if !ok {
		record.Outcome = domain.OutcomeNoAttribution
		if err := e.Ledger.SaveConversionRecord(ctx, record); err != nil {
			if errors.Is(err, domain.ErrDuplicateConversion) {
				return duplicate(""), nil
			}
			return nil, fmt.Errorf("failed to save conversion record: %w", err)
		}
		return &Result{Outcome: domain.OutcomeNoAttribution, Remainder: decimal.Zero, Reason: "no click within the attribution window"}, nil
	}
	record.AttributedAffiliateID = affiliateID

	upline, uplineErr := e.Graph.ResolveUpline(ctx, affiliateID, settings.Depth())
	if uplineErr != nil && !errors.Is(uplineErr, domain.ErrCycleDetected) {
		return nil, fmt.Errorf("failed to resolve upline of %s: %w", affiliateID, uplineErr)
	}

	verdict, err := e.Guard.Vet(ctx, &antifraud.VetInput{
		Conversion:            event,
		AttributedAffiliateID: affiliateID,
		Upline:                upline,
		UplineErr:             uplineErr,
		Settings:              settings,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to vet conversion %s: %w", event.ID, err)
	}

	if verdict.Rejected() {
		record.Outcome = domain.OutcomeRejected
		if err := e.Ledger.SaveConversionRecord(ctx, record); err != nil {
			if errors.Is(err, domain.ErrDuplicateConversion) {
				return duplicate(affiliateID), nil
			}
			return nil, fmt.Errorf("failed to save conversion record: %w", err)
		}
		result := &Result{Outcome: domain.OutcomeRejected, AffiliateID: affiliateID, Remainder: decimal.Zero, Reason: verdict.Reason}
		if uplineErr != nil {
			return result, fmt.Errorf("conversion %s: %w", event.ID, uplineErr)
		}
		return result, nil
	}

	entries, remainder := Split(event, upline, settings)
	now := e.now()
	for _, entry := range entries {
		entry.FraudHold = verdict.Held()
		entry.HoldReason = lo.Ternary(verdict.Held(), verdict.Reason, "")
		entry.CreatedAt = now
	}

	record.Remainder = remainder
	record.Outcome = outcomeOf(verdict, entries)

	if err := e.Ledger.PersistConversion(ctx, record, entries); err != nil {
		if errors.Is(err, domain.ErrDuplicateConversion) {
			return duplicate(affiliateID), nil
		}
		return nil, fmt.Errorf("failed to persist conversion %s: %w", event.ID, err)
	}

	e.afterCommit(ctx, event, entries, remainder)

	return &Result{
		Outcome:     record.Outcome,
		AffiliateID: affiliateID,
		Entries:     entries,
		Remainder:   remainder,
		Reason:      verdict.Reason,
	}, nil
}

func duplicate(affiliateID string) *Result {
	return &Result{Outcome: domain.OutcomeDuplicate, AffiliateID: affiliateID, Remainder: decimal.Zero}
}

func outcomeOf(verdict *domain.FraudVerdict, entries []*domain.CommissionEntry) domain.ConversionOutcome {
	switch {
	case len(entries) == 0:
		return domain.OutcomeNoEarners
	case verdict.Held():
		return domain.OutcomeFraudHeld
	default:
		return domain.OutcomeCommissioned
	}
}

func (e *Engine) afterCommit(ctx context.Context, event *domain.ConversionEvent, entries []*domain.CommissionEntry, remainder decimal.Decimal) {
	for _, entry := range entries {
		e.metrics.RecordCommissionEntry(entry.Currency, strconv.Itoa(entry.Level), entry.FraudHold, entry.Amount)
	}
	e.metrics.RecordRemainder(event.Currency, remainder)

	if e.Publisher == nil || len(entries) == 0 {
		return
	}
	events := lo.Map(entries, func(entry *domain.CommissionEntry, _ int) domain.CommissionEvent {
		return domain.CommissionEvent{
			Type:         EventCommissionCreated,
			EntryID:      entry.ID,
			ConversionID: entry.ConversionID,
			AffiliateID:  entry.AffiliateID,
			Level:        entry.Level,
			Amount:       entry.Amount,
			Currency:     entry.Currency,
			Status:       string(entry.Status),
			FraudHold:    entry.FraudHold,
			OccurredAt:   entry.CreatedAt,
		}
	})
	// entries are committed; a lost event is recoverable from the ledger
	if err := e.Publisher.PublishCommissionEvents(ctx, events...); err != nil {
		e.metrics.RecordError("publisher")
		e.logger.Error("failed to publish commission events", "conversion_id", event.ID, "error", err)
	}
}
