package antifraud

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/metrics"
)

type FraudGuard interface {
	Vet(ctx context.Context, input *VetInput) (*domain.FraudVerdict, error)
	ListAuditLogs(ctx context.Context, filter *domain.FraudAuditFilter) ([]*domain.FraudAuditLog, error)
}

// Engine runs the registered strategies in registration order; the first rule that does not pass decides.
type Engine struct {
	repo       domain.AntiFraudRepository
	strategies []Strategy
	logger     *slog.Logger
	metrics    *metrics.AffiliateMetrics
	now        func() time.Time
}

func NewEngine(repo domain.AntiFraudRepository, logger *slog.Logger, m *metrics.AffiliateMetrics) *Engine {
	return &Engine{
		repo:    repo,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// NewDefaultEngine registers the built-in rules in priority order:
// self-referral and upline cycles reject, velocity only holds.
func NewDefaultEngine(repo domain.AntiFraudRepository, logger *slog.Logger, m *metrics.AffiliateMetrics) *Engine {
	engine := NewEngine(repo, logger, m)
	engine.RegisterStrategy(NewSelfReferralStrategy())
	engine.RegisterStrategy(NewUplineCycleStrategy())
	engine.RegisterStrategy(NewVelocityStrategy(repo))
	return engine
}

func (e *Engine) RegisterStrategy(strategy Strategy) {
	e.strategies = append(e.strategies, strategy)
	e.logger.Debug("registered antifraud strategy", "name", strategy.Name())
}

func (e *Engine) Vet(ctx context.Context, input *VetInput) (*domain.FraudVerdict, error) {
	verdict := &domain.FraudVerdict{
		Decision: domain.FraudPass,
		Results:  make([]*domain.CheckResult, 0, len(e.strategies)),
	}

	for _, strategy := range e.strategies {
		result, err := strategy.Check(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("antifraud rule %s: %w", strategy.Name(), err)
		}
		verdict.Results = append(verdict.Results, result)

		if !result.Passed {
			verdict.Decision = result.Decision
			verdict.Reason = result.RuleName
			break
		}
	}

	e.metrics.RecordFraudVerdict(string(verdict.Decision), verdict.Reason)
	if verdict.Decision != domain.FraudPass {
		e.logger.Warn("conversion flagged by antifraud",
			"conversion_id", input.Conversion.ID,
			"affiliate_id", input.AttributedAffiliateID,
			"decision", verdict.Decision,
			"reason", verdict.Reason)
	}

	e.saveAuditLog(ctx, input, verdict)
	return verdict, nil
}

// saveAuditLog is best effort: a lost audit row must not block commissions.
func (e *Engine) saveAuditLog(ctx context.Context, input *VetInput, verdict *domain.FraudVerdict) {
	log := &domain.FraudAuditLog{
		ConversionID:     input.Conversion.ID,
		AffiliateID:      input.AttributedAffiliateID,
		Decision:         verdict.Decision,
		Reason:           verdict.Reason,
		Results:          verdict.Results,
		NeedsGraphReview: verdict.Reason == domain.ReasonUplineCycle,
		CheckedAt:        e.now(),
	}
	if err := e.repo.CreateAuditLog(ctx, log); err != nil {
		e.metrics.RecordError("fraud_audit")
		e.logger.Error("failed to save fraud audit log", "conversion_id", input.Conversion.ID, "error", err)
	}
}

func (e *Engine) ListAuditLogs(ctx context.Context, filter *domain.FraudAuditFilter) ([]*domain.FraudAuditLog, error) {
	if filter == nil {
		filter = &domain.FraudAuditFilter{}
	}
	return e.repo.GetAuditLogs(ctx, filter)
}
