package antifraud

import (
	"context"
	"errors"
	"fmt"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
)

// ============= SELF REFERRAL =============

// SelfReferralStrategy rejects a conversion made by an account that owns an affiliate of its own upline.
type SelfReferralStrategy struct{}

func NewSelfReferralStrategy() *SelfReferralStrategy {
	return &SelfReferralStrategy{}
}

func (s *SelfReferralStrategy) Name() string {
	return domain.ReasonSelfReferral
}

func (s *SelfReferralStrategy) GetDescription() string {
	return "Converting account must not belong to any affiliate of the upline"
}

func (s *SelfReferralStrategy) Check(ctx context.Context, input *VetInput) (*domain.CheckResult, error) {
	accountID := input.Conversion.AccountID
	result := &domain.CheckResult{
		RuleName: s.Name(),
		Passed:   true,
		Decision: domain.FraudPass,
		Message:  "converting account is not part of the upline",
	}
	if accountID == "" {
		return result, nil
	}

	for _, node := range input.Upline {
		if node.Affiliate.ID == accountID || node.Affiliate.AccountID == accountID {
			result.Passed = false
			result.Decision = domain.FraudRejected
			result.CurrentValue = node.Level
			result.Message = fmt.Sprintf("converting account owns the level %d affiliate", node.Level)
			result.Details = map[string]interface{}{
				"account_id":   accountID,
				"affiliate_id": node.Affiliate.ID,
			}
			return result, nil
		}
	}
	return result, nil
}

// ============= UPLINE CYCLE =============

// UplineCycleStrategy rejects a conversion whose upline could not be resolved because of a cycle.
type UplineCycleStrategy struct{}

func NewUplineCycleStrategy() *UplineCycleStrategy {
	return &UplineCycleStrategy{}
}

func (s *UplineCycleStrategy) Name() string {
	return domain.ReasonUplineCycle
}

func (s *UplineCycleStrategy) GetDescription() string {
	return "Upline must resolve without revisiting an affiliate"
}

func (s *UplineCycleStrategy) Check(ctx context.Context, input *VetInput) (*domain.CheckResult, error) {
	if errors.Is(input.UplineErr, domain.ErrCycleDetected) {
		return &domain.CheckResult{
			RuleName: s.Name(),
			Passed:   false,
			Decision: domain.FraudRejected,
			Message:  input.UplineErr.Error(),
			Details:  map[string]interface{}{"affiliate_id": input.AttributedAffiliateID},
		}, nil
	}
	return &domain.CheckResult{
		RuleName:     s.Name(),
		Passed:       true,
		Decision:     domain.FraudPass,
		CurrentValue: len(input.Upline),
		Message:      "upline resolved",
	}, nil
}

// ============= VELOCITY =============

// VelocityStrategy holds entries when an affiliate collects more conversions than the
// threshold inside the window ending at the conversion timestamp.
type VelocityStrategy struct {
	repo domain.AntiFraudRepository
}

func NewVelocityStrategy(repo domain.AntiFraudRepository) *VelocityStrategy {
	return &VelocityStrategy{repo: repo}
}

func (s *VelocityStrategy) Name() string {
	return domain.ReasonVelocity
}

func (s *VelocityStrategy) GetDescription() string {
	return "Limit on attributed conversions per affiliate within the velocity window"
}

func (s *VelocityStrategy) Check(ctx context.Context, input *VetInput) (*domain.CheckResult, error) {
	threshold := input.Settings.VelocityThreshold
	window := input.Settings.VelocityWindow
	to := input.Conversion.OccurredAt.UTC()
	from := to.Add(-window)

	others, err := s.repo.CountAttributedConversions(ctx, input.AttributedAffiliateID, from, to, input.Conversion.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count conversions for velocity: %w", err)
	}

	// the conversion under check counts too
	current := others + 1
	result := &domain.CheckResult{
		RuleName:     s.Name(),
		Passed:       current <= int64(threshold),
		Decision:     domain.FraudPass,
		CurrentValue: current,
		Threshold:    threshold,
		Details: map[string]interface{}{
			"window": window.String(),
		},
	}
	if result.Passed {
		result.Message = fmt.Sprintf("%d conversions within %s", current, window)
	} else {
		result.Decision = domain.FraudHold
		result.Message = fmt.Sprintf("%d conversions within %s exceed %d", current, window, threshold)
	}
	return result, nil
}
