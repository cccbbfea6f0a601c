package antifraud

import (
	"context"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
)

// VetInput is everything a strategy may look at. Upline is empty when UplineErr is set.
type VetInput struct {
	Conversion            *domain.ConversionEvent
	AttributedAffiliateID string
	Upline                []domain.UplineNode
	UplineErr             error
	Settings              domain.CommissionSettings
}

// Strategy is one antifraud rule. Check returns a result with Passed=false and the Decision
// to apply when the rule trips.
type Strategy interface {
	Name() string
	Check(ctx context.Context, input *VetInput) (*domain.CheckResult, error)
	GetDescription() string
}
