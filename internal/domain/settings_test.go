package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() CommissionSettings {
	return CommissionSettings{
		LevelRates:        []decimal.Decimal{decimal.RequireFromString("0.10"), decimal.RequireFromString("0.05"), decimal.RequireFromString("0.02")},
		MaxDepth:          3,
		MaxAggregateRate:  decimal.RequireFromString("0.20"),
		AmountPrecision:   2,
		AttributionWindow: 30 * 24 * time.Hour,
		VelocityThreshold: 10,
		VelocityWindow:    time.Minute,
	}
}

func TestCommissionSettings_Validate(t *testing.T) {
	require.NoError(t, validSettings().Validate())

	notDecreasing := validSettings()
	notDecreasing.LevelRates[1] = decimal.RequireFromString("0.10")
	assert.Error(t, notDecreasing.Validate())

	overCap := validSettings()
	overCap.MaxAggregateRate = decimal.RequireFromString("0.15")
	assert.Error(t, overCap.Validate())

	noDepth := validSettings()
	noDepth.MaxDepth = 0
	assert.Error(t, noDepth.Validate())
}

func TestCommissionSettings_DepthBoundsRates(t *testing.T) {
	s := validSettings()
	s.MaxDepth = 2

	assert.Equal(t, 2, s.Depth())
	_, ok := s.RateFor(3)
	assert.False(t, ok)
	assert.True(t, s.RateSum().Equal(decimal.RequireFromString("0.15")))
}

func TestPayoutSettings_BackoffDoublesUpToCap(t *testing.T) {
	s := PayoutSettings{BaseBackoff: time.Second, MaxBackoff: 5 * time.Second}

	assert.Equal(t, time.Second, s.Backoff(1))
	assert.Equal(t, 2*time.Second, s.Backoff(2))
	assert.Equal(t, 4*time.Second, s.Backoff(3))
	assert.Equal(t, 5*time.Second, s.Backoff(4))
	assert.Equal(t, 5*time.Second, s.Backoff(10))
}

func TestBalance_Available(t *testing.T) {
	b := Balance{
		Approved: decimal.NewFromInt(150),
		Paid:     decimal.NewFromInt(50),
		Reserved: decimal.NewFromInt(30),
	}
	assert.True(t, b.Available().Equal(decimal.NewFromInt(70)))
}
