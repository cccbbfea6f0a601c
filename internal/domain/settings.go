package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CommissionSettings is the commission schedule consumed at call time by the engine,
// the click tracker and the antifraud guard.
type CommissionSettings struct {
	LevelRates         []decimal.Decimal
	MaxDepth           int
	MaxAggregateRate   decimal.Decimal
	AmountPrecision    int32
	AttributionWindow  time.Duration
	VelocityThreshold  int
	VelocityWindow     time.Duration
	ApprovalHoldPeriod time.Duration
}

// Depth is the number of levels that can earn.
func (s CommissionSettings) Depth() int {
	if s.MaxDepth < len(s.LevelRates) {
		return s.MaxDepth
	}
	return len(s.LevelRates)
}

// RateFor returns the rate of a 1-based level.
func (s CommissionSettings) RateFor(level int) (decimal.Decimal, bool) {
	if level < 1 || level > s.Depth() {
		return decimal.Zero, false
	}
	return s.LevelRates[level-1], true
}

// RateSum is the sum of the rates of all earning levels.
func (s CommissionSettings) RateSum() decimal.Decimal {
	sum := decimal.Zero
	for level := 1; level <= s.Depth(); level++ {
		rate, _ := s.RateFor(level)
		sum = sum.Add(rate)
	}
	return sum
}

func (s CommissionSettings) Validate() error {
	if s.MaxDepth < 1 {
		return errors.New("max_depth must be at least 1")
	}
	if len(s.LevelRates) == 0 {
		return errors.New("level_rates must not be empty")
	}
	for i, rate := range s.LevelRates {
		if !rate.IsPositive() {
			return fmt.Errorf("level %d rate must be positive", i+1)
		}
		if i > 0 && !rate.LessThan(s.LevelRates[i-1]) {
			return fmt.Errorf("level %d rate must be lower than level %d rate", i+1, i)
		}
	}
	if !s.MaxAggregateRate.IsPositive() || s.MaxAggregateRate.GreaterThan(decimal.NewFromInt(1)) {
		return errors.New("max_aggregate_rate must be in (0, 1]")
	}
	if s.RateSum().GreaterThan(s.MaxAggregateRate) {
		return fmt.Errorf("sum of level rates %s exceeds max_aggregate_rate %s", s.RateSum(), s.MaxAggregateRate)
	}
	if s.AmountPrecision < 0 {
		return errors.New("amount_precision must not be negative")
	}
	if s.AttributionWindow <= 0 {
		return errors.New("attribution_window must be positive")
	}
	if s.VelocityThreshold <= 0 || s.VelocityWindow <= 0 {
		return errors.New("velocity_threshold and velocity_window must be positive")
	}
	return nil
}

type PayoutSettings struct {
	MinAmount         decimal.Decimal
	MaxAttempts       int
	BaseBackoff       time.Duration
	MaxBackoff        time.Duration
	DispatchTimeout   time.Duration
	ProcessingTimeout time.Duration
}

// Backoff is the delay before the next attempt after `attempt` failed attempts.
func (s PayoutSettings) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := s.BaseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if s.MaxBackoff > 0 && delay >= s.MaxBackoff {
			return s.MaxBackoff
		}
	}
	if s.MaxBackoff > 0 && delay > s.MaxBackoff {
		return s.MaxBackoff
	}
	return delay
}

func (s PayoutSettings) Validate() error {
	if s.MaxAttempts < 1 {
		return errors.New("max_attempts must be at least 1")
	}
	if s.BaseBackoff <= 0 {
		return errors.New("base_backoff must be positive")
	}
	if s.MinAmount.IsNegative() {
		return errors.New("min_amount must not be negative")
	}
	if s.ProcessingTimeout <= 0 || s.DispatchTimeout <= 0 {
		return errors.New("dispatch_timeout and processing_timeout must be positive")
	}
	return nil
}
