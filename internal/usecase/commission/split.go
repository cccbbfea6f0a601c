package commission

import (
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/shopspring/decimal"
)

// Split computes the pending entries of a conversion for its upline. Each level earns
// truncate(gross × rate) at the configured precision; non-active affiliates earn nothing at their
// level and the walk continues past them. The running total never exceeds
// truncate(gross × MaxAggregateRate). The remainder is what truncation and the cap withheld from
// gross × Σ(rates of earning levels).
func Split(event *domain.ConversionEvent, upline []domain.UplineNode, settings domain.CommissionSettings) ([]*domain.CommissionEntry, decimal.Decimal) {
	precision := settings.AmountPrecision
	gross := event.GrossAmount
	ceiling := gross.Mul(settings.MaxAggregateRate).Truncate(precision)

	entries := make([]*domain.CommissionEntry, 0, len(upline))
	total := decimal.Zero
	appliedRates := decimal.Zero

	for _, node := range upline {
		rate, ok := settings.RateFor(node.Level)
		if !ok {
			break
		}
		if !node.Affiliate.IsActive() {
			continue
		}
		appliedRates = appliedRates.Add(rate)

		amount := gross.Mul(rate).Truncate(precision)
		if headroom := ceiling.Sub(total); amount.GreaterThan(headroom) {
			amount = headroom
		}
		if !amount.IsPositive() {
			continue
		}

		total = total.Add(amount)
		entries = append(entries, &domain.CommissionEntry{
			ConversionID:  event.ID,
			AffiliateID:   node.Affiliate.ID,
			Level:         node.Level,
			Rate:          rate,
			Amount:        amount,
			SettledAmount: decimal.Zero,
			Currency:      event.Currency,
			Status:        domain.CommissionPending,
		})
	}

	remainder := gross.Mul(appliedRates).Sub(total)
	return entries, remainder
}
