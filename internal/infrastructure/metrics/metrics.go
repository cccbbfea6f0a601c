package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

// AffiliateMetrics holds every collector of the service. A nil *AffiliateMetrics records nothing.
type AffiliateMetrics struct {
	// Clicks
	ClicksRecordedTotal *prometheus.CounterVec

	// Conversions and commissions
	ConversionsProcessedTotal *prometheus.CounterVec
	ConversionProcessDuration *prometheus.HistogramVec
	CommissionEntriesTotal    *prometheus.CounterVec
	CommissionAmountTotal     *prometheus.CounterVec
	CommissionRemainderTotal  *prometheus.CounterVec

	// Fraud
	FraudVerdictsTotal *prometheus.CounterVec

	// Ledger
	EntryDecisionsTotal *prometheus.CounterVec

	// Payouts
	PayoutsRequestedTotal   *prometheus.CounterVec
	PayoutsFinishedTotal    *prometheus.CounterVec
	PayoutAttemptsTotal     *prometheus.CounterVec
	ProviderDispatchSeconds *prometheus.HistogramVec
	PayoutReconcileTotal    *prometheus.CounterVec

	// Consumer
	ConsumerMessagesTotal *prometheus.CounterVec

	// Errors
	ErrorsTotal *prometheus.CounterVec
}

// NewAffiliateMetrics registers the collectors on reg (prometheus.DefaultRegisterer in production).
func NewAffiliateMetrics(reg prometheus.Registerer) *AffiliateMetrics {
	factory := promauto.With(reg)
	return &AffiliateMetrics{
		ClicksRecordedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_clicks_recorded_total",
				Help: "Referral clicks recorded",
			},
			[]string{"result"},
		),

		ConversionsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_conversions_processed_total",
				Help: "Conversions processed by outcome",
			},
			[]string{"outcome", "currency"},
		),

		ConversionProcessDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "affiliate_conversion_process_duration_seconds",
				Help:    "Time to attribute, vet and persist a conversion",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),

		CommissionEntriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_commission_entries_total",
				Help: "Commission entries created",
			},
			[]string{"level", "fraud_hold"},
		),

		CommissionAmountTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_commission_amount_total",
				Help: "Sum of created commission amounts",
			},
			[]string{"currency", "level"},
		),

		CommissionRemainderTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_commission_remainder_total",
				Help: "Sum of amounts lost to truncation",
			},
			[]string{"currency"},
		),

		FraudVerdictsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_fraud_verdicts_total",
				Help: "Antifraud verdicts by decision and reason",
			},
			[]string{"decision", "reason"},
		),

		EntryDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_entry_decisions_total",
				Help: "Commission entry decisions",
			},
			[]string{"status", "actor"},
		),

		PayoutsRequestedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_payouts_requested_total",
				Help: "Payout requests by result",
			},
			[]string{"currency", "result"},
		),

		PayoutsFinishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_payouts_finished_total",
				Help: "Payouts reaching a terminal status",
			},
			[]string{"currency", "status"},
		),

		PayoutAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_payout_attempts_total",
				Help: "Provider dispatch attempts by result",
			},
			[]string{"result"},
		),

		ProviderDispatchSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "affiliate_provider_dispatch_seconds",
				Help:    "Payment provider dispatch latency",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"result"},
		),

		PayoutReconcileTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_payout_reconcile_total",
				Help: "Late provider results by outcome",
			},
			[]string{"outcome"},
		),

		ConsumerMessagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_consumer_messages_total",
				Help: "Conversion messages consumed by result",
			},
			[]string{"result"},
		),

		ErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "affiliate_errors_total",
				Help: "Internal errors by component",
			},
			[]string{"component"},
		),
	}
}

func (m *AffiliateMetrics) RecordClick(result string) {
	if m == nil {
		return
	}
	m.ClicksRecordedTotal.WithLabelValues(result).Inc()
}

func (m *AffiliateMetrics) RecordConversion(outcome, currency string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.ConversionsProcessedTotal.WithLabelValues(outcome, currency).Inc()
	m.ConversionProcessDuration.WithLabelValues(outcome).Observe(durationSeconds)
}

func (m *AffiliateMetrics) RecordCommissionEntry(currency, level string, fraudHold bool, amount decimal.Decimal) {
	if m == nil {
		return
	}
	hold := "false"
	if fraudHold {
		hold = "true"
	}
	m.CommissionEntriesTotal.WithLabelValues(level, hold).Inc()
	m.CommissionAmountTotal.WithLabelValues(currency, level).Add(amount.InexactFloat64())
}

func (m *AffiliateMetrics) RecordRemainder(currency string, remainder decimal.Decimal) {
	if m == nil || !remainder.IsPositive() {
		return
	}
	m.CommissionRemainderTotal.WithLabelValues(currency).Add(remainder.InexactFloat64())
}

func (m *AffiliateMetrics) RecordFraudVerdict(decision, reason string) {
	if m == nil {
		return
	}
	m.FraudVerdictsTotal.WithLabelValues(decision, reason).Inc()
}

func (m *AffiliateMetrics) RecordEntryDecision(status, actor string) {
	if m == nil {
		return
	}
	m.EntryDecisionsTotal.WithLabelValues(status, actor).Inc()
}

func (m *AffiliateMetrics) RecordPayoutRequested(currency, result string) {
	if m == nil {
		return
	}
	m.PayoutsRequestedTotal.WithLabelValues(currency, result).Inc()
}

func (m *AffiliateMetrics) RecordPayoutFinished(currency, status string) {
	if m == nil {
		return
	}
	m.PayoutsFinishedTotal.WithLabelValues(currency, status).Inc()
}

func (m *AffiliateMetrics) RecordDispatch(result string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.PayoutAttemptsTotal.WithLabelValues(result).Inc()
	m.ProviderDispatchSeconds.WithLabelValues(result).Observe(durationSeconds)
}

func (m *AffiliateMetrics) RecordReconcile(outcome string) {
	if m == nil {
		return
	}
	m.PayoutReconcileTotal.WithLabelValues(outcome).Inc()
}

func (m *AffiliateMetrics) RecordConsumedMessage(result string) {
	if m == nil {
		return
	}
	m.ConsumerMessagesTotal.WithLabelValues(result).Inc()
}

func (m *AffiliateMetrics) RecordError(component string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component).Inc()
}
