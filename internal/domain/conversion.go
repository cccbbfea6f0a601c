package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ConversionEvent is delivered at-least-once by the booking system. ID is the booking id.
type ConversionEvent struct {
	ID           string          `json:"conversion_id"`
	VisitorToken string          `json:"visitor_token"`
	AccountID    string          `json:"account_id,omitempty"`
	GrossAmount  decimal.Decimal `json:"gross_amount"`
	Currency     string          `json:"currency"`
	OccurredAt   time.Time       `json:"timestamp"`
}

func (e *ConversionEvent) Validate() error {
	if e.ID == "" || e.Currency == "" || !e.GrossAmount.IsPositive() || e.OccurredAt.IsZero() {
		return ErrInvalidConversion
	}
	return nil
}

type ConversionOutcome string

const (
	OutcomeCommissioned  ConversionOutcome = "COMMISSIONED"
	OutcomeFraudHeld     ConversionOutcome = "FRAUD_HELD"
	OutcomeNoAttribution ConversionOutcome = "NO_ATTRIBUTION"
	OutcomeDuplicate     ConversionOutcome = "DUPLICATE"
	OutcomeRejected      ConversionOutcome = "REJECTED"
	// OutcomeNoEarners is an attributed conversion where no upline level earned anything.
	OutcomeNoEarners ConversionOutcome = "NO_EARNERS"
)

// ConversionRecord is the persisted, write-once trace of a processed conversion.
type ConversionRecord struct {
	ID                    string
	VisitorToken          string
	AccountID             string
	AttributedAffiliateID string
	GrossAmount           decimal.Decimal
	Currency              string
	Outcome               ConversionOutcome
	Remainder             decimal.Decimal
	OccurredAt            time.Time
	ProcessedAt           time.Time
}
