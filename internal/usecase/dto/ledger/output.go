package ledgerdto

import (
	"time"

	"github.com/shopspring/decimal"
)

type BalanceOutput struct {
	AffiliateID string          `json:"affiliate_id"`
	Currency    string          `json:"currency"`
	Pending     decimal.Decimal `json:"pending"`
	Approved    decimal.Decimal `json:"approved"`
	Paid        decimal.Decimal `json:"paid"`
	Reserved    decimal.Decimal `json:"reserved"`
	Available   decimal.Decimal `json:"available"`
}

type EntryOutput struct {
	ID            string          `json:"id"`
	ConversionID  string          `json:"conversion_id"`
	AffiliateID   string          `json:"affiliate_id"`
	Level         int             `json:"level"`
	Rate          decimal.Decimal `json:"rate"`
	Amount        decimal.Decimal `json:"amount"`
	SettledAmount decimal.Decimal `json:"settled_amount"`
	Currency      string          `json:"currency"`
	Status        string          `json:"status"`
	FraudHold     bool            `json:"fraud_hold"`
	HoldReason    string          `json:"hold_reason,omitempty"`
	DecidedBy     string          `json:"decided_by,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	DecidedAt     *time.Time      `json:"decided_at,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
}

type EntriesOutput struct {
	Entries []EntryOutput `json:"entries"`
	Total   int64         `json:"total"`
	Page    int64         `json:"page"`
	Limit   int64         `json:"limit"`
}
