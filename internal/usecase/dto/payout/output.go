package payoutdto

import (
	"time"

	"github.com/shopspring/decimal"
)

type PayoutOutput struct {
	ID            string          `json:"id"`
	AffiliateID   string          `json:"affiliate_id"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Method        string          `json:"method"`
	Status        string          `json:"status"`
	ProviderRef   string          `json:"provider_ref,omitempty"`
	Attempts      int             `json:"attempts"`
	NextAttemptAt *time.Time      `json:"next_attempt_at,omitempty"`
	LastError     string          `json:"last_error,omitempty"`
	NeedsReview   bool            `json:"needs_review"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}
