package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Message struct {
	Key   []byte
	Value []byte
}

type PublisherPort interface {
	Publish(ctx context.Context, topic string, msgs ...Message) error
}

type CommissionEvent struct {
	Type         string          `json:"type"`
	EntryID      string          `json:"entry_id"`
	ConversionID string          `json:"conversion_id"`
	AffiliateID  string          `json:"affiliate_id"`
	Level        int             `json:"level"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
	FraudHold    bool            `json:"fraud_hold"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

type PayoutEvent struct {
	Type        string          `json:"type"`
	PayoutID    string          `json:"payout_id"`
	AffiliateID string          `json:"affiliate_id"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Status      string          `json:"status"`
	ProviderRef string          `json:"provider_ref,omitempty"`
	Error       string          `json:"error,omitempty"`
	OccurredAt  time.Time       `json:"occurred_at"`
}

// EventPublisher fans ledger changes out to downstream consumers (notifications, dashboards).
type EventPublisher interface {
	PublishCommissionEvents(ctx context.Context, events ...CommissionEvent) error
	PublishPayoutEvent(ctx context.Context, event PayoutEvent) error
}
