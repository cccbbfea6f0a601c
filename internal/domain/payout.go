package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type PayoutStatus string

const (
	PayoutRequested  PayoutStatus = "REQUESTED"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutCompleted  PayoutStatus = "COMPLETED"
	PayoutFailed     PayoutStatus = "FAILED"
)

func (s PayoutStatus) Terminal() bool {
	return s == PayoutCompleted || s == PayoutFailed
}

type PayoutRequest struct {
	ID                  string
	AffiliateID         string
	Amount              decimal.Decimal
	Currency            string
	Method              string
	Status              PayoutStatus
	ProviderRef         string
	Attempts            int
	NextAttemptAt       *time.Time
	ProcessingStartedAt *time.Time
	DispatchedAt        *time.Time
	LastError           string
	NeedsReview         bool
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
}

type PayoutAllocation struct {
	ID        string
	PayoutID  string
	EntryID   string
	Amount    decimal.Decimal
	CreatedAt time.Time
}

type PayoutRepository interface {
	// CreateWithReservation checks the available balance and reserves the amount in one transaction.
	CreateWithReservation(ctx context.Context, payout *PayoutRequest) error
	GetPayoutByID(ctx context.Context, payoutID string) (*PayoutRequest, error)
	GetPayoutByProviderRef(ctx context.Context, providerRef string) (*PayoutRequest, error)
	// Claim moves the payout to PROCESSING and bumps its attempt counter if nobody else did.
	Claim(ctx context.Context, payoutID string, expectedAttempts int, now time.Time) (*PayoutRequest, error)
	// MarkDispatched stores the provider reference of a processing payout before it is settled.
	MarkDispatched(ctx context.Context, payoutID, providerRef string, at time.Time) error
	ScheduleRetry(ctx context.Context, payoutID string, attempts int, nextAttemptAt time.Time, lastErr string) error
	// FailAndRelease fails a non-terminal payout and releases its reservation.
	FailAndRelease(ctx context.Context, payoutID, lastErr string, now time.Time) (bool, error)
	MarkNeedsReview(ctx context.Context, payoutID, reason string) error
	ListDue(ctx context.Context, now time.Time, limit int) ([]*PayoutRequest, error)
	// ListStuck returns processing payouts without a scheduled retry claimed before startedBefore,
	// dispatched ones included.
	ListStuck(ctx context.Context, startedBefore time.Time, limit int) ([]*PayoutRequest, error)
	GetPayoutsByAffiliateID(ctx context.Context, affiliateID string, page, limit int64) ([]*PayoutRequest, int64, error)
}

type DispatchRequest struct {
	PayoutID string
	Amount   decimal.Decimal
	Currency string
	Method   string
}

// PaymentProvider is the external rail a payout is handed to.
type PaymentProvider interface {
	Dispatch(ctx context.Context, req DispatchRequest) (string, error)
}
