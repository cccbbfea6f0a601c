package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type CommissionStatus string

const (
	CommissionPending  CommissionStatus = "PENDING"
	CommissionApproved CommissionStatus = "APPROVED"
	CommissionRejected CommissionStatus = "REJECTED"
	CommissionPaid     CommissionStatus = "PAID"
)

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Status() (CommissionStatus, bool) {
	switch d {
	case DecisionApprove:
		return CommissionApproved, true
	case DecisionReject:
		return CommissionRejected, true
	}
	return "", false
}

// CommissionEntry is one affiliate's commission for one conversion at one level.
// (ConversionID, AffiliateID, Level) is unique.
type CommissionEntry struct {
	ID            string
	ConversionID  string
	AffiliateID   string
	Level         int
	Rate          decimal.Decimal
	Amount        decimal.Decimal
	SettledAmount decimal.Decimal
	Currency      string
	Status        CommissionStatus
	FraudHold     bool
	HoldReason    string
	DecidedBy     string
	DecisionNote  string
	CreatedAt     time.Time
	DecidedAt     *time.Time
	PaidAt        *time.Time
}

func (e *CommissionEntry) Unsettled() decimal.Decimal {
	return e.Amount.Sub(e.SettledAmount)
}

// Balance is the materialized aggregate of an affiliate's entries in one currency.
// Approved is cumulative: it keeps amounts that were later paid.
type Balance struct {
	AffiliateID string
	Currency    string
	Pending     decimal.Decimal
	Approved    decimal.Decimal
	Paid        decimal.Decimal
	Reserved    decimal.Decimal
	UpdatedAt   time.Time
}

// Available is what a new payout request may still claim.
func (b *Balance) Available() decimal.Decimal {
	return b.Approved.Sub(b.Paid).Sub(b.Reserved)
}

type EntryFilter struct {
	AffiliateID  string
	ConversionID string
	Statuses     []CommissionStatus
	FraudHold    *bool
	Page         int64
	Limit        int64
}

type LedgerRepository interface {
	// HasConversion reports whether a conversion record exists, whatever its outcome.
	HasConversion(ctx context.Context, conversionID string) (bool, error)
	// PersistConversion writes the conversion record and all of its entries atomically and adds
	// the amounts to the pending totals. A replay fails with ErrDuplicateConversion.
	PersistConversion(ctx context.Context, record *ConversionRecord, entries []*CommissionEntry) error
	// SaveConversionRecord stores an outcome without entries. A replay fails with ErrDuplicateConversion.
	SaveConversionRecord(ctx context.Context, record *ConversionRecord) error
	GetEntryByID(ctx context.Context, entryID string) (*CommissionEntry, error)
	DecideEntry(ctx context.Context, entryID string, status CommissionStatus, actorID, note string, at time.Time) (*CommissionEntry, error)
	// SettlePayout allocates the payout amount over approved entries and completes the payout.
	SettlePayout(ctx context.Context, payoutID, providerRef string, at time.Time, allowFailed bool) ([]string, error)
	GetBalance(ctx context.Context, affiliateID, currency string) (*Balance, error)
	GetBalances(ctx context.Context, affiliateID string) ([]*Balance, error)
	RebuildBalance(ctx context.Context, affiliateID, currency string) (*Balance, error)
	ListEntries(ctx context.Context, filter EntryFilter) ([]*CommissionEntry, int64, error)
	ListMaturedPending(ctx context.Context, createdBefore time.Time, limit int) ([]*CommissionEntry, error)
	GetAllocations(ctx context.Context, payoutID string) ([]*PayoutAllocation, error)
}
