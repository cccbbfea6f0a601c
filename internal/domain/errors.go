package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAffiliateNotFound   = errors.New("affiliate not found")
	ErrAffiliateInactive   = errors.New("affiliate is not active")
	ErrReferralCodeTaken   = errors.New("referral code already taken")
	ErrCycleDetected       = errors.New("referral cycle detected")
	ErrAlreadyHasParent    = errors.New("affiliate already has a parent")
	ErrInvalidStatus       = errors.New("invalid affiliate status")
	ErrInvalidClick        = errors.New("invalid click")
	ErrInvalidConversion   = errors.New("invalid conversion event")
	ErrDuplicateConversion = errors.New("conversion already processed")
	ErrEntryNotFound       = errors.New("commission entry not found")
	ErrAlreadyDecided      = errors.New("commission entry already decided")
	ErrInvalidDecision     = errors.New("invalid decision")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidPayout       = errors.New("invalid payout request")
	ErrPayoutNotFound      = errors.New("payout not found")
	ErrPayoutBusy          = errors.New("payout is being advanced")
	ErrPayoutTerminal      = errors.New("payout already finished")
	ErrReconcileConflict   = errors.New("late provider result cannot be applied")
	ErrLedgerInconsistent  = errors.New("ledger has less approved amount than the payout")
	ErrUnauthorized        = errors.New("admin identity required")
)

// ProviderError is returned by a PaymentProvider. Retryable failures may succeed on a later attempt.
type ProviderError struct {
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider (retryable=%t): %v", e.Retryable, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// ProviderFailure is what Advance reports after a failed dispatch attempt.
// Retryable is false once the payout has moved to FAILED.
type ProviderFailure struct {
	PayoutID  string
	Attempt   int
	Retryable bool
	Err       error
}

func (e *ProviderFailure) Error() string {
	return fmt.Sprintf("payout %s attempt %d failed (retryable=%t): %v", e.PayoutID, e.Attempt, e.Retryable, e.Err)
}

func (e *ProviderFailure) Unwrap() error {
	return e.Err
}
