package domain

import (
	"context"
	"time"
)

type FraudDecision string

const (
	FraudPass     FraudDecision = "PASS"
	FraudHold     FraudDecision = "HOLD"
	FraudRejected FraudDecision = "REJECTED"
)

const (
	ReasonSelfReferral = "self_referral"
	ReasonUplineCycle  = "upline_cycle"
	ReasonVelocity     = "velocity"
)

// CheckResult is the outcome of one antifraud rule.
type CheckResult struct {
	RuleName     string                 `json:"rule_name"`
	Passed       bool                   `json:"passed"`
	Decision     FraudDecision          `json:"decision"`
	CurrentValue interface{}            `json:"current_value,omitempty"`
	Threshold    interface{}            `json:"threshold,omitempty"`
	Message      string                 `json:"message"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

type FraudVerdict struct {
	Decision FraudDecision
	Reason   string
	Results  []*CheckResult
}

func (v *FraudVerdict) Rejected() bool { return v.Decision == FraudRejected }
func (v *FraudVerdict) Held() bool     { return v.Decision == FraudHold }

type FraudAuditLog struct {
	ID               string
	ConversionID     string
	AffiliateID      string
	Decision         FraudDecision
	Reason           string
	Results          []*CheckResult
	NeedsGraphReview bool
	CheckedAt        time.Time
	CreatedAt        time.Time
}

type FraudAuditFilter struct {
	AffiliateID      string
	ConversionID     string
	OnlyFlagged      bool
	NeedsGraphReview bool
	FromDate         *time.Time
	ToDate           *time.Time
	Limit            int
	Offset           int
}

type AntiFraudRepository interface {
	// CountAttributedConversions counts conversions credited to the affiliate in [from, to],
	// ignoring excludeConversionID.
	CountAttributedConversions(ctx context.Context, affiliateID string, from, to time.Time, excludeConversionID string) (int64, error)
	CreateAuditLog(ctx context.Context, log *FraudAuditLog) error
	GetAuditLogs(ctx context.Context, filter *FraudAuditFilter) ([]*FraudAuditLog, error)
}
