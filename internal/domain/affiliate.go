package domain

import (
	"context"
	"time"
)

type AffiliateStatus string

const (
	AffiliatePending   AffiliateStatus = "PENDING"
	AffiliateActive    AffiliateStatus = "ACTIVE"
	AffiliateSuspended AffiliateStatus = "SUSPENDED"
	AffiliateBanned    AffiliateStatus = "BANNED"
)

func (s AffiliateStatus) Valid() bool {
	switch s {
	case AffiliatePending, AffiliateActive, AffiliateSuspended, AffiliateBanned:
		return true
	}
	return false
}

// Affiliate is a node of the referral forest. ParentID points at the immediate upline.
type Affiliate struct {
	ID           string
	AccountID    string
	ReferralCode string
	ParentID     *string
	Status       AffiliateStatus
	StatusReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (a *Affiliate) IsActive() bool {
	return a.Status == AffiliateActive
}

func (a *Affiliate) HasParent() bool {
	return a.ParentID != nil && *a.ParentID != ""
}

// UplineNode is one hop of a resolved upline. Level 1 is the attributed affiliate itself.
type UplineNode struct {
	Affiliate *Affiliate
	Level     int
}

type AffiliateAuditLog struct {
	ID          string
	AffiliateID string
	ActorID     string
	Action      string
	Reason      string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// AffiliateGraphTx is the view of the affiliate table available while parent pointers are locked.
type AffiliateGraphTx interface {
	GetAffiliateByID(ctx context.Context, affiliateID string) (*Affiliate, error)
	SetParent(ctx context.Context, childID string, parentID *string) error
	CreateAuditLog(ctx context.Context, log *AffiliateAuditLog) error
}

type AffiliateRepository interface {
	CreateAffiliate(ctx context.Context, affiliate *Affiliate) error
	GetAffiliateByID(ctx context.Context, affiliateID string) (*Affiliate, error)
	GetAffiliateByCode(ctx context.Context, code string) (*Affiliate, error)
	GetChildren(ctx context.Context, parentID string, page, limit int64) ([]*Affiliate, int64, error)
	UpdateStatus(ctx context.Context, affiliateID string, status AffiliateStatus, reason string) error
	CreateAuditLog(ctx context.Context, log *AffiliateAuditLog) error
	// WithGraphLock locks the given affiliate rows (ascending id order) and runs fn in one transaction.
	WithGraphLock(ctx context.Context, affiliateIDs []string, fn func(tx AffiliateGraphTx) error) error
}
