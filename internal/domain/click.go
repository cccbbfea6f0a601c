package domain

import (
	"context"
	"time"
)

// ClickEvent is write-once. ExpiresAt closes the attribution window opened by the click.
type ClickEvent struct {
	ID            string
	ReferralCode  string
	AffiliateID   string
	VisitorToken  string
	IPHash        string
	UserAgentHash string
	LandingURL    string
	ClickedAt     time.Time
	ExpiresAt     time.Time
}

type ClickRepository interface {
	CreateClick(ctx context.Context, click *ClickEvent) error
	// FindFirstTouch returns the earliest click of the visitor whose window contains at.
	FindFirstTouch(ctx context.Context, visitorToken string, at time.Time) (*ClickEvent, error)
	GetClicksByAffiliateID(ctx context.Context, affiliateID string, page, limit int64) ([]*ClickEvent, int64, error)
}
