package models

import (
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/shopspring/decimal"
)

type PayoutModel struct {
	ID                  string              `gorm:"primaryKey;type:uuid"`
	AffiliateID         string              `gorm:"type:uuid;not null;index:idx_payouts_affiliate"`
	Amount              decimal.Decimal     `gorm:"type:numeric(20,8);not null"`
	Currency            string              `gorm:"size:8;not null"`
	Method              string              `gorm:"not null"`
	Status              domain.PayoutStatus `gorm:"not null;index:idx_payouts_status"`
	ProviderRef         *string             `gorm:"uniqueIndex:idx_payouts_provider_ref"`
	Attempts            int                 `gorm:"not null"`
	NextAttemptAt       *time.Time
	ProcessingStartedAt *time.Time
	DispatchedAt        *time.Time
	LastError           string `gorm:"type:text"`
	NeedsReview         bool   `gorm:"not null"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	CompletedAt         *time.Time
}

func (PayoutModel) TableName() string {
	return "payouts"
}

type PayoutAllocationModel struct {
	ID        string          `gorm:"primaryKey;type:uuid"`
	PayoutID  string          `gorm:"type:uuid;not null;uniqueIndex:idx_payout_allocations_unique,priority:1"`
	EntryID   string          `gorm:"type:uuid;not null;uniqueIndex:idx_payout_allocations_unique,priority:2"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	CreatedAt time.Time
}

func (PayoutAllocationModel) TableName() string {
	return "payout_allocations"
}
