package models

import (
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/shopspring/decimal"
)

type ConversionModel struct {
	ID                    string `gorm:"primaryKey"`
	VisitorToken          string `gorm:"not null"`
	AccountID             string
	AttributedAffiliateID string                   `gorm:"index:idx_conversions_affiliate_time,priority:1"`
	GrossAmount           decimal.Decimal          `gorm:"type:numeric(20,8);not null"`
	Currency              string                   `gorm:"size:8;not null"`
	Outcome               domain.ConversionOutcome `gorm:"not null"`
	Remainder             decimal.Decimal          `gorm:"type:numeric(20,8);not null"`
	OccurredAt            time.Time                `gorm:"not null;index:idx_conversions_affiliate_time,priority:2"`
	ProcessedAt           time.Time
}

func (ConversionModel) TableName() string {
	return "conversions"
}

type CommissionEntryModel struct {
	ID            string                  `gorm:"primaryKey;type:uuid"`
	ConversionID  string                  `gorm:"not null;uniqueIndex:idx_commission_entries_unique,priority:1"`
	AffiliateID   string                  `gorm:"type:uuid;not null;uniqueIndex:idx_commission_entries_unique,priority:2;index:idx_commission_entries_affiliate"`
	Level         int                     `gorm:"not null;uniqueIndex:idx_commission_entries_unique,priority:3"`
	Rate          decimal.Decimal         `gorm:"type:numeric(10,6);not null"`
	Amount        decimal.Decimal         `gorm:"type:numeric(20,8);not null"`
	SettledAmount decimal.Decimal         `gorm:"type:numeric(20,8);not null"`
	Currency      string                  `gorm:"size:8;not null"`
	Status        domain.CommissionStatus `gorm:"not null;index:idx_commission_entries_status"`
	FraudHold     bool                    `gorm:"not null"`
	HoldReason    string
	DecidedBy     string
	DecisionNote  string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index:idx_commission_entries_created"`
	DecidedAt     *time.Time
	PaidAt        *time.Time
}

func (CommissionEntryModel) TableName() string {
	return "commission_entries"
}

type AffiliateBalanceModel struct {
	AffiliateID string          `gorm:"primaryKey;type:uuid"`
	Currency    string          `gorm:"primaryKey;size:8"`
	Pending     decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Approved    decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Paid        decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	Reserved    decimal.Decimal `gorm:"type:numeric(20,8);not null"`
	UpdatedAt   time.Time
}

func (AffiliateBalanceModel) TableName() string {
	return "affiliate_balances"
}
