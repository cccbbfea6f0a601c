package models

import (
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
)

type AffiliateModel struct {
	ID           string                 `gorm:"primaryKey;type:uuid"`
	AccountID    string                 `gorm:"index:idx_affiliates_account"`
	ReferralCode string                 `gorm:"not null;uniqueIndex:idx_affiliates_code"`
	ParentID     *string                `gorm:"type:uuid;index:idx_affiliates_parent"`
	Status       domain.AffiliateStatus `gorm:"not null;index:idx_affiliates_status"`
	StatusReason string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (AffiliateModel) TableName() string {
	return "affiliates"
}

type AffiliateAuditLogModel struct {
	ID          string            `gorm:"primaryKey;type:uuid"`
	AffiliateID string            `gorm:"type:uuid;not null;index:idx_affiliate_audit_affiliate"`
	ActorID     string            `gorm:"not null"`
	Action      string            `gorm:"not null"`
	Reason      string            `gorm:"type:text"`
	Metadata    map[string]string `gorm:"type:jsonb;serializer:json"`
	CreatedAt   time.Time         `gorm:"index:idx_affiliate_audit_created"`
}

func (AffiliateAuditLogModel) TableName() string {
	return "affiliate_audit_logs"
}
