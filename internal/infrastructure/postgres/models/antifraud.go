package models

import (
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
)

type FraudAuditLogModel struct {
	ID               string               `gorm:"primaryKey;type:uuid"`
	ConversionID     string               `gorm:"not null;index:idx_fraud_audit_conversion"`
	AffiliateID      string               `gorm:"index:idx_fraud_audit_affiliate"`
	Decision         domain.FraudDecision `gorm:"not null"`
	Reason           string
	Results          []*domain.CheckResult `gorm:"type:jsonb;serializer:json"`
	NeedsGraphReview bool                  `gorm:"not null;index:idx_fraud_audit_review"`
	CheckedAt        time.Time
	CreatedAt        time.Time `gorm:"index:idx_fraud_audit_created"`
}

func (FraudAuditLogModel) TableName() string {
	return "fraud_audit_logs"
}
