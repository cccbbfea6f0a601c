package models

import "time"

type ClickEventModel struct {
	ID            string `gorm:"primaryKey;type:uuid"`
	ReferralCode  string `gorm:"not null"`
	AffiliateID   string `gorm:"type:uuid;not null;index:idx_click_events_affiliate"`
	VisitorToken  string `gorm:"not null;index:idx_click_events_visitor,priority:1"`
	IPHash        string
	UserAgentHash string
	LandingURL    string    `gorm:"type:text"`
	ClickedAt     time.Time `gorm:"not null;index:idx_click_events_visitor,priority:2"`
	ExpiresAt     time.Time `gorm:"not null"`
}

func (ClickEventModel) TableName() string {
	return "click_events"
}
