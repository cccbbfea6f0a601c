package affiliatedto

import "time"

type AffiliateOutput struct {
	ID           string    `json:"id"`
	AccountID    string    `json:"account_id"`
	ReferralCode string    `json:"referral_code"`
	ParentID     string    `json:"parent_id,omitempty"`
	Status       string    `json:"status"`
	StatusReason string    `json:"status_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type UplineNodeOutput struct {
	Level     int             `json:"level"`
	Affiliate AffiliateOutput `json:"affiliate"`
}

type DownlineOutput struct {
	Children []AffiliateOutput `json:"children"`
	Total    int64             `json:"total"`
	Page     int64             `json:"page"`
	Limit    int64             `json:"limit"`
}
