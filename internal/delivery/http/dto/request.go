package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

type EnrollRequest struct {
	AccountID  string `json:"account_id" binding:"required,max=128"`
	ParentCode string `json:"parent_code" binding:"omitempty,alphanum,max=32"`
	ParentID   string `json:"parent_id" binding:"omitempty,uuid"`
}

type AttachParentRequest struct {
	ParentID string `json:"parent_id" binding:"required,uuid"`
}

// ReparentRequest with an empty parent id detaches the affiliate.
type ReparentRequest struct {
	ParentID string `json:"parent_id" binding:"omitempty,uuid"`
	Reason   string `json:"reason" binding:"required,max=512"`
}

type SetStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=PENDING ACTIVE SUSPENDED BANNED"`
	Reason string `json:"reason" binding:"max=512"`
}

type RecordClickRequest struct {
	Code         string `json:"code" binding:"required,alphanum,max=32"`
	VisitorToken string `json:"visitor_token" binding:"required,max=256"`
	LandingURL   string `json:"landing_url" binding:"omitempty,url"`
}

type ConversionRequest struct {
	ConversionID string          `json:"conversion_id" binding:"required,max=128"`
	VisitorToken string          `json:"visitor_token" binding:"max=256"`
	AccountID    string          `json:"account_id" binding:"max=128"`
	GrossAmount  decimal.Decimal `json:"gross_amount" binding:"positive_decimal"`
	Currency     string          `json:"currency" binding:"required,iso4217"`
	Timestamp    time.Time       `json:"timestamp" binding:"required"`
}

type DecisionRequest struct {
	Decision string `json:"decision" binding:"required,oneof=approve reject"`
	Note     string `json:"note" binding:"max=1024"`
}

type PayoutRequest struct {
	Amount   decimal.Decimal `json:"amount" binding:"positive_decimal"`
	Currency string          `json:"currency" binding:"required,iso4217"`
	Method   string          `json:"method" binding:"required,max=64"`
}

// ProviderCallbackRequest identifies the payout by id or by the provider reference.
type ProviderCallbackRequest struct {
	PayoutID    string `json:"payout_id" binding:"required_without=ProviderRef,omitempty,uuid"`
	ProviderRef string `json:"provider_ref" binding:"required_without=PayoutID,max=128"`
	Status      string `json:"status" binding:"required,oneof=succeeded failed"`
	Error       string `json:"error" binding:"max=1024"`
}
