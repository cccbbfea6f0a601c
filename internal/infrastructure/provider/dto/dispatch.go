package dto

import "github.com/shopspring/decimal"

type DispatchRequest struct {
	PayoutID string          `json:"payout_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Method   string          `json:"method"`
}

type DispatchResponse struct {
	Reference string `json:"reference"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}
