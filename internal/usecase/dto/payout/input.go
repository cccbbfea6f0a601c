package payoutdto

import "github.com/shopspring/decimal"

type RequestPayoutInput struct {
	AffiliateID string
	Amount      decimal.Decimal
	Currency    string
	Method      string
}

type ReconcileInput struct {
	PayoutID    string
	ProviderRef string
	Succeeded   bool
	Error       string
}
