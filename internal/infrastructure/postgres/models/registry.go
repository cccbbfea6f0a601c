package models

// All lists every model owned by the service, in dependency order.
func All() []interface{} {
	return []interface{}{
		&AffiliateModel{},
		&AffiliateAuditLogModel{},
		&ClickEventModel{},
		&ConversionModel{},
		&CommissionEntryModel{},
		&AffiliateBalanceModel{},
		&PayoutModel{},
		&PayoutAllocationModel{},
		&FraudAuditLogModel{},
	}
}
