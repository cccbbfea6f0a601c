package mappers

import (
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/models"
)

func ToDomainEntry(model *models.CommissionEntryModel) *domain.CommissionEntry {
	return &domain.CommissionEntry{
		ID:            model.ID,
		ConversionID:  model.ConversionID,
		AffiliateID:   model.AffiliateID,
		Level:         model.Level,
		Rate:          model.Rate,
		Amount:        model.Amount,
		SettledAmount: model.SettledAmount,
		Currency:      model.Currency,
		Status:        model.Status,
		FraudHold:     model.FraudHold,
		HoldReason:    model.HoldReason,
		DecidedBy:     model.DecidedBy,
		DecisionNote:  model.DecisionNote,
		CreatedAt:     model.CreatedAt,
		DecidedAt:     model.DecidedAt,
		PaidAt:        model.PaidAt,
	}
}

func ToGORMEntry(entry *domain.CommissionEntry) *models.CommissionEntryModel {
	return &models.CommissionEntryModel{
		ID:            entry.ID,
		ConversionID:  entry.ConversionID,
		AffiliateID:   entry.AffiliateID,
		Level:         entry.Level,
		Rate:          entry.Rate,
		Amount:        entry.Amount,
		SettledAmount: entry.SettledAmount,
		Currency:      entry.Currency,
		Status:        entry.Status,
		FraudHold:     entry.FraudHold,
		HoldReason:    entry.HoldReason,
		DecidedBy:     entry.DecidedBy,
		DecisionNote:  entry.DecisionNote,
		CreatedAt:     entry.CreatedAt,
		DecidedAt:     entry.DecidedAt,
		PaidAt:        entry.PaidAt,
	}
}

func ToGORMConversion(record *domain.ConversionRecord) *models.ConversionModel {
	return &models.ConversionModel{
		ID:                    record.ID,
		VisitorToken:          record.VisitorToken,
		AccountID:             record.AccountID,
		AttributedAffiliateID: record.AttributedAffiliateID,
		GrossAmount:           record.GrossAmount,
		Currency:              record.Currency,
		Outcome:               record.Outcome,
		Remainder:             record.Remainder,
		OccurredAt:            record.OccurredAt,
		ProcessedAt:           record.ProcessedAt,
	}
}

func ToDomainBalance(model *models.AffiliateBalanceModel) *domain.Balance {
	return &domain.Balance{
		AffiliateID: model.AffiliateID,
		Currency:    model.Currency,
		Pending:     model.Pending,
		Approved:    model.Approved,
		Paid:        model.Paid,
		Reserved:    model.Reserved,
		UpdatedAt:   model.UpdatedAt,
	}
}
