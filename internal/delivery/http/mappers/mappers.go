package mappers

import (
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/commission"
	affiliatedto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/affiliate"
	ledgerdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/ledger"
	payoutdto "github.com/LavaJover/shvark-affiliate-service/internal/usecase/dto/payout"
	"github.com/samber/lo"
)

func ToAffiliateOutput(affiliate *domain.Affiliate) affiliatedto.AffiliateOutput {
	return affiliatedto.AffiliateOutput{
		ID:           affiliate.ID,
		AccountID:    affiliate.AccountID,
		ReferralCode: affiliate.ReferralCode,
		ParentID:     lo.FromPtr(affiliate.ParentID),
		Status:       string(affiliate.Status),
		StatusReason: affiliate.StatusReason,
		CreatedAt:    affiliate.CreatedAt,
	}
}

func ToAffiliateOutputs(affiliates []*domain.Affiliate) []affiliatedto.AffiliateOutput {
	return lo.Map(affiliates, func(a *domain.Affiliate, _ int) affiliatedto.AffiliateOutput {
		return ToAffiliateOutput(a)
	})
}

func ToUplineOutput(nodes []domain.UplineNode) []affiliatedto.UplineNodeOutput {
	return lo.Map(nodes, func(n domain.UplineNode, _ int) affiliatedto.UplineNodeOutput {
		return affiliatedto.UplineNodeOutput{Level: n.Level, Affiliate: ToAffiliateOutput(n.Affiliate)}
	})
}

func ToBalanceOutput(balance *domain.Balance) ledgerdto.BalanceOutput {
	return ledgerdto.BalanceOutput{
		AffiliateID: balance.AffiliateID,
		Currency:    balance.Currency,
		Pending:     balance.Pending,
		Approved:    balance.Approved,
		Paid:        balance.Paid,
		Reserved:    balance.Reserved,
		Available:   balance.Available(),
	}
}

func ToEntryOutput(entry *domain.CommissionEntry) ledgerdto.EntryOutput {
	return ledgerdto.EntryOutput{
		ID:            entry.ID,
		ConversionID:  entry.ConversionID,
		AffiliateID:   entry.AffiliateID,
		Level:         entry.Level,
		Rate:          entry.Rate,
		Amount:        entry.Amount,
		SettledAmount: entry.SettledAmount,
		Currency:      entry.Currency,
		Status:        string(entry.Status),
		FraudHold:     entry.FraudHold,
		HoldReason:    entry.HoldReason,
		DecidedBy:     entry.DecidedBy,
		CreatedAt:     entry.CreatedAt,
		DecidedAt:     entry.DecidedAt,
		PaidAt:        entry.PaidAt,
	}
}

func ToEntryOutputs(entries []*domain.CommissionEntry) []ledgerdto.EntryOutput {
	return lo.Map(entries, func(e *domain.CommissionEntry, _ int) ledgerdto.EntryOutput {
		return ToEntryOutput(e)
	})
}

func ToPayoutOutput(payout *domain.PayoutRequest) payoutdto.PayoutOutput {
	return payoutdto.PayoutOutput{
		ID:            payout.ID,
		AffiliateID:   payout.AffiliateID,
		Amount:        payout.Amount,
		Currency:      payout.Currency,
		Method:        payout.Method,
		Status:        string(payout.Status),
		ProviderRef:   payout.ProviderRef,
		Attempts:      payout.Attempts,
		NextAttemptAt: payout.NextAttemptAt,
		LastError:     payout.LastError,
		NeedsReview:   payout.NeedsReview,
		CreatedAt:     payout.CreatedAt,
		CompletedAt:   payout.CompletedAt,
	}
}

func ToPayoutOutputs(payouts []*domain.PayoutRequest) []payoutdto.PayoutOutput {
	return lo.Map(payouts, func(p *domain.PayoutRequest, _ int) payoutdto.PayoutOutput {
		return ToPayoutOutput(p)
	})
}

type ConversionResultOutput struct {
	Outcome     string                  `json:"outcome"`
	AffiliateID string                  `json:"affiliate_id,omitempty"`
	Reason      string                  `json:"reason,omitempty"`
	Remainder   string                  `json:"remainder"`
	Entries     []ledgerdto.EntryOutput `json:"entries"`
}

func ToConversionResultOutput(result *commission.Result) ConversionResultOutput {
	return ConversionResultOutput{
		Outcome:     string(result.Outcome),
		AffiliateID: result.AffiliateID,
		Reason:      result.Reason,
		Remainder:   result.Remainder.String(),
		Entries:     ToEntryOutputs(result.Entries),
	}
}
