package setup

import (
	"fmt"

	"github.com/LavaJover/shvark-affiliate-service/internal/usecase"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/antifraud"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/commission"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/payout"
)

type UseCases struct {
	Graph     *usecase.DefaultReferralGraphUsecase
	Clicks    *usecase.DefaultClickUsecase
	Ledger    *usecase.DefaultLedgerUsecase
	AntiFraud *antifraud.Engine
	Engine    *commission.Engine
	Payouts   *payout.Manager
}

func InitializeUseCases(deps *Dependencies) (*UseCases, error) {
	repos := deps.Repositories

	graph, err := usecase.NewDefaultReferralGraphUsecase(repos.AffiliateRepo, deps.Config.Commission.AutoActivate, deps.Logger.With("component", "referral-graph"))
	if err != nil {
		return nil, fmt.Errorf("referral graph: %w", err)
	}
	clicks := usecase.NewDefaultClickUsecase(repos.ClickRepo, repos.AffiliateRepo, deps.CommissionSettings)
	ledger := usecase.NewDefaultLedgerUsecase(
		repos.LedgerRepo,
		deps.Publisher,
		deps.CommissionSettings,
		deps.Logger.With("component", "ledger"),
		deps.Metrics,
	)
	guard := InitializeAntiFraud(deps)

	engine := commission.NewEngine(
		repos.LedgerRepo,
		clicks,
		graph,
		guard,
		deps.Publisher,
		deps.CommissionSettings,
		deps.Logger.With("component", "commission-engine"),
		deps.Metrics,
	)
	payouts := payout.NewManager(
		repos.PayoutRepo,
		ledger,
		graph,
		deps.Provider,
		deps.Publisher,
		deps.PayoutSettings,
		deps.Logger.With("component", "payout-manager"),
		deps.Metrics,
	)

	return &UseCases{
		Graph:     graph,
		Clicks:    clicks,
		Ledger:    ledger,
		AntiFraud: guard,
		Engine:    engine,
		Payouts:   payouts,
	}, nil
}
