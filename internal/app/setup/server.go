package setup

import (
	"fmt"
	"net/http"

	"github.com/LavaJover/shvark-affiliate-service/internal/delivery/http/handlers"
)

func InitializeHTTPServer(deps *Dependencies, ucs *UseCases) (*http.Server, error) {
	cfg := deps.Config
	logger := deps.Logger.With("component", "http")

	router, err := handlers.NewRouter(
		handlers.RouterConfig{
			AllowOrigins: cfg.HTTPServer.AllowOrigins,
			Gatherer:     deps.Registry,
			Logger:       logger,
		},
		handlers.NewAffiliateHandler(ucs.Graph, func() int { return deps.CommissionSettings().Depth() }, logger),
		handlers.NewTrackingHandler(ucs.Clicks, ucs.Engine, logger, deps.Metrics),
		handlers.NewLedgerHandler(ucs.Ledger, logger),
		handlers.NewPayoutHandler(ucs.Payouts, logger),
		handlers.NewAntiFraudHandler(ucs.AntiFraud, logger),
	)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	return &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.HTTPServer.Host, cfg.HTTPServer.Port),
		Handler: router,
	}, nil
}
