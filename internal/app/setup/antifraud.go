package setup

import (
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/antifraud"
)

func InitializeAntiFraud(deps *Dependencies) *antifraud.Engine {
	return antifraud.NewDefaultEngine(
		deps.Repositories.AntiFraudRepo,
		deps.Logger.With("component", "antifraud"),
		deps.Metrics,
	)
}
