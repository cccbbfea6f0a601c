package setup

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/LavaJover/shvark-affiliate-service/internal/config"
	"github.com/LavaJover/shvark-affiliate-service/internal/domain"
	publisher "github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/metrics"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/postgres/repository"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/provider"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"
)

type Dependencies struct {
	Config       *config.AffiliateConfig
	DB           *gorm.DB
	Logger       *slog.Logger
	Registry     *prometheus.Registry
	Metrics      *metrics.AffiliateMetrics
	Publisher    domain.EventPublisher
	Provider     domain.PaymentProvider
	Repositories *Repositories

	CommissionSettings func() domain.CommissionSettings
	PayoutSettings     func() domain.PayoutSettings

	closers []io.Closer
}

type Repositories struct {
	AffiliateRepo domain.AffiliateRepository
	ClickRepo     domain.ClickRepository
	LedgerRepo    domain.LedgerRepository
	PayoutRepo    domain.PayoutRepository
	AntiFraudRepo domain.AntiFraudRepository
}

func InitializeDependencies(cfg *config.AffiliateConfig, logger *slog.Logger) (*Dependencies, error) {
	commissionSettings, err := cfg.Commission.ToSettings()
	if err != nil {
		return nil, fmt.Errorf("commission settings: %w", err)
	}
	payoutSettings, err := cfg.Payout.ToSettings()
	if err != nil {
		return nil, fmt.Errorf("payout settings: %w", err)
	}

	paymentProvider, err := provider.NewHTTPPaymentProvider(cfg.PaymentProvider.BaseURL, cfg.PaymentProvider.Timeout)
	if err != nil {
		return nil, fmt.Errorf("payment provider: %w", err)
	}

	db := postgres.MustInitDB(cfg)
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	deps := &Dependencies{
		Config:   cfg,
		DB:       db,
		Logger:   logger,
		Registry: registry,
		Metrics:  metrics.NewAffiliateMetrics(registry),
		Provider: paymentProvider,
		Repositories: &Repositories{
			AffiliateRepo: repository.NewDefaultAffiliateRepository(db),
			ClickRepo:     repository.NewDefaultClickRepository(db),
			LedgerRepo:    repository.NewDefaultLedgerRepository(db),
			PayoutRepo:    repository.NewDefaultPayoutRepository(db),
			AntiFraudRepo: repository.NewAntiFraudRepository(db),
		},
		CommissionSettings: func() domain.CommissionSettings { return commissionSettings },
		PayoutSettings:     func() domain.PayoutSettings { return payoutSettings },
	}
	deps.Publisher = initPublisher(deps)
	return deps, nil
}

func initPublisher(deps *Dependencies) domain.EventPublisher {
	kafkaCfg := deps.Config.KafkaService
	if !kafkaCfg.Enabled || len(kafkaCfg.Brokers) == 0 {
		deps.Logger.Warn("kafka is disabled, ledger events will not be published")
		return publisher.NoopPublisher{}
	}
	kafkaPublisher := publisher.NewDefaultKafkaPublisher(
		kafkaCfg.Brokers,
		kafkaCfg.CommissionTopic,
		kafkaCfg.PayoutTopic,
		deps.Logger.With("component", "kafka-publisher"),
	)
	deps.closers = append(deps.closers, kafkaPublisher)
	return kafkaPublisher
}

// Cleanup flushes the publisher and closes the database pool.
func (d *Dependencies) Cleanup() {
	for _, closer := range d.closers {
		if err := closer.Close(); err != nil {
			d.Logger.Error("failed to close dependency", "error", err)
		}
	}
	if sqlDB, err := d.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			d.Logger.Error("failed to close database", "error", err)
		}
	}
}
