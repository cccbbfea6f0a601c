package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/LavaJover/shvark-affiliate-service/internal/app/background"
	"github.com/LavaJover/shvark-affiliate-service/internal/app/setup"
	"github.com/LavaJover/shvark-affiliate-service/internal/config"
	publisher "github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/kafka"
	"github.com/LavaJover/shvark-affiliate-service/internal/infrastructure/logger"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}
	// Reading config
	cfg := config.MustLoad()

	appLogger, logCloser, err := logger.New(cfg.LogConfig)
	if err != nil {
		log.Fatalf("failed to init logger: %v\n", err)
	}
	defer logCloser.Close()

	deps, err := setup.InitializeDependencies(cfg, appLogger)
	if err != nil {
		log.Fatalf("failed to init dependencies: %v\n", err)
	}
	defer deps.Cleanup()

	ucs, err := setup.InitializeUseCases(deps)
	if err != nil {
		log.Fatalf("failed to init use cases: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Conversions consumer
	if cfg.KafkaService.Enabled && len(cfg.KafkaService.Brokers) > 0 {
		subscriber := publisher.NewConversionSubscriber(
			cfg.KafkaService.Brokers,
			cfg.KafkaService.ConversionsTopic,
			cfg.KafkaService.GroupID,
			ucs.Engine,
			appLogger.With("component", "kafka-subscriber"),
			deps.Metrics,
		)
		go func() {
			if err := subscriber.Run(ctx); err != nil {
				appLogger.Error("conversion subscriber stopped", "error", err)
				stop()
			}
		}()
	}

	// Auto-approve, payout retries and stuck payouts
	tasks := background.NewBackgroundTasks(
		ucs.Ledger,
		ucs.Payouts,
		background.Intervals{
			AutoApprove: cfg.Commission.AutoApproveInterval,
			PayoutRetry: cfg.Payout.RetryInterval,
			StuckCheck:  cfg.Payout.StuckInterval,
		},
		cfg.Payout.BatchSize,
		appLogger.With("component", "background"),
	)
	tasks.StartAll(ctx)

	server, err := setup.InitializeHTTPServer(deps, ucs)
	if err != nil {
		log.Fatalf("failed to init http server: %v\n", err)
	}
	go func() {
		appLogger.Info("http server started", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("http server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPServer.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Error("http server forced to shutdown", "error", err)
	}
}
