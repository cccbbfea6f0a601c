package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/usecase"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/payout"
)

type Intervals struct {
	AutoApprove time.Duration
	PayoutRetry time.Duration
	StuckCheck  time.Duration
}

type BackgroundTasks struct {
	Ledger    usecase.LedgerUsecase
	Payouts   payout.PayoutManager
	Intervals Intervals
	BatchSize int
	logger    *slog.Logger
}

func NewBackgroundTasks(ledger usecase.LedgerUsecase, payouts payout.PayoutManager, intervals Intervals, batchSize int, logger *slog.Logger) *BackgroundTasks {
	return &BackgroundTasks{
		Ledger:    ledger,
		Payouts:   payouts,
		Intervals: intervals,
		BatchSize: batchSize,
		logger:    logger,
	}
}

func (bt *BackgroundTasks) StartAll(ctx context.Context) {
	go bt.every(ctx, "auto-approve", bt.Intervals.AutoApprove, bt.autoApprove)
	go bt.every(ctx, "payout-retry", bt.Intervals.PayoutRetry, bt.runDuePayouts)
	go bt.every(ctx, "payout-stuck", bt.Intervals.StuckCheck, bt.expireStuckPayouts)
}

func (bt *BackgroundTasks) every(ctx context.Context, name string, interval time.Duration, task func(ctx context.Context)) {
	if interval <= 0 {
		bt.logger.Info("background task disabled", "task", name)
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}

func (bt *BackgroundTasks) autoApprove(ctx context.Context) {
	approved, err := bt.Ledger.AutoApproveMatured(ctx, time.Now().UTC())
	if err != nil {
		bt.logger.Error("auto-approve failed", "error", err)
		return
	}
	if approved > 0 {
		bt.logger.Info("matured commissions approved", "count", approved)
	}
}

func (bt *BackgroundTasks) runDuePayouts(ctx context.Context) {
	advanced, err := bt.Payouts.RunDue(ctx, time.Now().UTC(), bt.BatchSize)
	if err != nil {
		bt.logger.Error("payout retry run failed", "error", err)
		return
	}
	if advanced > 0 {
		bt.logger.Info("due payouts advanced", "count", advanced)
	}
}

func (bt *BackgroundTasks) expireStuckPayouts(ctx context.Context) {
	expired, err := bt.Payouts.ExpireStuck(ctx, time.Now().UTC())
	if err != nil {
		bt.logger.Error("stuck payout check failed", "error", err)
		return
	}
	if expired > 0 {
		bt.logger.Warn("stuck payouts expired", "count", expired)
	}
}
