package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/LavaJover/shvark-affiliate-service/internal/usecase"
	"github.com/LavaJover/shvark-affiliate-service/internal/usecase/payout"
	"github.com/stretchr/testify/assert"
)

type countingLedger struct {
	usecase.LedgerUsecase
	calls atomic.Int32
}

func (l *countingLedger) AutoApproveMatured(ctx context.Context, now time.Time) (int, error) {
	l.calls.Add(1)
	return 1, nil
}

type countingPayouts struct {
	payout.PayoutManager
	due   atomic.Int32
	stuck atomic.Int32
	limit atomic.Int32
}

func (p *countingPayouts) RunDue(ctx context.Context, now time.Time, limit int) (int, error) {
	p.due.Add(1)
	p.limit.Store(int32(limit))
	return 0, errors.New("db down")
}

func (p *countingPayouts) ExpireStuck(ctx context.Context, now time.Time) (int, error) {
	p.stuck.Add(1)
	return 0, nil
}

func TestBackgroundTasks_RunOnTicksUntilCancelled(t *testing.T) {
	ledger := &countingLedger{}
	payouts := &countingPayouts{}
	tasks := NewBackgroundTasks(ledger, payouts, Intervals{
		AutoApprove: 5 * time.Millisecond,
		PayoutRetry: 5 * time.Millisecond,
		StuckCheck:  0,
	}, 25, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	tasks.StartAll(ctx)

	assert.Eventually(t, func() bool {
		return ledger.calls.Load() >= 2 && payouts.due.Load() >= 2
	}, time.Second, 5*time.Millisecond)
	cancel()

	assert.EqualValues(t, 25, payouts.limit.Load())
	assert.Zero(t, payouts.stuck.Load(), "a zero interval disables the task")
}
