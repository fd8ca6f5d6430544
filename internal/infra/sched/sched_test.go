//go:build !integration

package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain"
	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/repository"
	"okpay-settlement/internal/infra/metrics"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// countingRepo answers CountInStateSince only.
type countingRepo struct {
	repository.FinancialTransactionRepository
	count     int
	err       error
	gotState  model.TransactionState
	gotBefore time.Time
}

func (r *countingRepo) CountInStateSince(ctx context.Context, tx repository.Tx, state model.TransactionState, before time.Time) (int, error) {
	r.gotState, r.gotBefore = state, before
	return r.count, r.err
}

func TestStalePendingWatcher_RunCheck(t *testing.T) {
	now := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)

	t.Run("should count pending transactions older than the threshold", func(t *testing.T) {
		repo := &countingRepo{count: 2}
		w := NewStalePendingWatcher(repo, time.Minute, 30*time.Minute, newTestLogger())
		w.now = func() time.Time { return now }

		if got := w.runCheck(context.Background()); got != 2 {
			t.Fatalf("expected 2, got %d", got)
		}
		if repo.gotState != model.TransactionStatePending {
			t.Errorf("expected pending state, got %s", repo.gotState)
		}
		if !repo.gotBefore.Equal(now.Add(-30 * time.Minute)) {
			t.Errorf("unexpected cutoff %s", repo.gotBefore)
		}
	})

	t.Run("should report a failed scan", func(t *testing.T) {
		repo := &countingRepo{err: domain.ErrOperationFailed}
		w := NewStalePendingWatcher(repo, time.Minute, time.Minute, newTestLogger())
		if got := w.runCheck(context.Background()); got != -1 {
			t.Fatalf("expected -1, got %d", got)
		}
	})

	t.Run("should stop when the context is cancelled", func(t *testing.T) {
		w := NewStalePendingWatcher(&countingRepo{}, time.Hour, time.Minute, newTestLogger())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

type fakePoolStat struct{ total, idle, acquired int32 }

func (s fakePoolStat) TotalConns() int32    { return s.total }
func (s fakePoolStat) IdleConns() int32     { return s.idle }
func (s fakePoolStat) AcquiredConns() int32 { return s.acquired }

func TestPoolStatsWorker_PublishesOnStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	w := NewPoolStatsWorker(time.Hour, func() metrics.PoolStat {
		calls++
		cancel()
		return fakePoolStat{total: 4, idle: 3, acquired: 1}
	})
	if err := w.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected one sample, got %d", calls)
	}
}
