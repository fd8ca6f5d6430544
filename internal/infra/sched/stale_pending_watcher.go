package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"okpay-settlement/internal/domain/model"
	"okpay-settlement/internal/domain/ports/repository"
	"okpay-settlement/internal/infra/metrics"
)

// StalePendingWatcher reports payers who were redirected to the gateway but
// whose notification never arrived. It only observes; settlement still waits
// for the webhook.
type StalePendingWatcher struct {
	transactions repository.FinancialTransactionRepository
	interval     time.Duration // how often to scan
	staleAfter   time.Duration // how long a pending transaction may wait
	now          func() time.Time
	log          *zerolog.Logger
}

func NewStalePendingWatcher(transactions repository.FinancialTransactionRepository, interval, staleAfter time.Duration, logger *zerolog.Logger) *StalePendingWatcher {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	compLog := logger.With().Str("component", "StalePendingWatcher").Logger()
	return &StalePendingWatcher{
		transactions: transactions,
		interval:     interval,
		staleAfter:   staleAfter,
		now:          time.Now,
		log:          &compLog,
	}
}

func (w *StalePendingWatcher) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting stale pending watcher")
	w.runCheck(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping stale pending watcher")
			return ctx.Err()
		case <-ticker.C:
			w.runCheck(ctx)
		}
	}
}

// runCheck returns the number of stale transactions, or -1 when the scan failed.
func (w *StalePendingWatcher) runCheck(ctx context.Context) int {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	n, err := w.transactions.CountInStateSince(runCtx, repository.NoTX, model.TransactionStatePending, w.now().Add(-w.staleAfter))
	if err != nil {
		w.log.Error().Err(err).Msg("stale pending scan failed")
		return -1
	}
	metrics.SetStalePending(n)
	if n > 0 {
		w.log.Warn().Int("count", n).Dur("stale_after", w.staleAfter).Msg("transactions still waiting for an okpay notification")
	}
	return n
}
