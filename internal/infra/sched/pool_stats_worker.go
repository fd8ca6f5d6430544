package sched

import (
	"context"
	"time"

	"okpay-settlement/internal/infra/metrics"
)

// PoolStatsWorker copies database pool statistics into the db_pool_stats gauge.
type PoolStatsWorker struct {
	interval time.Duration
	stat     func() metrics.PoolStat
}

func NewPoolStatsWorker(interval time.Duration, stat func() metrics.PoolStat) *PoolStatsWorker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &PoolStatsWorker{interval: interval, stat: stat}
}

func (w *PoolStatsWorker) Run(ctx context.Context) error {
	metrics.SetDBPoolStats(w.stat())

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			metrics.SetDBPoolStats(w.stat())
		}
	}
}
