package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"casino/logger"
	"casino/metrics"
	"casino/services/batch"
	"casino/services/risk"

	"go.uber.org/zap"
)

type Deps struct {
	Batch *batch.Scheduler
	Risk  *risk.Monitor

	BatchEvery    time.Duration
	VelocityEvery time.Duration
	WinCapEvery   time.Duration
	Timeout       time.Duration
}

// Start launches the background tickers. Every job is idempotent or
// claim-based; a failed run is retried on the next tick.
func Start(ctx context.Context, wg *sync.WaitGroup, d Deps) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if d.Batch != nil {
		runEvery(ctx, wg, "withdrawal_batch", d.BatchEvery, timeout, func(ctx context.Context) error {
			now := time.Now().UTC()
			if _, _, err := d.Batch.EnsureScheduled(ctx, now); err != nil {
				return err
			}
			res, err := d.Batch.RunDue(ctx, now)
			if err != nil {
				return err
			}
			if res.Failed > 0 {
				return fmt.Errorf("%d of %d due batches failed", res.Failed, res.Due)
			}
			return nil
		})
	}
	if d.Risk != nil {
		runEvery(ctx, wg, "velocity_sweep", d.VelocityEvery, timeout, func(ctx context.Context) error {
			_, err := d.Risk.VelocitySweep(ctx, time.Now())
			return err
		})
		runEvery(ctx, wg, "win_cap_sweep", d.WinCapEvery, timeout, func(ctx context.Context) error {
			_, err := d.Risk.WinCapSweep(ctx, time.Now())
			return err
		})
	}
}

func runEvery(ctx context.Context, wg *sync.WaitGroup, name string, every, timeout time.Duration, fn func(ctx context.Context) error) {
	if every <= 0 {
		logger.Warn("job disabled", zap.String("job", name))
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()

		logger.Info("job started", zap.String("job", name), zap.Duration("every", every))
		for {
			select {
			case <-ctx.Done():
				logger.Info("job stopped", zap.String("job", name))
				return
			case <-ticker.C:
				runOnce(ctx, name, timeout, fn)
			}
		}
	}()
}

func runOnce(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			logger.Error("job panicked", zap.String("job", name), zap.Any("panic", r))
		}
		metrics.RecordJob(name, err, time.Since(start).Seconds())
	}()

	if err = fn(ctx); err != nil {
		logger.Error("job failed", zap.String("job", name), zap.Error(err))
	}
}
