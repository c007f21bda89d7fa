package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"turntable/contexts/media-generation/video-pipeline-service/application/workers"
)

const stateSweepInterval = time.Minute

// workerPool runs concurrent dispatcher loops plus the state sweeper until
// ctx is cancelled.
type workerPool struct {
	dispatcher   workers.Dispatcher
	expirer      *workers.StateExpirer
	concurrency  int
	pollInterval time.Duration
	logger       *slog.Logger
}

func (p workerPool) Run(ctx context.Context) error {
	concurrency := p.concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	pollInterval := p.pollInterval
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	p.logger.Info("worker pool started",
		"event", "bootstrap_worker_pool_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"concurrency", concurrency,
		"poll_interval", pollInterval.String(),
	)

	group, ctx := errgroup.WithContext(ctx)
	for i := 0; i < concurrency; i++ {
		dispatcher := p.dispatcher
		dispatcher.WorkerID = fmt.Sprintf("%s-%d", p.dispatcher.WorkerID, i)
		group.Go(func() error {
			return p.dispatchLoop(ctx, dispatcher, pollInterval)
		})
	}
	if p.expirer != nil {
		expirer := *p.expirer
		group.Go(func() error {
			return p.sweepLoop(ctx, expirer)
		})
	}
	return group.Wait()
}

func (p workerPool) dispatchLoop(ctx context.Context, dispatcher workers.Dispatcher, pollInterval time.Duration) error {
	for {
		claimed, err := dispatcher.RunOnce(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil || claimed == 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(pollInterval):
			}
		}
	}
}

func (p workerPool) sweepLoop(ctx context.Context, expirer workers.StateExpirer) error {
	ticker := time.NewTicker(stateSweepInterval)
	defer ticker.Stop()
	for {
		if err := expirer.RunOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("state sweep failed",
				"event", "bootstrap_state_sweep_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
