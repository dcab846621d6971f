// Package core runs the background tasks shared by the bot and worker processes.
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"github.com/robalyx/starboard/internal/redis"
	"go.uber.org/zap"
)

// Task is a job that runs on a fixed interval.
type Task struct {
	// Name identifies the task in logs and in the worker status records.
	Name string
	// Interval is the pause between the end of one run and the start of the next.
	Interval time.Duration
	// StartupDelay postpones the first run.
	StartupDelay time.Duration
	// Run performs one pass.
	Run func(ctx context.Context) error
}

// RunPeriodic runs task until ctx is done. Successful runs are recorded in
// status when it is not nil. A failed or panicking run is logged and the
// loop continues with the next interval.
func RunPeriodic(ctx context.Context, task Task, status rueidis.Client, logger *zap.Logger) {
	logger = logger.With(zap.String("task", task.Name))
	logger.Info("Periodic task started", zap.Duration("interval", task.Interval))

	if !sleep(ctx, task.StartupDelay) {
		return
	}

	for {
		start := time.Now()
		if err := runOnce(ctx, task); err != nil {
			logger.Error("Periodic task failed", zap.Error(err))
		} else {
			logger.Debug("Periodic task finished", zap.Duration("duration", time.Since(start)))

			if status != nil {
				if err := redis.MarkWorkerRun(ctx, status, task.Name, time.Now()); err != nil {
					logger.Warn("Failed to record task run", zap.Error(err))
				}
			}
		}

		if !sleep(ctx, task.Interval) {
			logger.Info("Periodic task stopped")
			return
		}
	}
}

func runOnce(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return task.Run(ctx)
}

// sleep waits for d and reports whether ctx is still live.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
