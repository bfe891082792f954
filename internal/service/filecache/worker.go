package filecache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	fcSvc "dmsiq/internal/domain/services/filecache"
)

const cacheJobName = "cache-uncached"

// uncachedCacher is the part of the manager the worker drives
type uncachedCacher interface {
	CacheUncached(ctx context.Context, limit int) (*fcSvc.BulkResult, error)
}

// Worker periodically caches pending references. Failed references are not
// picked up again until Retry or an explicit CacheFile/BulkCache call.
// A run that outlasts its interval delays the next one instead of overlapping it.
type Worker struct {
	manager   uncachedCacher
	schedule  string
	batchSize int
	scheduler gocron.Scheduler
	ctx       context.Context
	logger    *slog.Logger
}

// NewWorker creates a worker for the given cron schedule (five fields, no seconds)
func NewWorker(manager uncachedCacher, schedule string, batchSize int, logger *slog.Logger) (*Worker, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return &Worker{
		manager:   manager,
		schedule:  schedule,
		batchSize: batchSize,
		scheduler: s,
		ctx:       context.Background(),
		logger:    logger.With("component", "cache_worker"),
	}, nil
}

// Start schedules the job. Runs use ctx until Stop is called.
func (w *Worker) Start(ctx context.Context) error {
	w.ctx = ctx

	_, err := w.scheduler.NewJob(
		gocron.CronJob(w.schedule, false),
		gocron.NewTask(w.run),
		gocron.WithName(cacheJobName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", cacheJobName, err)
	}

	w.scheduler.Start()
	w.logger.Info("cache worker started", "schedule", w.schedule, "batch_size", w.batchSize)
	return nil
}

// Stop waits for a running job to finish and shuts the scheduler down
func (w *Worker) Stop() error {
	if err := w.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("stop cache worker: %w", err)
	}
	w.logger.Info("cache worker stopped")
	return nil
}

// RunOnce performs a single pass outside the schedule
func (w *Worker) RunOnce(ctx context.Context) (*fcSvc.BulkResult, error) {
	return w.manager.CacheUncached(ctx, w.batchSize)
}

func (w *Worker) run() {
	start := time.Now()
	result, err := w.RunOnce(w.ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("cache pass failed", "error", err)
		return
	}

	if result.Succeeded+result.Failed == 0 {
		w.logger.Debug("cache pass found nothing to do")
		return
	}
	w.logger.Info("cache pass finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"duration", time.Since(start),
	)
	if result.Errors != nil {
		w.logger.Debug("cache pass failures", "errors", result.Errors.Error())
	}
}
