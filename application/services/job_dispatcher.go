package services

import (
	"context"
	"time"

	"bookkeeper-backend/application/ports"
	"bookkeeper-backend/domain/core/entities"
	"bookkeeper-backend/pkg/observability"

	"go.uber.org/zap"
)

// JobHandler consumes one due job. Delivery is at-least-once: a crash between
// execution and deletion re-delivers the job on the next poll, so handlers
// must be idempotent or tolerate duplicates.
type JobHandler func(ctx context.Context, job *entities.TimeBasedJob) error

// JobDispatcher pulls due jobs from the store and routes them to registered
// handlers by event type. A job is deleted only after its handler returned
// without error; there is no separate "done" state.
type JobDispatcher struct {
	jobs     ports.TimeBasedJobRepository
	handlers map[string]JobHandler
	logger   *zap.Logger
	now      func() int64
}

// NewJobDispatcher creates a dispatcher with no handlers registered.
func NewJobDispatcher(jobs ports.TimeBasedJobRepository, logger *zap.Logger) *JobDispatcher {
	return &JobDispatcher{
		jobs:     jobs,
		handlers: make(map[string]JobHandler),
		logger:   logger,
		now:      func() int64 { return time.Now().Unix() },
	}
}

// Register installs the handler for an event type, replacing any previous
// one.
func (d *JobDispatcher) Register(eventType string, handler JobHandler) {
	d.handlers[eventType] = handler
}

// DispatchDue executes every currently due job and reports how many were
// consumed. Jobs whose handler fails, and jobs with no registered handler,
// stay in the store and are re-delivered on the next poll.
func (d *JobDispatcher) DispatchDue(ctx context.Context) (int, error) {
	due, err := d.jobs.ListDue(ctx, d.now())
	if err != nil {
		return 0, err
	}

	consumed := 0
	for _, job := range due {
		handler, ok := d.handlers[job.EventType()]
		if !ok {
			d.logger.Warn("no handler registered for due job",
				zap.String("jobID", job.ID()),
				zap.String("eventType", job.EventType()),
			)
			continue
		}

		if err := handler(ctx, job); err != nil {
			observability.ObserveJobDispatch(job.EventType(), "failure")
			d.logger.Error("job handler failed, job will be re-delivered",
				zap.String("jobID", job.ID()),
				zap.String("eventType", job.EventType()),
				zap.Error(err),
			)
			continue
		}
		observability.ObserveJobDispatch(job.EventType(), "success")

		if err := d.jobs.Delete(ctx, job.ID()); err != nil {
			// The handler already ran; the job will run again next poll.
			d.logger.Error("failed to delete consumed job",
				zap.String("jobID", job.ID()),
				zap.Error(err),
			)
			continue
		}
		consumed++
	}
	return consumed, nil
}

// Run polls on the given interval until the context is cancelled. The loop
// itself lives in the worker binary; the store only answers the due-job
// query.
func (d *JobDispatcher) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := d.DispatchDue(ctx); err != nil {
				d.logger.Error("job dispatch cycle failed", zap.Error(err))
			}
		}
	}
}
