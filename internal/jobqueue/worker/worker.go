package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/ledgerlink/internal/clock"
	"github.com/smallbiznis/ledgerlink/internal/config"
	jobdomain "github.com/smallbiznis/ledgerlink/internal/jobqueue/domain"
	obsmetrics "github.com/smallbiznis/ledgerlink/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Handler executes one job type. Handlers are registered at startup so the
// dispatch set stays closed and visible in one place.
type Handler interface {
	JobType() jobdomain.JobType
	Handle(ctx context.Context, job *jobdomain.Job) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Clock    clock.Clock
	Jobs     jobdomain.Service
	Pipeline *config.PipelineConfigHolder
	Handlers []Handler `group:"job_handlers"`
}

// Worker drains the job queue in batches. It keeps no state between cycles;
// any number of workers may run concurrently against the same queue.
type Worker struct {
	log      *zap.Logger
	clock    clock.Clock
	jobs     jobdomain.Service
	pipeline *config.PipelineConfigHolder
	handlers map[jobdomain.JobType]Handler
}

func NewWorker(p Params) *Worker {
	handlers := make(map[jobdomain.JobType]Handler, len(p.Handlers))
	for _, h := range p.Handlers {
		if h == nil {
			continue
		}
		handlers[h.JobType()] = h
	}
	return &Worker{
		log:      p.Log.Named("jobqueue.worker"),
		clock:    p.Clock,
		jobs:     p.Jobs,
		pipeline: p.Pipeline,
		handlers: handlers,
	}
}

// RunOnce claims one batch and processes every job in it. One job's failure
// never aborts the batch.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	cfg := w.pipeline.Get()
	jobs, err := w.jobs.ClaimNextJobs(ctx, cfg.WorkerBatchSize)
	if err != nil {
		return 0, err
	}

	metrics := obsmetrics.Worker()
	metrics.ObserveClaimBatch(len(jobs))

	for i := range jobs {
		w.process(ctx, &jobs[i])
	}
	return len(jobs), nil
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		cfg := w.pipeline.Get()
		interval := time.Duration(cfg.WorkerPollSeconds) * time.Second

		start := time.Now()
		if _, err := w.RunOnce(ctx); err != nil {
			w.log.Error("worker cycle failed", zap.Error(err))
		}
		obsmetrics.Worker().ObserveRunLoopLag(time.Since(start))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func (w *Worker) process(ctx context.Context, job *jobdomain.Job) {
	metrics := obsmetrics.Worker()
	start := time.Now()
	err := w.dispatch(ctx, job)
	metrics.ObserveJobDuration(string(job.JobType), time.Since(start))

	if err == nil {
		if err := w.jobs.MarkCompleted(ctx, job.ID); err != nil {
			w.log.Error("failed to mark job completed",
				zap.String("job_id", job.ID.String()),
				zap.Error(err),
			)
			return
		}
		metrics.IncJobProcessed(string(job.JobType), obsmetrics.JobOutcomeCompleted)
		return
	}

	status, recErr := w.jobs.RecordFailure(ctx, job, err)
	if recErr != nil {
		w.log.Error("failed to record job failure",
			zap.String("job_id", job.ID.String()),
			zap.Error(recErr),
		)
		return
	}
	switch status {
	case jobdomain.StatusDead:
		metrics.IncJobProcessed(string(job.JobType), obsmetrics.JobOutcomeDead)
		metrics.IncDeadLetter(string(job.JobType))
	default:
		metrics.IncJobProcessed(string(job.JobType), obsmetrics.JobOutcomeRetried)
	}
}

func (w *Worker) dispatch(ctx context.Context, job *jobdomain.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panicked: %v", r)
		}
	}()

	handler, ok := w.handlers[job.JobType]
	if !ok {
		return fmt.Errorf("no handler registered for job type %q", job.JobType)
	}
	return handler.Handle(ctx, job)
}
