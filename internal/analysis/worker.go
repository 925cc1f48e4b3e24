package analysis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/vivaan01/blood-test-analyser-debug/internal/artifacts"
	"github.com/vivaan01/blood-test-analyser-debug/internal/jobs"
	"github.com/vivaan01/blood-test-analyser-debug/internal/results"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/telemetry"
)

// WorkerOptions configures the queue consumer.
type WorkerOptions struct {
	Concurrency   int
	PollInterval  time.Duration
	// RenewInterval is how often a running job's lease is extended. It must
	// be well under the queue's visibility timeout.
	RenewInterval time.Duration
}

// Worker consumes queued jobs. Each slot claims one job at a time; a reaper
// fails jobs that ran out of attempts and releases their artifacts.
type Worker struct {
	runner *Runner
	opts   WorkerOptions
	logger *slog.Logger
	meter  otelmetric.Meter
}

// NewWorker creates a Worker over the runner's queue.
func NewWorker(runner *Runner, opts WorkerOptions, logger *slog.Logger) *Worker {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.RenewInterval <= 0 {
		opts.RenewInterval = 5 * time.Minute
	}
	return &Worker{
		runner: runner,
		opts:   opts,
		logger: logger.With("system", "worker"),
		meter:  telemetry.Meter("analysis"),
	}
}

// Run consumes jobs until ctx is cancelled. Cancellation stops claiming;
// runs already in flight finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	if w.runner.jobs == nil {
		return ErrQueueDisabled
	}

	w.logger.Info("worker started", "slots", w.opts.Concurrency, "poll", w.opts.PollInterval)

	g, ctx := errgroup.WithContext(ctx)
	for slot := range w.opts.Concurrency {
		g.Go(func() error {
			w.slot(ctx, slot)
			return nil
		})
	}
	g.Go(func() error {
		w.reaper(ctx)
		return nil
	})

	err := g.Wait()
	w.logger.Info("worker stopped")
	return err
}

func (w *Worker) slot(ctx context.Context, slot int) {
	logger := w.logger.With("slot", slot)
	for {
		if ctx.Err() != nil {
			return
		}

		ran, err := w.Step(ctx)
		if err != nil {
			logger.Error("claim failed", "error", err)
		}
		if ran {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.opts.PollInterval):
		}
	}
}

func (w *Worker) reaper(ctx context.Context) {
	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Reap(ctx); err != nil {
				w.logger.Error("reap failed", "error", err)
			}
		}
	}
}

// Step claims and processes at most one job. It reports whether a job was claimed.
// The lease is renewed while the run is in flight; a run whose lease is lost
// is abandoned and leaves its artifact to the job's new owner.
func (w *Worker) Step(ctx context.Context) (bool, error) {
	job, err := w.runner.jobs.Claim(ctx)
	if errors.Is(err, jobs.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// a claimed job runs to completion even when the worker is shutting down
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	logger := w.logger.With("job_id", job.ID, "attempt", job.Attempts)
	logger.Info("job started", "file", job.FileName)

	l := w.hold(ctx, job, logger)
	art, outcome, err := w.handle(l.ctx, job)
	l.stop()

	var finishErr error
	switch {
	case err != nil:
		logger.Error("job failed", "error", err)
		finishErr = w.runner.jobs.Fail(ctx, job, err.Error())
		w.record(ctx, "failure", start)
	default:
		logger.Info("job succeeded", "result_id", outcome.Result.ID, "duration", time.Since(start))
		finishErr = w.runner.jobs.Complete(ctx, job, outcome.Result.ID)
		w.record(ctx, "success", start)
	}
	w.finish(logger, finishErr)

	if art != nil && !errors.Is(finishErr, jobs.ErrLeaseLost) {
		w.runner.release(ctx, art)
	}

	return true, nil
}

// lease renews a claimed job until its run ends.
type lease struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *lease) stop() {
	l.cancel()
	<-l.done
}

// hold renews the job's lease every RenewInterval. Losing the lease cancels the run.
func (w *Worker) hold(ctx context.Context, job *jobs.Job, logger *slog.Logger) *lease {
	runCtx, cancel := context.WithCancel(ctx)
	l := &lease{ctx: runCtx, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(l.done)
		ticker := time.NewTicker(w.opts.RenewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				err := w.runner.jobs.Extend(runCtx, job)
				switch {
				case errors.Is(err, jobs.ErrLeaseLost):
					logger.Warn("job lease lost, abandoning run")
					cancel()
					return
				case err != nil && runCtx.Err() == nil:
					logger.Warn("job lease not renewed", "error", err)
				}
			}
		}
	}()

	return l
}

// Reap fails exhausted jobs and releases their artifacts.
func (w *Worker) Reap(ctx context.Context) (int, error) {
	reaped, err := w.runner.jobs.Reap(ctx)
	if err != nil {
		return 0, err
	}
	for _, job := range reaped {
		if err := w.runner.artifacts.Discard(ctx, job.FileKey); err != nil {
			w.logger.Warn("reaped job artifact not released", "job_id", job.ID, "error", err)
		}
		w.record(ctx, "reaped", time.Now())
	}
	return len(reaped), nil
}

// handle returns the acquired artifact so the caller can release it once the
// job state is recorded.
func (w *Worker) handle(ctx context.Context, job *jobs.Job) (*artifacts.Artifact, *Outcome, error) {
	payload := job.Payload()

	art, err := w.runner.artifacts.Acquire(ctx, payload.FilePath, payload.FileName)
	if err != nil {
		// the attempt fails terminally, so nothing will read the mirror again;
		// a cancelled ctx means the lease moved and the artifact is no longer ours
		if ctx.Err() == nil {
			if derr := w.runner.artifacts.Discard(context.WithoutCancel(ctx), job.FileKey); derr != nil {
				w.logger.Warn("unacquired job artifact not released", "job_id", job.ID, "error", derr)
			}
		}
		return nil, nil, err
	}

	outcome, err := w.runner.process(ctx, job.ID, payload.Query, art, results.Contact{
		Email:    job.Email,
		Username: job.Username,
	})
	return art, outcome, err
}

func (w *Worker) finish(logger *slog.Logger, err error) {
	if errors.Is(err, jobs.ErrLeaseLost) {
		logger.Warn("job lease lost before completion")
		return
	}
	if err != nil {
		logger.Error("job state not recorded", "error", err)
	}
}

func (w *Worker) record(ctx context.Context, outcome string, start time.Time) {
	attrs := otelmetric.WithAttributes(attribute.String("outcome", outcome))
	if counter, err := w.meter.Int64Counter("analysis.jobs.processed"); err == nil {
		counter.Add(ctx, 1, attrs)
	}
	if outcome == "reaped" {
		return
	}
	if hist, err := w.meter.Float64Histogram("analysis.jobs.duration", otelmetric.WithUnit("s")); err == nil {
		hist.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}
