package analysis

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vivaan01/blood-test-analyser-debug/internal/artifacts"
	"github.com/vivaan01/blood-test-analyser-debug/internal/extract"
	"github.com/vivaan01/blood-test-analyser-debug/internal/jobs"
	"github.com/vivaan01/blood-test-analyser-debug/internal/pipeline"
	"github.com/vivaan01/blood-test-analyser-debug/internal/results"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/telemetry"
)

// Executor runs the analysis pipeline over a staged artifact.
type Executor interface {
	Execute(ctx context.Context, req pipeline.Request) (*pipeline.Narrative, error)
}

// Runner owns the run lifecycle: stage, execute, persist, release.
type Runner struct {
	executor  Executor
	artifacts artifacts.System
	results   results.System
	jobs      jobs.System
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewRunner creates a Runner. queue may be nil, which disables the queued path.
func NewRunner(
	executor Executor,
	artifacts artifacts.System,
	results results.System,
	queue jobs.System,
	opts Options,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		executor:  executor,
		artifacts: artifacts,
		results:   results,
		jobs:      queue,
		opts:      opts,
		logger:    logger.With("system", "analysis"),
		tracer:    telemetry.Tracer("analysis"),
	}
}

// Handler returns the HTTP handler for the analyze endpoints.
func (r *Runner) Handler() *Handler {
	return NewHandler(r, r.logger, r.opts.MaxUploadSize)
}

// Analyze runs a submission inline. The run continues if ctx is cancelled
// after it starts, so a disconnected caller never strands a half-finished run.
func (r *Runner) Analyze(ctx context.Context, sub Submission) (*Outcome, error) {
	sub = sub.normalize(r.opts.Contact)
	if err := sub.validate(r.opts.MaxUploadSize); err != nil {
		return nil, err
	}
	r.logPages(sub)

	ctx = context.WithoutCancel(ctx)

	art, err := r.artifacts.Stage(ctx, bytes.NewReader(sub.Data), sub.FileName)
	if err != nil {
		return nil, err
	}

	defer r.release(ctx, art)
	return r.process(ctx, art.RunID, sub.Query, art, sub.Contact)
}

// Enqueue stages a submission and queues it for a worker. The artifact is
// released if the job cannot be recorded.
func (r *Runner) Enqueue(ctx context.Context, sub Submission) (*jobs.Job, error) {
	if r.jobs == nil {
		return nil, ErrQueueDisabled
	}

	sub = sub.normalize(r.opts.Contact)
	if err := sub.validate(r.opts.MaxUploadSize); err != nil {
		return nil, err
	}
	r.logPages(sub)

	art, err := r.artifacts.Stage(ctx, bytes.NewReader(sub.Data), sub.FileName)
	if err != nil {
		return nil, err
	}

	job, err := r.jobs.Enqueue(ctx, jobs.EnqueueCommand{
		ID: art.RunID,
		Payload: jobs.Payload{
			Query:    sub.Query,
			FilePath: art.Key,
			FileName: art.Name,
		},
		Email:    sub.Contact.Email,
		Username: sub.Contact.Username,
	})
	if err != nil {
		r.release(ctx, art)
		return nil, fmt.Errorf("enqueue: %w", err)
	}

	return job, nil
}

// Cancel withdraws a queued job and releases its artifact.
func (r *Runner) Cancel(ctx context.Context, id uuid.UUID) (*jobs.Job, error) {
	if r.jobs == nil {
		return nil, ErrQueueDisabled
	}

	job, err := r.jobs.Cancel(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := r.artifacts.Discard(context.WithoutCancel(ctx), job.FileKey); err != nil {
		r.logger.Warn("cancelled job artifact not released", "id", id, "error", err)
	}
	return job, nil
}

// process is shared by both entry points. The caller owns the artifact and
// releases it once the run ends.
func (r *Runner) process(
	ctx context.Context,
	runID uuid.UUID,
	query string,
	art *artifacts.Artifact,
	contact results.Contact,
) (*Outcome, error) {
	ctx, span := r.tracer.Start(ctx, "analysis.process", trace.WithAttributes(
		attribute.String("run.id", runID.String()),
	))
	defer span.End()

	narrative, err := r.executor.Execute(ctx, pipeline.Request{
		RunID:    runID,
		Query:    query,
		Artifact: art,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	outcome := &Outcome{RunID: runID, Narrative: narrative}

	res, err := r.results.Persist(ctx, results.PersistCommand{
		RunID:     runID,
		Query:     query,
		Narrative: narrative.Text,
		FileName:  narrative.FileName,
		Contact:   contact,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return outcome, err
	}

	outcome.Result = res
	outcome.Saved = true
	return outcome, nil
}

func (r *Runner) release(ctx context.Context, art *artifacts.Artifact) {
	if err := r.artifacts.Release(context.WithoutCancel(ctx), art); err != nil {
		r.logger.Warn("artifact release failed", "key", art.Key, "error", err)
	}
}

func (r *Runner) logPages(sub Submission) {
	count, err := extract.PageCount(sub.Data)
	if err != nil {
		r.logger.Warn("failed to read PDF page count", "file", sub.FileName, "error", err)
		return
	}
	r.logger.Info("report received", "file", sub.FileName, "pages", count, "bytes", len(sub.Data))
}
