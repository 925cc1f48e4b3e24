package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/formatting"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/pagination"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/query"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/repository"
)

// maxErrorLength bounds the failure text stored on a job.
const maxErrorLength = 2000

// claimable matches jobs waiting in the queue or abandoned by a worker whose lease ran out.
const claimable = `(status = 'queued' OR (status = 'running' AND lease_expires_at < $1))`

type repo struct {
	db         *repository.DB
	logger     *slog.Logger
	pagination pagination.Config
	opts       Options
}

// New creates a job repository implementing the System interface.
func New(
	db *sql.DB,
	dialect query.Dialect,
	logger *slog.Logger,
	pagination pagination.Config,
	opts Options,
) System {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.VisibilityTimeout <= 0 {
		opts.VisibilityTimeout = 15 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	return &repo{
		db:         repository.Bind(db, dialect),
		logger:     logger.With("system", "jobs", "queue", opts.Queue),
		pagination: pagination,
		opts:       opts,
	}
}

func (r *repo) Handler(canceller Canceller) *Handler {
	if canceller == nil {
		canceller = r
	}
	return NewHandler(r, canceller, r.logger, r.pagination)
}

func (r *repo) Enqueue(ctx context.Context, cmd EnqueueCommand) (*Job, error) {
	if cmd.ID == uuid.Nil {
		cmd.ID = uuid.New()
	}

	job, err := repository.WithTx(ctx, r.db, func(tx *repository.Tx) (Job, error) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO analysis_jobs (id, queue, status, query, file_key, file_name, email, username, attempts, enqueued_at)
			VALUES ($1, $2, 'queued', $3, $4, $5, $6, $7, 0, $8)`,
			cmd.ID, r.opts.Queue, cmd.Payload.Query, cmd.Payload.FilePath, cmd.Payload.FileName,
			cmd.Email, cmd.Username, time.Now().UTC(),
		); err != nil {
			return Job{}, err
		}

		q, args := query.NewBuilder(projection).WithDialect(r.db.Dialect()).BuildSingle("ID", cmd.ID)
		return repository.QueryOne(ctx, tx, q, args, scanJob)
	})

	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("job enqueued", "id", job.ID, "file_key", job.FileKey)
	return &job, nil
}

func (r *repo) Claim(ctx context.Context) (*Job, error) {
	now := time.Now().UTC()

	q := fmt.Sprintf(`
		UPDATE analysis_jobs
		SET status = 'running', attempts = attempts + 1, started_at = $1,
			lease_expires_at = $2, error = NULL
		WHERE id = (
			SELECT id FROM analysis_jobs
			WHERE queue = $3 AND attempts < $4 AND %s
			ORDER BY enqueued_at, id
			LIMIT 1%s
		)
		AND %s
		RETURNING %s`,
		claimable, r.db.Dialect().SkipLocked(), claimable, returning,
	)

	job, err := repository.QueryOne(ctx, r.db, q,
		[]any{now, now.Add(r.opts.VisibilityTimeout), r.opts.Queue, r.opts.MaxAttempts},
		scanJob,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("claim job: %w", err)
	}

	r.logger.Info("job claimed", "id", job.ID, "attempt", job.Attempts)
	return &job, nil
}

func (r *repo) Extend(ctx context.Context, job *Job) error {
	err := repository.ExecExpectOne(ctx, r.db, `
		UPDATE analysis_jobs
		SET lease_expires_at = $1
		WHERE id = $2 AND status = 'running' AND attempts = $3`,
		time.Now().UTC().Add(r.opts.VisibilityTimeout), job.ID, job.Attempts,
	)
	if err != nil {
		return r.finishError(ctx, job.ID, err)
	}
	return nil
}

func (r *repo) Complete(ctx context.Context, job *Job, resultID uuid.UUID) error {
	err := repository.ExecExpectOne(ctx, r.db, `
		UPDATE analysis_jobs
		SET status = 'succeeded', result_id = $1, finished_at = $2, lease_expires_at = NULL
		WHERE id = $3 AND status = 'running' AND attempts = $4`,
		resultID, time.Now().UTC(), job.ID, job.Attempts,
	)
	if err != nil {
		return r.finishError(ctx, job.ID, err)
	}

	r.logger.Info("job succeeded", "id", job.ID, "result_id", resultID)
	return nil
}

func (r *repo) Fail(ctx context.Context, job *Job, cause string) error {
	err := repository.ExecExpectOne(ctx, r.db, `
		UPDATE analysis_jobs
		SET status = 'failed', error = $1, finished_at = $2, lease_expires_at = NULL
		WHERE id = $3 AND status = 'running' AND attempts = $4`,
		formatting.Truncate(cause, maxErrorLength), time.Now().UTC(), job.ID, job.Attempts,
	)
	if err != nil {
		return r.finishError(ctx, job.ID, err)
	}

	r.logger.Warn("job failed", "id", job.ID, "error", cause)
	return nil
}

func (r *repo) finishError(ctx context.Context, id uuid.UUID, err error) error {
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("finish job: %w", err)
	}
	if _, ferr := r.Find(ctx, id); ferr != nil {
		return ferr
	}
	return ErrLeaseLost
}

func (r *repo) Cancel(ctx context.Context, id uuid.UUID) (*Job, error) {
	q := fmt.Sprintf(`
		UPDATE analysis_jobs
		SET status = 'cancelled', finished_at = $1
		WHERE id = $2 AND status = 'queued'
		RETURNING %s`, returning)

	job, err := repository.QueryOne(ctx, r.db, q, []any{time.Now().UTC(), id}, scanJob)
	if errors.Is(err, sql.ErrNoRows) {
		existing, ferr := r.Find(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		return nil, fmt.Errorf("%w: %s", ErrNotCancellable, existing.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("cancel job: %w", err)
	}

	r.logger.Info("job cancelled", "id", job.ID)
	return &job, nil
}

func (r *repo) Reap(ctx context.Context) ([]Job, error) {
	q := fmt.Sprintf(`
		UPDATE analysis_jobs
		SET status = 'failed', error = $1, finished_at = $2, lease_expires_at = NULL
		WHERE queue = $3 AND status = 'running' AND lease_expires_at < $2 AND attempts >= $4
		RETURNING %s`, returning)

	reaped, err := repository.QueryMany(ctx, r.db, q,
		[]any{"lease expired after final attempt", time.Now().UTC(), r.opts.Queue, r.opts.MaxAttempts},
		scanJob,
	)
	if err != nil {
		return nil, fmt.Errorf("reap jobs: %w", err)
	}

	for _, j := range reaped {
		r.logger.Warn("job reaped", "id", j.ID, "attempts", j.Attempts)
	}
	return reaped, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Job], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WithDialect(r.db.Dialect()).
		WhereSearch(page.Search, "Query", "FileName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count jobs: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanJob)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Job, error) {
	q, args := query.NewBuilder(projection).WithDialect(r.db.Dialect()).BuildSingle("ID", id)

	job, err := repository.QueryOne(ctx, r.db, q, args, scanJob)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &job, nil
}
