package jobs

import (
	"context"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/pagination"
)

// System defines the work queue contract.
type System interface {
	Handler(canceller Canceller) *Handler

	Enqueue(ctx context.Context, cmd EnqueueCommand) (*Job, error)
	// Claim leases the oldest claimable job. It returns ErrQueueEmpty when there is none.
	Claim(ctx context.Context) (*Job, error)
	// Extend renews the lease on the claimed attempt of a job. ErrLeaseLost
	// means another worker or the reaper already took it over.
	Extend(ctx context.Context, job *Job) error
	// Complete and Fail finish the claimed attempt of a job. ErrLeaseLost
	// means the lease expired and the job was reclaimed or reaped.
	Complete(ctx context.Context, job *Job, resultID uuid.UUID) error
	Fail(ctx context.Context, job *Job, cause string) error
	// Cancel moves a queued job to cancelled. Running or finished jobs
	// return ErrNotCancellable.
	Cancel(ctx context.Context, id uuid.UUID) (*Job, error)
	// Reap fails running jobs whose lease expired after their last attempt.
	Reap(ctx context.Context) ([]Job, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Job], error)

	Find(ctx context.Context, id uuid.UUID) (*Job, error)
}

// Canceller cancels a job and releases what it owns.
type Canceller interface {
	Cancel(ctx context.Context, id uuid.UUID) (*Job, error)
}
