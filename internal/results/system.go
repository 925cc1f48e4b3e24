package results

import (
	"context"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/pagination"
)

// System defines the result sink and its read side.
type System interface {
	Handler() *Handler

	// Persist gets or creates the contact's user and appends the result in one
	// transaction. Persisting the same RunID again returns the existing row.
	Persist(ctx context.Context, cmd PersistCommand) (*Result, error)

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Result], error)

	Find(ctx context.Context, id uuid.UUID) (*Result, error)
	FindUser(ctx context.Context, email string) (*User, error)
}
