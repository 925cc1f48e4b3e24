package results

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/pagination"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/query"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/repository"
)

type repo struct {
	db         *repository.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a result repository implementing the System interface.
func New(
	db *sql.DB,
	dialect query.Dialect,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         repository.Bind(db, dialect),
		logger:     logger.With("system", "results"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Persist(ctx context.Context, cmd PersistCommand) (*Result, error) {
	contact := Contact{
		Email:    strings.TrimSpace(cmd.Contact.Email),
		Username: strings.TrimSpace(cmd.Contact.Username),
	}
	if contact.Email == "" || contact.Username == "" {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, ErrInvalidContact)
	}

	now := time.Now().UTC()

	res, err := repository.WithTx(ctx, r.db, func(tx *repository.Tx) (Result, error) {
		user, err := r.ensureUser(ctx, tx, contact, now)
		if err != nil {
			return Result{}, err
		}

		var file *string
		if cmd.FileName != "" {
			file = &cmd.FileName
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO analysis_results (id, user_id, query, analysis, file_processed, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING`,
			cmd.RunID, user.ID, cmd.Query, cmd.Narrative, file, now,
		); err != nil {
			return Result{}, fmt.Errorf("insert result: %w", err)
		}

		q, args := query.NewBuilder(projection).WithDialect(r.db.Dialect()).BuildSingle("ID", cmd.RunID)
		return repository.QueryOne(ctx, tx, q, args, scanResult)
	})

	if err != nil {
		r.logger.Error("persist failed", "run_id", cmd.RunID, "email", contact.Email, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	r.logger.Info("result persisted", "id", res.ID, "user_id", res.UserID)
	return &res, nil
}

// ensureUser inserts the contact if absent and returns the row owning its email.
func (r *repo) ensureUser(ctx context.Context, tx *repository.Tx, c Contact, now time.Time) (User, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, username, email, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT DO NOTHING`,
		uuid.New(), c.Username, c.Email, now,
	); err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}

	q, args := query.NewBuilder(userProjection).WithDialect(r.db.Dialect()).BuildSingle("Email", c.Email)
	u, err := repository.QueryOne(ctx, tx, q, args, scanUser)
	if errors.Is(err, sql.ErrNoRows) {
		// the insert lost to an existing username under another email
		return User{}, fmt.Errorf("%w: %s", ErrContactConflict, c.Username)
	}
	if err != nil {
		return User{}, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Result], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WithDialect(r.db.Dialect()).
		WhereSearch(page.Search, "Query", "Analysis", "FileProcessed")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	var total int
	if err := r.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count results: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.Page, page.PageSize)
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanResult)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Result, error) {
	q, args := query.NewBuilder(projection).WithDialect(r.db.Dialect()).BuildSingle("ID", id)

	res, err := repository.QueryOne(ctx, r.db, q, args, scanResult)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &res, nil
}

func (r *repo) FindUser(ctx context.Context, email string) (*User, error) {
	q, args := query.NewBuilder(userProjection).WithDialect(r.db.Dialect()).BuildSingle("Email", email)

	u, err := repository.QueryOne(ctx, r.db, q, args, scanUser)
	if err != nil {
		return nil, repository.MapError(err, ErrUserNotFound, ErrDuplicate)
	}
	return &u, nil
}
