package repository_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	_ "modernc.org/sqlite"

	"github.com/vivaan01/blood-test-analyser-debug/pkg/query"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
)

type row struct {
	ID    int
	Email string
}

var contactProjection = query.NewProjectionMap("", "contacts", "c").
	Project("id", "ID").
	Project("email", "Email")

func scanRow(s repository.Scanner) (row, error) {
	var r row
	err := s.Scan(&r.ID, &r.Email)
	return r, err
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "repo.db") + "?_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE contacts (id INTEGER PRIMARY KEY, email TEXT NOT NULL UNIQUE)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func TestMapError(t *testing.T) {
	other := errors.New("some other error")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errNotFound},
		{"wrapped no rows", errors.Join(errors.New("ctx"), sql.ErrNoRows), errNotFound},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, errDuplicate},
		{"passthrough", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := repository.MapError(tt.err, errNotFound, errDuplicate)
			if !errors.Is(got, tt.want) && got != tt.want {
				t.Errorf("MapError() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapErrorPgNonDuplicate(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23503"}
	if got := repository.MapError(pgErr, errNotFound, errDuplicate); got != pgErr {
		t.Errorf("MapError(PgError 23503) should pass through, got %v", got)
	}
}

func TestMapErrorSQLiteUnique(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, `INSERT INTO contacts (id, email) VALUES (1, 'demo@user.com')`); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	_, err := db.ExecContext(ctx, `INSERT INTO contacts (id, email) VALUES (2, 'demo@user.com')`)
	if err == nil {
		t.Fatal("expected unique violation")
	}

	if got := repository.MapError(err, errNotFound, errDuplicate); !errors.Is(got, errDuplicate) {
		t.Errorf("MapError(sqlite unique) = %v, want %v", got, errDuplicate)
	}
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	db := repository.Bind(openTestDB(t), query.SQLite)
	ctx := context.Background()

	created, err := repository.WithTx(ctx, db, func(tx *repository.Tx) (row, error) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO contacts (id, email) VALUES ($1, $2)`, 1, "a@b.c"); err != nil {
			return row{}, err
		}
		return repository.QueryOne(ctx, tx, `SELECT id, email FROM contacts WHERE id = $1`, []any{1}, scanRow)
	})
	if err != nil {
		t.Fatalf("WithTx commit: %v", err)
	}
	if created.Email != "a@b.c" {
		t.Errorf("email = %q, want a@b.c", created.Email)
	}

	failure := errors.New("abort")
	_, err = repository.WithTx(ctx, db, func(tx *repository.Tx) (row, error) {
		if _, err := tx.ExecContext(ctx, `INSERT INTO contacts (id, email) VALUES (2, 'x@y.z')`); err != nil {
			return row{}, err
		}
		return row{}, failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("WithTx error = %v, want %v", err, failure)
	}

	rows, err := repository.QueryMany(ctx, db, `SELECT id, email FROM contacts ORDER BY id`, nil, scanRow)
	if err != nil {
		t.Fatalf("QueryMany: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1 (rolled back insert must not persist)", len(rows))
	}
}

func TestExecExpectOne(t *testing.T) {
	db := repository.Bind(openTestDB(t), query.SQLite)
	ctx := context.Background()

	err := repository.ExecExpectOne(ctx, db, `DELETE FROM contacts WHERE id = $1`, 99)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("ExecExpectOne(no match) = %v, want sql.ErrNoRows", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO contacts (id, email) VALUES (1, 'a@b.c')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repository.ExecExpectOne(ctx, db, `DELETE FROM contacts WHERE id = $1`, 1); err != nil {
		t.Errorf("ExecExpectOne(match) = %v", err)
	}
}

func TestBindRebindsPlaceholders(t *testing.T) {
	db := repository.Bind(openTestDB(t), query.SQLite)
	ctx := context.Background()

	if db.Dialect() != query.SQLite {
		t.Fatalf("Dialect() = %s, want sqlite", db.Dialect())
	}

	// reused and reordered placeholders bind by index
	if _, err := db.ExecContext(ctx,
		`INSERT INTO contacts (id, email) VALUES ($2, $1), ($2 + 1, 'b-' || $1)`,
		"a@b.c", 7,
	); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repository.QueryMany(ctx, db, `SELECT id, email FROM contacts WHERE id >= $1 ORDER BY id`, []any{7}, scanRow)
	if err != nil {
		t.Fatalf("QueryMany: %v", err)
	}
	want := []row{{7, "a@b.c"}, {8, "b-a@b.c"}}
	if len(got) != len(want) {
		t.Fatalf("rows = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("row %d = %+v, want %+v", i, got[i], want[i])
		}
	}

	// builder output is already rebound and passes through
	q, args := query.NewBuilder(contactProjection).WithDialect(query.SQLite).BuildSingle("ID", 8)
	one, err := repository.QueryOne(ctx, db, q, args, scanRow)
	if err != nil {
		t.Fatalf("QueryOne(builder) error = %v", err)
	}
	if one.Email != "b-a@b.c" {
		t.Errorf("email = %q, want b-a@b.c", one.Email)
	}
}
