// Package dbtest opens migrated databases for package tests.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vivaan01/blood-test-analyser-debug/migrations"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/database"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/query"
)

// DB is a migrated connection and the dialect to render queries for.
type DB struct {
	Conn    *sql.DB
	Dialect query.Dialect
	Config  database.Config
}

// SQLite returns a migrated database file under t.TempDir.
func SQLite(t testing.TB) *DB {
	t.Helper()

	cfg := database.Config{
		Driver: database.DriverSQLite,
		DSN:    "file:" + filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
	}
	return open(t, cfg)
}

// Postgres starts a disposable PostgreSQL container. The test is skipped
// under -short or when no container runtime is reachable.
func Postgres(t testing.TB) *DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container in -short mode")
	}

	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "analyser",
			"POSTGRES_PASSWORD": "analyser",
			"POSTGRES_DB":       "analyser",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}

	cfg := database.Config{
		Driver: database.DriverPostgres,
		DSN:    fmt.Sprintf("postgres://analyser:analyser@%s:%s/analyser?sslmode=disable", host, port.Port()),
	}
	return open(t, cfg)
}

func open(t testing.TB, cfg database.Config) *DB {
	t.Helper()

	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize database config: %v", err)
	}

	source, err := migrations.For(cfg.Driver)
	if err != nil {
		t.Fatalf("migrations: %v", err)
	}
	if err := database.Migrate(&cfg, source); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	conn, err := database.Open(&cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	return &DB{Conn: conn, Dialect: cfg.Dialect(), Config: cfg}
}
