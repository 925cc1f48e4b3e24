// Package infrastructure provides core service initialization for application startup.
// It assembles the dependencies (logging, databases, artifact staging, telemetry,
// inference) that domain systems require.
package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/vivaan01/blood-test-analyser-debug/internal/agents"
	"github.com/vivaan01/blood-test-analyser-debug/internal/artifacts"
	"github.com/vivaan01/blood-test-analyser-debug/internal/config"
	"github.com/vivaan01/blood-test-analyser-debug/internal/search"
	"github.com/vivaan01/blood-test-analyser-debug/migrations"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/database"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/lifecycle"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/storage"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/telemetry"
)

// Infrastructure holds the core systems required by all domain modules.
// Queue is the same system as Database unless the queue is configured
// with its own connection. Storage and Searcher are nil when not configured.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	Database  database.System
	Queue     database.System
	Storage   storage.System
	Artifacts artifacts.System
	Telemetry telemetry.System
	Inference agents.Inference
	Searcher  search.Searcher
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	lc := lifecycle.New()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	tel, err := telemetry.New(ctx, &cfg.Telemetry, cfg.Version, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init failed: %w", err)
	}

	if err := migrateLocal(&cfg.Database); err != nil {
		return nil, err
	}
	if !cfg.Queue.Shared(&cfg.Database) {
		if err := migrateLocal(&cfg.Queue.Database); err != nil {
			return nil, err
		}
	}

	db, err := database.New(&cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}

	queue := db
	if !cfg.Queue.Shared(&cfg.Database) {
		queue, err = database.New(&cfg.Queue.Database, logger.With("role", "queue"))
		if err != nil {
			return nil, fmt.Errorf("queue database init failed: %w", err)
		}
	}

	var store storage.System
	if cfg.Artifacts.Storage.Enabled() {
		store, err = storage.New(&cfg.Artifacts.Storage, logger)
		if err != nil {
			return nil, fmt.Errorf("storage init failed: %w", err)
		}
	}

	backend, err := agents.NewBackend(&cfg.Agent, logger)
	if err != nil {
		return nil, fmt.Errorf("inference init failed: %w", err)
	}

	var searcher search.Searcher
	if cfg.Search.Enabled() {
		searcher = search.New(
			cfg.Search.Endpoint,
			cfg.Search.APIKey,
			cfg.Search.MaxResults,
			cfg.Search.TimeoutDuration(),
		)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Database:  db,
		Queue:     queue,
		Storage:   store,
		Artifacts: artifacts.New(cfg.Artifacts.Dir, store, logger),
		Telemetry: tel,
		Inference: backend,
		Searcher:  searcher,
	}, nil
}

// migrateLocal applies the embedded schema to SQLite databases, which are
// local files with no separate migration step. PostgreSQL is migrated with cmd/migrate.
func migrateLocal(cfg *database.Config) error {
	if cfg.Driver != database.DriverSQLite {
		return nil
	}
	source, err := migrations.For(cfg.Driver)
	if err != nil {
		return err
	}
	if err := database.Migrate(cfg, source); err != nil {
		return fmt.Errorf("sqlite migration failed: %w", err)
	}
	return nil
}

// Start registers all infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if err := i.Telemetry.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("telemetry start failed: %w", err)
	}
	if err := i.Database.Start(i.Lifecycle); err != nil {
		return fmt.Errorf("database start failed: %w", err)
	}
	if i.Queue != i.Database {
		if err := i.Queue.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("queue database start failed: %w", err)
		}
	}
	if i.Storage != nil {
		if err := i.Storage.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("storage start failed: %w", err)
		}
	}
	return nil
}
