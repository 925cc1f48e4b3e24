package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"github.com/vivaan01/blood-test-analyser-debug/internal/config"
	"github.com/vivaan01/blood-test-analyser-debug/migrations"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/database"
)

func main() {
	var (
		dsn     = flag.String("dsn", "", "Database connection string (overrides config)")
		driver  = flag.String("driver", "", "Database driver: postgres or sqlite (overrides config)")
		queue   = flag.Bool("queue", false, "Target the queue database instead of the persistence database")
		up      = flag.Bool("up", false, "Run all up migrations")
		down    = flag.Bool("down", false, "Run all down migrations")
		steps   = flag.Int("steps", 0, "Number of migrations (positive=up, negative=down)")
		version = flag.Bool("version", false, "Print current migration version")
		force   = flag.Int("force", -1, "Force set version (use with caution)")
	)
	flag.Parse()

	forceSet := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == "force" {
			forceSet = true
		}
	})

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	target := cfg.Database
	if *queue {
		target = cfg.Queue.Database
	}
	target.Merge(&database.Config{Driver: *driver, DSN: *dsn})
	if err := target.Finalize(nil); err != nil {
		log.Fatalf("invalid database config: %v", err)
	}

	source, err := migrations.For(target.Driver)
	if err != nil {
		log.Fatalf("failed to load migrations: %v", err)
	}

	m, err := database.NewMigrator(&target, source)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}
	defer m.Close()

	switch {
	case *version:
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("failed to get version: %v", err)
		}
		fmt.Printf("version: %d, dirty: %v\n", v, dirty)
	case forceSet:
		if err := m.Force(*force); err != nil {
			log.Fatalf("failed to force version: %v", err)
		}
		fmt.Printf("forced to version %d\n", *force)
	case *up:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run up migrations: %v", err)
		}
		fmt.Printf("%s migrations applied successfully\n", target.Driver)
	case *down:
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run down migrations: %v", err)
		}
		fmt.Printf("%s migrations reverted successfully\n", target.Driver)
	case *steps != 0:
		if err := m.Steps(*steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("failed to run migrations: %v", err)
		}
		fmt.Printf("applied %d migration steps\n", *steps)
	default:
		fmt.Println("usage: migrate [-driver postgres|sqlite] [-dsn <connection-string>] [-queue] [-up|-down|-steps N|-version|-force N]")
		flag.PrintDefaults()
	}
}
