package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/vivaan01/blood-test-analyser-debug/internal/analysis"
	"github.com/vivaan01/blood-test-analyser-debug/internal/api"
	"github.com/vivaan01/blood-test-analyser-debug/internal/config"
	"github.com/vivaan01/blood-test-analyser-debug/internal/infrastructure"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("config load failed:", err)
	}

	infra, err := infrastructure.New(context.Background(), cfg)
	if err != nil {
		log.Fatal("infrastructure init failed:", err)
	}

	domain, err := api.NewDomain(cfg, api.NewRuntime(cfg, infra))
	if err != nil {
		log.Fatal("domain init failed:", err)
	}

	worker := analysis.NewWorker(domain.Analysis, analysis.WorkerOptions{
		Concurrency:   cfg.Queue.Concurrency,
		PollInterval:  cfg.Queue.PollIntervalDuration(),
		RenewInterval: cfg.Queue.VisibilityTimeoutDuration() / 3,
	}, infra.Logger)

	infra.Logger.Info(
		"worker initialized",
		"queue", cfg.Queue.Name,
		"slots", cfg.Queue.Concurrency,
		"version", cfg.Version,
		"env", cfg.Env(),
	)

	if err := infra.Start(); err != nil {
		log.Fatal("infrastructure start failed:", err)
	}
	infra.Lifecycle.WaitForStartup()
	infra.Logger.Info("all subsystems ready")

	// the worker drains before the coordinator closes the databases it writes to
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := worker.Run(ctx); err != nil {
			infra.Logger.Error("worker stopped", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	infra.Logger.Info("initiating shutdown")
	stop()
	select {
	case <-done:
	case <-time.After(cfg.ShutdownTimeoutDuration()):
		infra.Logger.Warn("in-flight jobs still running at shutdown timeout")
	}

	if err := infra.Lifecycle.Shutdown(cfg.ShutdownTimeoutDuration()); err != nil {
		log.Fatal("shutdown failed:", err)
	}
}
