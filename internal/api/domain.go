package api

import (
	"fmt"

	"github.com/vivaan01/blood-test-analyser-debug/internal/agents"
	"github.com/vivaan01/blood-test-analyser-debug/internal/analysis"
	"github.com/vivaan01/blood-test-analyser-debug/internal/config"
	"github.com/vivaan01/blood-test-analyser-debug/internal/extract"
	"github.com/vivaan01/blood-test-analyser-debug/internal/jobs"
	"github.com/vivaan01/blood-test-analyser-debug/internal/pipeline"
	"github.com/vivaan01/blood-test-analyser-debug/internal/results"
)

// Domain holds all domain systems that comprise the API. The worker
// process builds the same Domain and drives Analysis through a queue.
type Domain struct {
	Results  results.System
	Jobs     jobs.System
	Analysis *analysis.Runner
}

// NewDomain creates all domain systems from the runtime. The roster,
// rate limiters, and inference handle are built once and shared by every run.
func NewDomain(cfg *config.Config, runtime *Runtime) (*Domain, error) {
	resultsSystem := results.New(
		runtime.Database.Connection(),
		runtime.Database.Dialect(),
		runtime.Logger,
		runtime.Pagination,
	)

	jobsSystem := jobs.New(
		runtime.Queue.Connection(),
		runtime.Queue.Dialect(),
		runtime.Logger,
		runtime.Pagination,
		jobs.Options{
			Queue:             cfg.Queue.Name,
			VisibilityTimeout: cfg.Queue.VisibilityTimeoutDuration(),
			MaxAttempts:       cfg.Queue.MaxAttempts,
		},
	)

	roster := agents.DefaultRoster()
	consultant := agents.NewConsultant(
		runtime.Inference,
		roster,
		agents.NewLimiters(roster),
		runtime.Searcher,
		agents.Options{
			Timeout:            cfg.Pipeline.AgentTimeoutDuration(),
			Retries:            cfg.Pipeline.RetryCount(),
			MaxDelegationDepth: cfg.Pipeline.DelegationDepth(),
		},
		runtime.Logger,
	)

	orchestrator, err := pipeline.NewOrchestrator(
		pipeline.AnalysisName,
		pipeline.AnalysisPipeline(),
		roster,
		consultant,
		extract.PDF{},
		runtime.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	runner := analysis.NewRunner(
		orchestrator,
		runtime.Artifacts,
		resultsSystem,
		jobsSystem,
		analysis.Options{
			Contact: results.Contact{
				Email:    cfg.User.Email,
				Username: cfg.User.Username,
			},
			MaxUploadSize: runtime.MaxUploadSize,
		},
		runtime.Logger,
	)

	return &Domain{
		Results:  resultsSystem,
		Jobs:     jobsSystem,
		Analysis: runner,
	}, nil
}
