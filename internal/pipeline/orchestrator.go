package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	gaoconfig "github.com/JaimeStill/go-agents-orchestration/pkg/config"
	"github.com/JaimeStill/go-agents-orchestration/pkg/state"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/vivaan01/blood-test-analyser-debug/internal/agents"
	"github.com/vivaan01/blood-test-analyser-debug/internal/extract"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/telemetry"
)

const keyUpstream = "upstream"

// Orchestrator folds a run through its stages as a state graph.
type Orchestrator struct {
	name      string
	stages    []*Stage
	extractor extract.Extractor
	logger    *slog.Logger
	tracer    trace.Tracer
	meter     otelmetric.Meter
}

// NewOrchestrator binds p to the roster and consultant. Stage names must be unique.
func NewOrchestrator(
	name string,
	p Pipeline,
	roster agents.Roster,
	consultant Consulter,
	extractor extract.Extractor,
	logger *slog.Logger,
) (*Orchestrator, error) {
	if len(p) == 0 {
		return nil, fmt.Errorf("%w: no stages", ErrInvalidPipeline)
	}

	logger = logger.With("system", "pipeline", "pipeline", name)
	seen := make(map[string]bool, len(p))
	stages := make([]*Stage, 0, len(p))

	for _, spec := range p {
		if seen[spec.Name] {
			return nil, fmt.Errorf("%w: duplicate stage %s", ErrInvalidPipeline, spec.Name)
		}
		seen[spec.Name] = true

		st, err := NewStage(spec, roster, consultant, logger)
		if err != nil {
			return nil, err
		}
		stages = append(stages, st)
	}

	return &Orchestrator{
		name:      name,
		stages:    stages,
		extractor: extractor,
		logger:    logger,
		tracer:    telemetry.Tracer("pipeline"),
		meter:     telemetry.Meter("pipeline"),
	}, nil
}

// Execute runs every stage in order. Errors are *PipelineFailure.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Narrative, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, &PipelineFailure{Err: ErrEmptyQuery}
	}
	if req.Artifact == nil {
		return nil, &PipelineFailure{Err: ErrArtifactMissing}
	}
	if _, err := os.Stat(req.Artifact.Path()); err != nil {
		return nil, &PipelineFailure{Err: fmt.Errorf("%w: %w", ErrArtifactMissing, err)}
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.execute", trace.WithAttributes(
		attribute.String("run.id", req.RunID.String()),
		attribute.String("pipeline.name", o.name),
	))
	defer span.End()

	start := time.Now()
	narrative, err := o.execute(ctx, req)
	o.record(ctx, start, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		o.logger.ErrorContext(ctx, "run failed", "run_id", req.RunID, "error", err)
		return nil, err
	}

	o.logger.InfoContext(ctx, "run complete",
		"run_id", req.RunID,
		"duration", time.Since(start),
		"chars", len(narrative.Text),
	)
	return narrative, nil
}

func (o *Orchestrator) execute(ctx context.Context, req Request) (*Narrative, error) {
	rc := newRunContext(req, o.extractor)

	var failure *PipelineFailure
	graph, err := o.buildGraph(rc, &failure)
	if err != nil {
		return nil, &PipelineFailure{Err: fmt.Errorf("build graph: %w", err)}
	}

	o.logger.InfoContext(ctx, "run started", "run_id", req.RunID, "stages", len(o.stages))

	final, err := graph.Execute(ctx, state.New(nil).Set(keyUpstream, ""))
	if failure != nil {
		return nil, failure
	}
	if err != nil {
		return nil, &PipelineFailure{Err: fmt.Errorf("execute graph: %w", err)}
	}

	text, err := upstreamFrom(final)
	if err != nil {
		return nil, &PipelineFailure{Err: err}
	}

	return &Narrative{
		RunID:       req.RunID,
		Query:       req.Query,
		Text:        text,
		FileName:    rc.FileName,
		CompletedAt: time.Now().UTC(),
	}, nil
}

func (o *Orchestrator) buildGraph(rc *RunContext, failure **PipelineFailure) (state.StateGraph, error) {
	cfg := gaoconfig.DefaultGraphConfig(o.name)
	cfg.Observer = "noop"

	graph, err := state.NewGraph(cfg)
	if err != nil {
		return nil, err
	}

	for _, st := range o.stages {
		if err := graph.AddNode(st.Name, o.node(st, rc, failure)); err != nil {
			return nil, err
		}
	}

	for i := 1; i < len(o.stages); i++ {
		if err := graph.AddEdge(o.stages[i-1].Name, o.stages[i].Name, nil); err != nil {
			return nil, err
		}
	}

	if err := graph.SetEntryPoint(o.stages[0].Name); err != nil {
		return nil, err
	}
	if err := graph.SetExitPoint(o.stages[len(o.stages)-1].Name); err != nil {
		return nil, err
	}

	return graph, nil
}

// node runs a stage and records its failure, since the graph may rewrap node errors.
func (o *Orchestrator) node(st *Stage, rc *RunContext, failure **PipelineFailure) state.StateNode {
	return state.NewFunctionNode(func(ctx context.Context, s state.State) (state.State, error) {
		upstream, err := upstreamFrom(s)
		if err != nil {
			*failure = &PipelineFailure{Stage: st.Name, Err: err}
			return s, *failure
		}

		out, err := st.Run(ctx, rc, upstream)
		if err != nil {
			*failure = &PipelineFailure{Stage: st.Name, Err: err}
			return s, *failure
		}

		o.logger.InfoContext(ctx, "stage complete", "run_id", rc.RunID, "stage", st.Name)
		return s.Set(keyUpstream, out), nil
	})
}

func (o *Orchestrator) record(ctx context.Context, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("pipeline.name", o.name),
		attribute.String("outcome", outcome),
	)

	if counter, cerr := o.meter.Int64Counter("analysis.pipeline.runs"); cerr == nil {
		counter.Add(ctx, 1, attrs)
	}
	if hist, herr := o.meter.Float64Histogram("analysis.pipeline.duration", otelmetric.WithUnit("s")); herr == nil {
		hist.Record(ctx, time.Since(start).Seconds(), attrs)
	}
}

func upstreamFrom(s state.State) (string, error) {
	val, ok := s.Get(keyUpstream)
	if !ok {
		return "", fmt.Errorf("missing %s in state", keyUpstream)
	}
	text, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("%s is not string", keyUpstream)
	}
	return text, nil
}
