package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vivaan01/blood-test-analyser-debug/internal/agents"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/telemetry"
)

// Mode controls how a stage's agents are scheduled.
type Mode string

const (
	Sequential Mode = "sequential"
	Parallel   Mode = "parallel"
)

// Policy controls what an agent failure does to its stage.
type Policy string

const (
	Required   Policy = "required"
	BestEffort Policy = "best_effort"
)

// Section is one agent's contribution to a stage.
type Section struct {
	Role   agents.Role
	Title  string
	Output string
}

// MergeFunc folds sections into a single text.
type MergeFunc func(sections []Section) string

// LabeledConcat renders each section as "## <Title>" followed by its output,
// separated by blank lines, in declaration order.
func LabeledConcat(sections []Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, fmt.Sprintf("## %s\n\n%s", s.Title, s.Output))
	}
	return strings.Join(parts, "\n\n")
}

// LastOutput returns the final section's output.
func LastOutput(sections []Section) string {
	if len(sections) == 0 {
		return ""
	}
	return sections[len(sections)-1].Output
}

// StageSpec declares a stage. Description may reference {query} and {file_name}.
// Merge applies to parallel stages and defaults to LabeledConcat; Reduce applies
// to sequential stages and defaults to LastOutput.
type StageSpec struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agents         []agents.Role
	Mode           Mode
	Policy         Policy
	Merge          MergeFunc
	Reduce         MergeFunc
}

// Pipeline is an ordered list of stages.
type Pipeline []StageSpec

// Consulter runs one specialist consultation.
type Consulter interface {
	Consult(ctx context.Context, spec agents.Spec, in agents.Input) (string, error)
}

// Stage is a StageSpec bound to its resolved agents.
type Stage struct {
	StageSpec
	specs      []agents.Spec
	consultant Consulter
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewStage resolves spec's agents against roster.
func NewStage(spec StageSpec, roster agents.Roster, consultant Consulter, logger *slog.Logger) (*Stage, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("%w: stage name required", ErrInvalidPipeline)
	}
	if len(spec.Agents) == 0 {
		return nil, fmt.Errorf("%w: stage %s has no agents", ErrInvalidPipeline, spec.Name)
	}
	if spec.Mode == "" {
		spec.Mode = Sequential
	}
	if spec.Policy == "" {
		spec.Policy = Required
	}
	if spec.Mode != Sequential && spec.Mode != Parallel {
		return nil, fmt.Errorf("%w: stage %s: unknown mode %q", ErrInvalidPipeline, spec.Name, spec.Mode)
	}
	if spec.Policy != Required && spec.Policy != BestEffort {
		return nil, fmt.Errorf("%w: stage %s: unknown policy %q", ErrInvalidPipeline, spec.Name, spec.Policy)
	}

	specs := make([]agents.Spec, len(spec.Agents))
	for i, role := range spec.Agents {
		s, err := roster.Lookup(role)
		if err != nil {
			return nil, fmt.Errorf("%w: stage %s: %w", ErrInvalidPipeline, spec.Name, err)
		}
		specs[i] = s
	}

	return &Stage{
		StageSpec:  spec,
		specs:      specs,
		consultant: consultant,
		logger:     logger.With("stage", spec.Name),
		tracer:     telemetry.Tracer("pipeline"),
	}, nil
}

// Run executes the stage against upstream and returns its output.
func (s *Stage) Run(ctx context.Context, rc *RunContext, upstream string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "pipeline.stage", trace.WithAttributes(
		attribute.String("stage.name", s.Name),
		attribute.String("stage.mode", string(s.Mode)),
		attribute.Int("stage.agents", len(s.specs)),
	))
	defer span.End()

	var (
		out string
		err error
	)
	if s.Mode == Parallel {
		out, err = s.runParallel(ctx, rc, upstream)
	} else {
		out, err = s.runSequential(ctx, rc, upstream)
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	return out, nil
}

func (s *Stage) runSequential(ctx context.Context, rc *RunContext, upstream string) (string, error) {
	sections := make([]Section, 0, len(s.specs))

	for _, spec := range s.specs {
		prior := joinNonEmpty(upstream, LabeledConcat(sections))
		out, err := s.consult(ctx, rc, spec, prior)
		if err != nil {
			return "", err
		}
		sections = append(sections, Section{Role: spec.Role, Title: spec.Title, Output: out})
	}

	reduce := s.Reduce
	if reduce == nil {
		reduce = LastOutput
	}
	return reduce(sections), nil
}

func (s *Stage) runParallel(ctx context.Context, rc *RunContext, upstream string) (string, error) {
	sections := make([]Section, len(s.specs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(len(s.specs)))

	for i, spec := range s.specs {
		g.Go(func() error {
			out, err := s.consult(gctx, rc, spec, upstream)
			if err != nil {
				return err
			}
			sections[i] = Section{Role: spec.Role, Title: spec.Title, Output: out}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return "", err
	}

	merge := s.Merge
	if merge == nil {
		merge = LabeledConcat
	}
	return merge(sections), nil
}

// consult applies the stage policy to a single agent's result.
func (s *Stage) consult(ctx context.Context, rc *RunContext, spec agents.Spec, upstream string) (string, error) {
	s.logger.InfoContext(ctx, "agent started", "run_id", rc.RunID, "role", spec.Role)

	out, err := s.consultant.Consult(ctx, spec, agents.Input{
		Query:          rc.Query,
		FileName:       rc.FileName,
		Upstream:       upstream,
		Task:           rc.Render(s.Description),
		ExpectedOutput: s.ExpectedOutput,
		Document:       rc.Document,
	})
	if err == nil {
		s.logger.InfoContext(ctx, "agent finished", "run_id", rc.RunID, "role", spec.Role)
		return out, nil
	}

	if s.Policy == BestEffort {
		s.logger.WarnContext(ctx, "agent omitted", "run_id", rc.RunID, "role", spec.Role, "error", err)
		return fmt.Sprintf("[%s omitted: %v]", spec.Title, err), nil
	}

	s.logger.ErrorContext(ctx, "agent failed", "run_id", rc.RunID, "role", spec.Role, "error", err)
	return "", &StageFailure{Stage: s.Name, Role: spec.Role, Err: err}
}

func joinNonEmpty(parts ...string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}

func workerCount(n int) int {
	return max(min(runtime.NumCPU(), n), 1)
}
