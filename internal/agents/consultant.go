package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vivaan01/blood-test-analyser-debug/internal/search"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/formatting"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/telemetry"
)

// ErrNoDocument is returned when an agent that reads the report is given no source.
var ErrNoDocument = errors.New("no document source")

// DocumentSource returns the report text. Implementations memoise per run.
type DocumentSource func(ctx context.Context) (string, error)

// Input is everything a single consultation sees.
type Input struct {
	Query          string
	FileName       string
	Upstream       string
	Task           string
	ExpectedOutput string
	Document       DocumentSource
	Depth          int
}

// Options bounds every consultation.
type Options struct {
	Timeout            time.Duration
	Retries            int
	MaxDelegationDepth int
}

// Consultant runs the bounded reasoning loop for a specialist.
type Consultant struct {
	inference Inference
	roster    Roster
	limiters  *Limiters
	search    search.Searcher
	opts      Options
	logger    *slog.Logger
	tracer    trace.Tracer
}

// NewConsultant wires a consultant. searcher may be nil, which disables web search.
func NewConsultant(
	inference Inference,
	roster Roster,
	limiters *Limiters,
	searcher search.Searcher,
	opts Options,
	logger *slog.Logger,
) *Consultant {
	return &Consultant{
		inference: inference,
		roster:    roster,
		limiters:  limiters,
		search:    searcher,
		opts:      opts,
		logger:    logger.With("system", "agents"),
		tracer:    telemetry.Tracer("agents"),
	}
}

// Roster returns the roster the consultant delegates within.
func (c *Consultant) Roster() Roster {
	return c.roster
}

type delegation struct {
	Role     string `json:"role"`
	Question string `json:"question"`
}

type reply struct {
	Findings string      `json:"findings"`
	Complete *bool       `json:"complete"`
	Delegate *delegation `json:"delegate"`
}

// Consult runs spec against in and returns the agent's findings.
// Errors are *InferenceError or *CapabilityError.
func (c *Consultant) Consult(ctx context.Context, spec Spec, in Input) (string, error) {
	ctx, span := c.tracer.Start(ctx, "agent.consult", trace.WithAttributes(
		attribute.String("agent.role", string(spec.Role)),
		attribute.Int("agent.depth", in.Depth),
	))
	defer span.End()

	out, rounds, err := c.consult(ctx, spec, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	span.SetAttributes(attribute.Int("agent.rounds", rounds))
	c.logger.InfoContext(ctx, "consultation complete",
		"role", spec.Role,
		"depth", in.Depth,
		"rounds", rounds,
		"chars", len(out),
	)
	return out, nil
}

func (c *Consultant) consult(ctx context.Context, spec Spec, in Input) (string, int, error) {
	background, err := c.gather(ctx, spec, in)
	if err != nil {
		return "", 0, err
	}

	var (
		draft  string
		notes  []string
		rounds int
	)

	limit := max(spec.MaxIterations, 1)
	for round := 1; round <= limit; round++ {
		rounds = round

		raw, err := c.infer(ctx, spec.Role, c.prompt(spec, in, background, notes, draft, round, limit))
		if err != nil {
			if draft != "" {
				c.logger.WarnContext(ctx, "round failed, keeping draft",
					"role", spec.Role,
					"round", round,
					"error", err,
				)
				break
			}
			return "", rounds, err
		}

		r := parseReply(raw)
		if r.Findings != "" {
			draft = r.Findings
		}

		if r.Delegate != nil && c.canDelegate(spec, in, r.Delegate) {
			notes = append(notes, c.delegate(ctx, spec, in, r.Delegate))
			continue
		}

		if r.Complete == nil || *r.Complete {
			break
		}
	}

	if draft == "" {
		return "", rounds, &InferenceError{Role: spec.Role, Attempts: rounds, Err: ErrEmptyReply}
	}
	return draft, rounds, nil
}

func (c *Consultant) gather(ctx context.Context, spec Spec, in Input) (string, error) {
	var sections []string

	if spec.Has(ReadDocument) {
		if in.Document == nil {
			return "", &CapabilityError{Role: spec.Role, Capability: ReadDocument, Err: ErrNoDocument}
		}
		text, err := in.Document(ctx)
		if err != nil {
			return "", &CapabilityError{Role: spec.Role, Capability: ReadDocument, Err: err}
		}
		sections = append(sections, fmt.Sprintf("Blood test report (%s):\n%s", in.FileName, text))
	}

	if spec.Has(WebSearch) && c.search != nil {
		results, err := c.search.Search(ctx, in.Query)
		if err != nil {
			c.logger.WarnContext(ctx, "web search failed", "role", spec.Role, "error", err)
		} else {
			sections = append(sections, fmt.Sprintf("Web search results for %q:\n%s", in.Query, search.Format(results)))
		}
	}

	if in.Upstream != "" {
		sections = append(sections, "Findings so far:\n"+in.Upstream)
	}

	return strings.Join(sections, "\n\n"), nil
}

func (c *Consultant) canDelegate(spec Spec, in Input, d *delegation) bool {
	if !spec.AllowDelegation || in.Depth >= c.opts.MaxDelegationDepth || d.Question == "" {
		return false
	}
	role, err := ParseRole(d.Role)
	if err != nil || role == spec.Role {
		return false
	}
	_, ok := c.roster[role]
	return ok
}

// delegate consults a colleague one level deeper. Failures become a note.
func (c *Consultant) delegate(ctx context.Context, spec Spec, in Input, d *delegation) string {
	role, _ := ParseRole(d.Role)
	target := c.roster[role]

	c.logger.InfoContext(ctx, "delegating", "from", spec.Role, "to", role, "depth", in.Depth+1)

	answer, err := c.Consult(ctx, target, Input{
		Query:          in.Query,
		FileName:       in.FileName,
		Upstream:       in.Upstream,
		Task:           d.Question,
		ExpectedOutput: "A concise, direct answer to the question.",
		Document:       in.Document,
		Depth:          in.Depth + 1,
	})
	if err != nil {
		c.logger.WarnContext(ctx, "delegation failed", "from", spec.Role, "to", role, "error", err)
		return fmt.Sprintf("[%s unavailable: %v]", target.Title, err)
	}

	return fmt.Sprintf("%s answered %q:\n%s", target.Title, d.Question, answer)
}

// infer calls the backend under the role limiter, the per-call timeout, and the retry budget.
func (c *Consultant) infer(ctx context.Context, role Role, p Prompt) (string, error) {
	attempts := max(c.opts.Retries, 0) + 1

	var (
		last     error
		timedOut bool
		made     int
	)

	for made < attempts {
		if err := c.limiters.Wait(ctx, role); err != nil {
			if last == nil {
				last = err
			}
			break
		}

		made++
		out, err := c.call(ctx, p)
		if err == nil {
			return out, nil
		}

		last = err
		timedOut = errors.Is(err, context.DeadlineExceeded)
		if ctx.Err() != nil {
			break
		}

		if made < attempts {
			c.logger.WarnContext(ctx, "inference failed, retrying",
				"role", role,
				"attempt", made,
				"error", err,
			)
		}
	}

	return "", &InferenceError{Role: role, Timeout: timedOut, Attempts: made, Err: last}
}

// call returns once the timeout elapses even if the backend ignores ctx.
func (c *Consultant) call(ctx context.Context, p Prompt) (string, error) {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)

	go func() {
		out, err := c.inference.Infer(ctx, p)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", r.err
		}
		if strings.TrimSpace(r.out) == "" {
			return "", ErrEmptyReply
		}
		return r.out, nil
	case <-ctx.Done():
		return "", fmt.Errorf("inference abandoned after %s: %w", c.opts.Timeout, ctx.Err())
	}
}

func (c *Consultant) prompt(spec Spec, in Input, background string, notes []string, draft string, round, limit int) Prompt {
	var sys strings.Builder
	fmt.Fprintf(&sys, "You are the %s.\n%s\n\nYour goal: %s\n\n", spec.Title, spec.Backstory, spec.Goal(in.Query))
	sys.WriteString("Reply with a JSON object:\n")
	sys.WriteString(`{"findings": "<your findings as markdown>", "complete": true}` + "\n")
	sys.WriteString(`Set "complete" to false only when another round would materially improve the findings.`)

	if spec.AllowDelegation && in.Depth < c.opts.MaxDelegationDepth {
		var others []string
		for _, r := range c.roster.Roles() {
			if r != spec.Role {
				others = append(others, string(r))
			}
		}
		fmt.Fprintf(&sys,
			"\nTo ask one colleague a specific question, add \"delegate\": {\"role\": \"<one of %s>\", \"question\": \"...\"}.",
			strings.Join(others, ", "),
		)
	}

	var user strings.Builder
	user.WriteString("Task:\n")
	if in.Task != "" {
		user.WriteString(in.Task + "\n")
	}
	if spec.Task != "" && in.Depth == 0 {
		user.WriteString(spec.Task + "\n")
	}

	user.WriteString("\nExpected output:\n")
	if in.ExpectedOutput != "" {
		user.WriteString(in.ExpectedOutput + "\n")
	}
	if spec.ExpectedOutput != "" && in.Depth == 0 {
		user.WriteString(spec.ExpectedOutput + "\n")
	}

	fmt.Fprintf(&user, "\nUser query: %s\n", in.Query)

	if background != "" {
		user.WriteString("\n" + background + "\n")
	}
	if len(notes) > 0 {
		user.WriteString("\nColleague input:\n" + strings.Join(notes, "\n\n") + "\n")
	}
	if draft != "" {
		user.WriteString("\nYour current draft:\n" + draft + "\n")
	}

	fmt.Fprintf(&user, "\nRound %d of %d.", round, limit)
	if round == limit {
		user.WriteString(" This is the final round; return complete findings.")
	}

	return Prompt{Role: spec.Role, System: sys.String(), User: user.String()}
}

// parseReply treats text that is not a reply object as complete findings.
func parseReply(raw string) reply {
	r, err := formatting.Parse[reply](raw)
	if err != nil || (r.Findings == "" && r.Delegate == nil) {
		done := true
		return reply{Findings: strings.TrimSpace(raw), Complete: &done}
	}
	r.Findings = strings.TrimSpace(r.Findings)
	return r
}
