package pipeline

import (
	"errors"
	"fmt"

	"github.com/vivaan01/blood-test-analyser-debug/internal/agents"
)

var (
	ErrArtifactMissing = errors.New("artifact missing")
	ErrEmptyQuery      = errors.New("query is empty")
	ErrInvalidPipeline = errors.New("invalid pipeline")
)

// StageFailure is a required agent's failure inside a stage.
type StageFailure struct {
	Stage string
	Role  agents.Role
	Err   error
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("stage %s: agent %s: %v", e.Stage, e.Role, e.Err)
}

func (e *StageFailure) Unwrap() error { return e.Err }

// PipelineFailure ends a run. Stage is empty when the run failed before any stage started.
type PipelineFailure struct {
	Stage string
	Err   error
}

func (e *PipelineFailure) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("pipeline: %v", e.Err)
	}
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineFailure) Unwrap() error { return e.Err }
