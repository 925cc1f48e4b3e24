// Package pipeline runs staged specialist consultations over a staged report
// and folds their outputs into a single narrative.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/internal/artifacts"
	"github.com/vivaan01/blood-test-analyser-debug/internal/extract"
)

// Request starts one run.
type Request struct {
	RunID    uuid.UUID
	Query    string
	Artifact *artifacts.Artifact
}

// Narrative is the result of a run. It never carries the artifact path.
type Narrative struct {
	RunID       uuid.UUID `json:"run_id"`
	Query       string    `json:"query"`
	Text        string    `json:"text"`
	FileName    string    `json:"file_name"`
	CompletedAt time.Time `json:"completed_at"`
}

// RunContext is the read-only state shared by every stage of a run.
// The document is extracted at most once.
type RunContext struct {
	RunID    uuid.UUID
	Query    string
	FileName string

	path      string
	extractor extract.Extractor
	once      sync.Once
	text      string
	err       error
}

func newRunContext(req Request, extractor extract.Extractor) *RunContext {
	return &RunContext{
		RunID:     req.RunID,
		Query:     req.Query,
		FileName:  req.Artifact.Name,
		path:      req.Artifact.Path(),
		extractor: extractor,
	}
}

// Document returns the report text, extracting it on first use.
func (rc *RunContext) Document(ctx context.Context) (string, error) {
	rc.once.Do(func() {
		rc.text, rc.err = rc.extractor.Extract(ctx, rc.path)
	})
	return rc.text, rc.err
}

// Render substitutes {query} and {file_name} in a task template.
func (rc *RunContext) Render(template string) string {
	return strings.NewReplacer("{query}", rc.Query, "{file_name}", rc.FileName).Replace(template)
}
