// Package analysis is the entry point for report analysis runs. A run is
// either executed inline for the caller or queued for a worker; both paths
// share one execute, persist, release sequence.
package analysis

import (
	"fmt"
	"net/http"
	"net/mail"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/vivaan01/blood-test-analyser-debug/internal/artifacts"
	"github.com/vivaan01/blood-test-analyser-debug/internal/pipeline"
	"github.com/vivaan01/blood-test-analyser-debug/internal/results"
	"github.com/vivaan01/blood-test-analyser-debug/pkg/formatting"
)

// DefaultQuery is used when a submission carries a blank query.
const DefaultQuery = "Summarise my Blood Test Report"

// Submission is one inbound request to analyse a report.
type Submission struct {
	Query    string
	FileName string
	Data     []byte
	Contact  results.Contact
}

// Outcome is the result of a run. Saved is false when the narrative was
// produced but could not be persisted.
type Outcome struct {
	RunID     uuid.UUID
	Result    *results.Result
	Narrative *pipeline.Narrative
	Saved     bool
}

// Options configures a Runner.
type Options struct {
	// Contact attributes results when a submission names no one.
	Contact       results.Contact
	MaxUploadSize int64
}

// normalize trims the submission and fills in defaults.
func (s Submission) normalize(fallback results.Contact) Submission {
	s.Query = strings.TrimSpace(s.Query)
	if s.Query == "" {
		s.Query = DefaultQuery
	}

	s.FileName = filepath.Base(strings.TrimSpace(s.FileName))

	s.Contact.Email = strings.TrimSpace(s.Contact.Email)
	s.Contact.Username = strings.TrimSpace(s.Contact.Username)
	if s.Contact.Email == "" {
		s.Contact.Email = fallback.Email
	}
	if s.Contact.Username == "" {
		s.Contact.Username = fallback.Username
	}
	return s
}

func (s Submission) validate(maxSize int64) error {
	if s.Data == nil || s.FileName == "" || s.FileName == "." {
		return ErrNoFile
	}
	if len(s.Data) == 0 {
		return ErrEmptyFile
	}
	if maxSize > 0 && int64(len(s.Data)) > maxSize {
		return sizeError(maxSize)
	}
	if !strings.EqualFold(filepath.Ext(s.FileName), artifacts.Extension) {
		return ErrInvalidFile
	}
	if http.DetectContentType(s.Data) != "application/pdf" {
		return ErrInvalidFile
	}
	if _, err := mail.ParseAddress(s.Contact.Email); err != nil {
		return ErrInvalidContact
	}
	if s.Contact.Username == "" {
		return ErrInvalidContact
	}
	return nil
}

func sizeError(limit int64) error {
	return fmt.Errorf("%w (limit %s)", ErrFileTooLarge, formatting.FormatBytes(limit, 1))
}
