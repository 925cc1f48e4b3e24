// Package artifacts stages uploaded reports on local disk for the duration of a run.
// Every staged artifact is owned by exactly one run and released when that run ends.
package artifacts

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Extension is appended to every artifact key.
const Extension = ".pdf"

var (
	ErrNotFound   = errors.New("artifact not found")
	ErrInvalidKey = errors.New("invalid artifact key")
	ErrStage      = errors.New("stage artifact")
)

// Artifact is the ownership token for a staged report. The host path is
// never serialized; Key is the portable reference carried across the queue.
type Artifact struct {
	Key   string    `json:"key"`
	Name  string    `json:"name"`
	RunID uuid.UUID `json:"run_id"`
	Size  int64     `json:"size"`
	path  string
}

// Path returns the local file backing the artifact.
func (a *Artifact) Path() string {
	return a.path
}

// MapHTTPStatus maps artifact errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrInvalidKey) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// NewKey derives the storage key for a run. The caller's filename plays no part in it.
func NewKey(runID uuid.UUID) string {
	return runID.String() + Extension
}

// ValidateKey accepts only "<uuid>.pdf" keys.
func ValidateKey(key string) error {
	if key == "" || key != filepath.Base(key) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	id, ok := strings.CutSuffix(key, Extension)
	if !ok {
		return ErrInvalidKey
	}
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidKey
	}
	return nil
}

// RunIDFromKey recovers the run id encoded in a key.
func RunIDFromKey(key string) (uuid.UUID, error) {
	if err := ValidateKey(key); err != nil {
		return uuid.Nil, err
	}
	return uuid.Parse(strings.TrimSuffix(key, Extension))
}
