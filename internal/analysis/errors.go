package analysis

import (
	"errors"
	"net/http"

	"github.com/vivaan01/blood-test-analyser-debug/internal/jobs"
)

var (
	ErrNoFile         = errors.New("no file uploaded")
	ErrInvalidFile    = errors.New("file must be a PDF document")
	ErrEmptyFile      = errors.New("uploaded file is empty")
	ErrFileTooLarge   = errors.New("file exceeds maximum upload size")
	ErrInvalidContact = errors.New("contact requires a valid email and username")
	ErrQueueDisabled  = errors.New("job queue is not configured")
)

// MapHTTPStatus maps analysis errors to HTTP status codes. Pipeline and
// persistence failures are server errors.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNoFile),
		errors.Is(err, ErrInvalidFile),
		errors.Is(err, ErrEmptyFile),
		errors.Is(err, ErrInvalidContact):
		return http.StatusBadRequest
	case errors.Is(err, ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrQueueDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, jobs.ErrNotFound),
		errors.Is(err, jobs.ErrNotCancellable):
		return jobs.MapHTTPStatus(err)
	}
	return http.StatusInternalServerError
}
