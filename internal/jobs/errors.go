package jobs

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("job not found")
	ErrDuplicate      = errors.New("job already exists")
	ErrNotCancellable = errors.New("job is not queued")
	ErrQueueEmpty     = errors.New("no claimable job")
	ErrLeaseLost      = errors.New("job lease lost")
)

// MapHTTPStatus maps job domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrNotCancellable) || errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
