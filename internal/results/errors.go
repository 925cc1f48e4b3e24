package results

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound        = errors.New("result not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicate       = errors.New("result already exists")
	ErrPersistence     = errors.New("persist result")
	ErrContactConflict = errors.New("username belongs to a different email")
	ErrInvalidContact  = errors.New("contact requires email and username")
)

// MapHTTPStatus maps result domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrUserNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrContactConflict) || errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrInvalidContact) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
