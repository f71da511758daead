package delivery

import (
	"errors"
	"net/http"
)

// Request failures, mapped to HTTP statuses by StatusCode.
var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidInput        = errors.New("invalid request")
	ErrForbidden           = errors.New("access denied")
	ErrTooLarge            = errors.New("file too large, use range requests")
	ErrRangeNotSatisfiable = errors.New("range not satisfiable")
)

// StatusCode returns the HTTP status for err. Unclassified errors are 500.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrRangeNotSatisfiable):
		return http.StatusRequestedRangeNotSatisfiable
	default:
		return http.StatusInternalServerError
	}
}
