// Package memerr defines the error taxonomy shared by the blob store,
// the relational index and the engine.
package memerr

import (
	"errors"
	"net/http"
)

var (
	// ErrNotFound means an operation referenced an id absent from the index
	// (or a blob absent from disk).
	ErrNotFound = errors.New("not found")

	// ErrSchemaMissing means the database was opened without its bootstrap schema.
	ErrSchemaMissing = errors.New("schema missing")

	// ErrIO wraps blob read/write failures.
	ErrIO = errors.New("io failure")

	// ErrValidation covers out-of-range scores, unsafe path segments and malformed queries.
	ErrValidation = errors.New("validation failed")
)

// HTTPStatus maps an error to the response code the API returns for it.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrSchemaMissing):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns a short machine-readable name for the error class.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrSchemaMissing):
		return "schema_missing"
	case errors.Is(err, ErrIO):
		return "io"
	default:
		return "internal"
	}
}
