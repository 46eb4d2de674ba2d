package httputil

import (
	"errors"
	"net/http"

	"github.com/curateio/curate/pkg/locks"
	"github.com/curateio/curate/pkg/workspace"
)

// StatusForError maps domain errors to HTTP status codes
func StatusForError(err error) int {
	switch {
	case errors.Is(err, workspace.ErrNotFound):
		return http.StatusNotFound
	// ErrLocked wraps ErrForbidden, so it must be matched first to keep
	// its dedicated 423 status.
	case errors.Is(err, locks.ErrLocked):
		return http.StatusLocked
	case errors.Is(err, workspace.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, workspace.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, workspace.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes a JSON error response with the status implied
// by the domain error. Internal errors get a generic message so storage
// details never leak to clients.
func WriteDomainError(w http.ResponseWriter, err error) {
	status := StatusForError(err)
	if status == http.StatusInternalServerError {
		WriteErrorMessage(w, status, "internal server error")
		return
	}
	WriteErrorMessage(w, status, err.Error())
}
