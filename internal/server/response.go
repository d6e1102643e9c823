package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/oshilog/chatview/internal/analytics"
)

// writeJSON writes v as JSON with the given HTTP status code.
// Logs a warning if JSON encoding fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: encoding response: %v", err)
	}
}

// writeError writes a JSON error response with the given status
// and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, jsonError{Error: msg})
}

// handleContextError detects context.Canceled and
// context.DeadlineExceeded errors, returning true so the
// caller stops processing. It does NOT write an HTTP
// response; the withTimeout middleware handles that via
// http.TimeoutHandler (503). Writing here would race with
// the middleware's buffered response.
func handleContextError(_ http.ResponseWriter, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// writeQueryError maps analytics errors to HTTP responses.
func writeQueryError(w http.ResponseWriter, err error) {
	if handleContextError(w, err) {
		return
	}
	switch {
	case errors.Is(err, analytics.ErrUnknownWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, analytics.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, analytics.ErrStale):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, analytics.ErrUnavailable):
		log.Printf("store unavailable: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, jsonError{
			Error: err.Error(),
			State: analytics.StateUnavailable,
		})
	default:
		log.Printf("query error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
	}
}
