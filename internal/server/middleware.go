package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/oshilog/chatview/internal/analytics"
)

// jsonError is the standard JSON error response. State is set
// when the error describes the data source rather than the
// request.
type jsonError struct {
	Error string          `json:"error"`
	State analytics.State `json:"state,omitempty"`
}

const timeoutMessage = "request timed out"

// timeoutBody is what http.TimeoutHandler writes when a handler
// overruns. A store read that did not finish in time is reported
// the same way as a failed one.
var timeoutBody = func() string {
	b, _ := json.Marshal(jsonError{
		Error: timeoutMessage,
		State: analytics.StateUnavailable,
	})
	return string(b)
}()

// withTimeout bounds h by the configured write timeout. On expiry
// the client gets a 503 JSON body. A non-positive timeout leaves h
// unbounded.
func (s *Server) withTimeout(h http.HandlerFunc) http.Handler {
	inner := h
	if delay := s.handlerDelay; delay > 0 {
		inner = func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(delay)
			h(w, r)
		}
	}
	if s.cfg.WriteTimeout <= 0 {
		return inner
	}

	th := http.TimeoutHandler(inner, s.cfg.WriteTimeout, timeoutBody)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		th.ServeHTTP(&jsonOnStatus{
			ResponseWriter: w,
			status:         http.StatusServiceUnavailable,
		}, r)
	})
}

// jsonOnStatus marks the response as JSON when the first status
// written is status and no Content-Type was set. TimeoutHandler
// writes its body without one.
type jsonOnStatus struct {
	http.ResponseWriter
	status  int
	written bool
}

func (w *jsonOnStatus) WriteHeader(code int) {
	if w.written {
		return
	}
	w.written = true
	if h := w.Header(); code == w.status && h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *jsonOnStatus) Write(b []byte) (int, error) {
	if !w.written {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
