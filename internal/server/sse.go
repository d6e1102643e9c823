package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"
)

// eventWriteTimeout bounds each event write so a client that stops
// reading releases its handler.
const eventWriteTimeout = 3 * time.Second

var errNoFlush = errors.New("response does not support flushing")

// eventStream writes Server-Sent Events to one client.
type eventStream struct {
	w  http.ResponseWriter
	rc *http.ResponseController
}

// newEventStream commits the text/event-stream headers.
func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	if _, ok := w.(http.Flusher); !ok {
		return nil, errNoFlush
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s := &eventStream{w: w, rc: http.NewResponseController(w)}
	if err := s.rc.Flush(); err != nil {
		return nil, err
	}
	return s, nil
}

// send writes one event and reports whether the client is still
// reachable.
func (s *eventStream) send(event string, data []byte) bool {
	// Recorders and some wrappers cannot set deadlines.
	_ = s.rc.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	defer func() { _ = s.rc.SetWriteDeadline(time.Time{}) }()

	_, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data)
	if err == nil {
		err = s.rc.Flush()
	}
	if err != nil {
		log.Printf("watch: dropping client on %s event: %v", event, err)
		return false
	}
	return true
}

func (s *eventStream) sendJSON(event string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("watch: encoding %s event: %v", event, err)
		return false
	}
	return s.send(event, data)
}
