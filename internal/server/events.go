package server

import (
	"context"
	"net/http"
	"time"

	"github.com/oshilog/chatview/internal/analytics"
)

const (
	defaultWatchInterval = 1500 * time.Millisecond
	// heartbeatTicks is the keepalive period in watch intervals
	// (~30s by default).
	heartbeatTicks = 20
)

// WithWatchInterval sets how often dashboard watchers poll for a
// new result. Non-positive values are ignored.
func WithWatchInterval(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.watchInterval = d
		}
	}
}

// dashboardMonitor polls the dashboard and sends every result
// whose generation differs from the last one seen, starting with
// the current one. The channel closes when ctx is done.
func (s *Server) dashboardMonitor(
	ctx context.Context,
) <-chan analytics.Result {
	ch := make(chan analytics.Result)
	go func() {
		defer close(ch)
		var (
			seen  uint64
			first = true
		)
		ticker := time.NewTicker(s.watchInterval)
		defer ticker.Stop()

		for {
			res := s.dash.Current()
			if first || res.Generation != seen {
				first = false
				seen = res.Generation
				select {
				case ch <- res:
				case <-ctx.Done():
					return
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return ch
}

func (s *Server) handleWatchDashboard(
	w http.ResponseWriter, r *http.Request,
) {
	if s.dash == nil {
		writeError(w, http.StatusNotFound, "dashboard not enabled")
		return
	}
	stream, err := newEventStream(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	updates := s.dashboardMonitor(r.Context())
	heartbeat := time.NewTicker(s.watchInterval * heartbeatTicks)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case res, ok := <-updates:
			if !ok {
				return
			}
			if !stream.sendJSON("dashboard", res) {
				return
			}
		case <-heartbeat.C:
			stamp := time.Now().UTC().Format(time.RFC3339)
			if !stream.send("heartbeat", []byte(stamp)) {
				return
			}
		}
	}
}
