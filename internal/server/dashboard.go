package server

import (
	"context"
	"errors"
	"net/http"
	"time"
)

func (s *Server) now() time.Time {
	if s.opts.Now != nil {
		return s.opts.Now()
	}
	return time.Now()
}

func (s *Server) handleGetDashboard(
	w http.ResponseWriter, _ *http.Request,
) {
	if s.dash == nil {
		writeError(w, http.StatusNotFound, "dashboard not enabled")
		return
	}
	writeJSON(w, http.StatusOK, s.dash.Current())
}

// handleRefreshDashboard recomputes the dashboard. Without query
// parameters the previous request is rerun. The refresh outlives
// a disconnecting client so the dashboard is never left half
// updated; it is bounded by the fetch timeout instead.
func (s *Server) handleRefreshDashboard(
	w http.ResponseWriter, r *http.Request,
) {
	if s.dash == nil {
		writeError(w, http.StatusNotFound, "dashboard not enabled")
		return
	}

	ctx := context.WithoutCancel(r.Context())
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	if r.URL.RawQuery == "" {
		res, err := s.dash.Rerun(ctx)
		if err != nil {
			writeRefreshError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	req, ok := parseRequest(w, r)
	if !ok {
		return
	}
	res, err := s.dash.Refresh(ctx, req)
	if err != nil {
		writeRefreshError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// writeRefreshError is writeQueryError for the unwrapped refresh
// route, where no TimeoutHandler answers on a deadline.
func writeRefreshError(w http.ResponseWriter, err error) {
	if errors.Is(err, context.DeadlineExceeded) {
		writeError(w, http.StatusGatewayTimeout, "refresh timed out")
		return
	}
	writeQueryError(w, err)
}

func (s *Server) handleMirrorStats(
	w http.ResponseWriter, r *http.Request,
) {
	if s.mirror == nil {
		writeError(w, http.StatusNotFound,
			"mirror stats require the sqlite backend")
		return
	}
	stats, err := s.mirror.GetStats(r.Context())
	if err != nil {
		writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
