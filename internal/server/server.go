// Package server exposes the chat analytics as a JSON HTTP API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	gosync "sync"
	"time"

	"github.com/oshilog/chatview/internal/analytics"
	"github.com/oshilog/chatview/internal/config"
	"github.com/oshilog/chatview/internal/db"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// MirrorStats reports sqlite mirror counts.
type MirrorStats interface {
	GetStats(ctx context.Context) (db.Stats, error)
}

// Server is the HTTP server for the analytics API.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	src     analytics.Source
	dash    *analytics.Dashboard
	opts    analytics.Options
	mirror  MirrorStats
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo

	watchInterval time.Duration

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a new Server. Ad-hoc queries read src directly;
// the dashboard endpoints go through dash.
func New(
	cfg config.Config, src analytics.Source, dash *analytics.Dashboard,
	opts ...Option,
) *Server {
	s := &Server{
		cfg:  cfg,
		src:  src,
		dash: dash,
		mux:  http.NewServeMux(),

		watchInterval: defaultWatchInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

// WithAnalyticsOptions sets the clock and anonymizer used by
// ad-hoc queries.
func WithAnalyticsOptions(o analytics.Options) Option {
	return func(s *Server) { s.opts = o }
}

// WithMirror enables the mirror stats endpoint. Nil is ignored.
func WithMirror(m MirrorStats) Option {
	return func(s *Server) {
		if m != nil {
			s.mirror = m
		}
	}
}

func (s *Server) routes() {
	s.mux.Handle("GET /api/v1/sessions", s.withTimeout(s.handleListSessions))
	s.mux.Handle(
		"GET /api/v1/sessions/{tenant}/{persona}/messages",
		s.withTimeout(s.handleGetMessages),
	)
	s.mux.Handle("GET /api/v1/personas", s.withTimeout(s.handleListPersonas))
	s.mux.Handle("GET /api/v1/dashboard", s.withTimeout(s.handleGetDashboard))
	// Refresh is not wrapped: a timed-out refresh would still
	// bump the generation and leave the dashboard unavailable.
	s.mux.HandleFunc(
		"POST /api/v1/dashboard/refresh", s.handleRefreshDashboard,
	)
	// SSE: Do not use timeout, as this is a long-lived connection.
	s.mux.HandleFunc("GET /api/v1/dashboard/watch", s.handleWatchDashboard)
	s.mux.Handle("GET /api/v1/mirror/stats", s.withTimeout(s.handleMirrorStats))
	s.mux.Handle("GET /api/v1/version", s.withTimeout(s.handleGetVersion))
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.mu.RLock()
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	s.mu.RUnlock()
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	log.Printf("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set(
				"Access-Control-Allow-Origin", "*",
			)
			w.Header().Set(
				"Access-Control-Allow-Methods",
				"GET, POST, OPTIONS",
			)
			w.Header().Set(
				"Access-Control-Allow-Headers",
				"Content-Type",
			)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
