package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oshilog/chatview/internal/analytics"
	"github.com/oshilog/chatview/internal/config"
	"github.com/oshilog/chatview/internal/testtree"
)

// testServer creates a Server for internal tests with the given
// write timeout, backed by a small in-memory tree.
func testServer(
	t *testing.T, writeTimeout time.Duration,
) *Server {
	t.Helper()
	return testServerOpts(t, writeTimeout)
}

// testServerOpts is testServer with extra options applied.
func testServerOpts(
	t *testing.T, writeTimeout time.Duration, opts ...Option,
) *Server {
	t.Helper()
	src := testtree.New().
		Persona("u1", "p1", "Aoi").
		Message("u1", "p1", "m1", "hello", 1000).
		Source()
	cfg := config.Config{
		Host:         "127.0.0.1",
		Port:         0,
		WriteTimeout: writeTimeout,
	}
	dash := analytics.NewDashboard(src, analytics.Options{})
	return New(cfg, src, dash, opts...)
}

// withHandlerDelay injects a sleep before every timeout-wrapped
// handler.
func withHandlerDelay(d time.Duration) Option {
	return func(s *Server) { s.handlerDelay = d }
}

// decodeTimeout reads resp and reports whether it is the JSON
// timeout response.
func decodeTimeout(t *testing.T, resp *http.Response) (jsonError, bool) {
	t.Helper()
	if resp.StatusCode != http.StatusServiceUnavailable {
		return jsonError{}, false
	}
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var je jsonError
	if json.Unmarshal(body, &je) != nil {
		return jsonError{}, false
	}
	return je, je.Error == timeoutMessage
}

// assertTimeoutResponse checks that resp is the 503 JSON timeout
// response, marked unavailable.
func assertTimeoutResponse(t *testing.T, resp *http.Response) {
	t.Helper()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	je, ok := decodeTimeout(t, resp)
	require.True(t, ok, "not a timeout body: %+v", je)
	assert.Equal(t, analytics.StateUnavailable, je.State)
}

// isTimeoutResponse is for negative assertions on routes that
// must not time out.
func isTimeoutResponse(t *testing.T, resp *http.Response) bool {
	t.Helper()
	_, ok := decodeTimeout(t, resp)
	return ok
}

// newTestContext returns a recorder and request for lightweight
// handler tests. Pass an empty query for no query string.
func newTestContext(
	t *testing.T, query string,
) (*httptest.ResponseRecorder, *http.Request) {
	t.Helper()
	target := "/test"
	if query != "" {
		target += "?" + query
	}
	return httptest.NewRecorder(),
		httptest.NewRequest(http.MethodGet, target, nil)
}

// assertRecorderStatus checks that the recorder has the
// expected HTTP status code.
func assertRecorderStatus(
	t *testing.T, w *httptest.ResponseRecorder, code int,
) {
	t.Helper()
	if w.Code != code {
		t.Fatalf(
			"expected status %d, got %d: %s",
			code, w.Code, w.Body.String(),
		)
	}
}

// assertContentType checks that the recorder has the expected
// Content-Type header.
func assertContentType(
	t *testing.T, w *httptest.ResponseRecorder, expected string,
) {
	t.Helper()
	if got := w.Header().Get("Content-Type"); got != expected {
		t.Errorf(
			"Content-Type = %q, want %q", got, expected,
		)
	}
}

// expiredCtx returns a context with a deadline in the past.
func expiredCtx(
	t *testing.T,
) (context.Context, context.CancelFunc) {
	t.Helper()
	return context.WithDeadline(
		context.Background(), time.Now().Add(-1*time.Hour),
	)
}
