package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rtdbServer(
	t *testing.T, handler http.HandlerFunc,
) *RTDB {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r := NewRTDB(RTDBOptions{
		BaseURL:           srv.URL + "/",
		Auth:              "tok en",
		PersonasRoot:      "oshis",
		ConversationsRoot: "chats",
		Client:            srv.Client(),
	})
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRTDBFetch(t *testing.T) {
	var paths []string
	r := rtdbServer(t, func(w http.ResponseWriter, req *http.Request) {
		paths = append(paths, req.URL.Path)
		assert.Equal(t, "tok en", req.URL.Query().Get("auth"))
		switch req.URL.Path {
		case "/oshis.json":
			w.Write([]byte(`{"u1":{"p1":{"name":"Aoi"}}}`))
		case "/chats.json":
			w.Write([]byte(`{"u1":{"p1":{"m1":{"content":"x","timestamp":1}}}}`))
		default:
			http.NotFound(w, req)
		}
	})
	ctx := context.Background()

	p, err := r.FetchPersonas(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Aoi", p.Get("u1.p1.name").String())

	c, err := r.FetchConversations(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", c.Get("u1.p1.m1.content").String())
	assert.Equal(t, []string{"/oshis.json", "/chats.json"}, paths)
}

func TestRTDBNullIsEmpty(t *testing.T) {
	r := rtdbServer(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("null"))
	})
	p, err := r.FetchPersonas(context.Background())
	require.NoError(t, err)
	assert.True(t, p.IsObject())
	assert.Empty(t, p.Map())
}

func TestRTDBErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"permission denied", 401, `{"error":"Permission denied"}`, "Permission denied"},
		{"server error", 500, `oops`, "Internal Server Error"},
		{"invalid json", 200, `{"u1":`, "not valid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := rtdbServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			_, err := r.FetchConversations(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestRTDBBodyLimit(t *testing.T) {
	const body = `{"u1":{"p1":{}}}` // 16 bytes
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte(body))
		},
	))
	t.Cleanup(srv.Close)

	fetch := func(limit int64) error {
		r := NewRTDB(RTDBOptions{
			BaseURL:      srv.URL,
			PersonasRoot: "oshis",
			MaxBody:      limit,
			Client:       srv.Client(),
		})
		defer r.Close()
		_, err := r.FetchPersonas(context.Background())
		return err
	}

	require.NoError(t, fetch(int64(len(body))))
	err := fetch(int64(len(body)) - 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "response exceeds 15 bytes")
	assert.NotContains(t, err.Error(), "not valid JSON")
}

func TestRTDBRootURL(t *testing.T) {
	r := NewRTDB(RTDBOptions{BaseURL: "https://db.example.com/"})
	assert.Equal(t, "https://db.example.com/chats.json", r.rootURL("chats"))

	r = NewRTDB(RTDBOptions{BaseURL: "https://db.example.com", Auth: "a&b"})
	assert.Equal(t,
		"https://db.example.com/chats.json?auth=a%26b", r.rootURL("chats"),
	)
}
