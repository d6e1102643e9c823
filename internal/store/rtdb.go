package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// defaultMaxBody caps a single root download.
const defaultMaxBody = 256 << 20

// RTDBOptions configures an RTDB backend.
type RTDBOptions struct {
	// BaseURL is the database URL, e.g.
	// https://example-default-rtdb.firebaseio.com.
	BaseURL string
	// Auth is sent as the auth query parameter when set.
	Auth              string
	PersonasRoot      string
	ConversationsRoot string
	Timeout           time.Duration
	// MaxBody caps the response size in bytes. Zero means 256 MiB.
	MaxBody int64
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// RTDB reads trees from the Realtime Database REST API.
type RTDB struct {
	opts   RTDBOptions
	client *http.Client
}

// NewRTDB returns an RTDB backend.
func NewRTDB(opts RTDBOptions) *RTDB {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.MaxBody <= 0 {
		opts.MaxBody = defaultMaxBody
	}
	return &RTDB{opts: opts, client: client}
}

func (r *RTDB) rootURL(root string) string {
	u := r.opts.BaseURL + "/" + url.PathEscape(root) + ".json"
	if r.opts.Auth != "" {
		u += "?" + url.Values{"auth": {r.opts.Auth}}.Encode()
	}
	return u
}

func (r *RTDB) get(ctx context.Context, root string) (gjson.Result, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, r.rootURL(root), nil,
	)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("fetching %s: %w", root, err)
	}
	defer resp.Body.Close()

	limit := r.opts.MaxBody
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("reading %s: %w", root, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := gjson.GetBytes(body, "error").String()
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return gjson.Result{}, fmt.Errorf(
			"fetching %s: status %d: %s", root, resp.StatusCode, msg,
		)
	}
	if int64(len(body)) > limit {
		return gjson.Result{}, fmt.Errorf(
			"fetching %s: response exceeds %d bytes", root, limit,
		)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf(
			"fetching %s: response is not valid JSON", root,
		)
	}
	res := gjson.ParseBytes(body)
	if res.Type == gjson.Null {
		return emptyTree, nil
	}
	return res, nil
}

// FetchPersonas downloads the persona root.
func (r *RTDB) FetchPersonas(ctx context.Context) (gjson.Result, error) {
	return r.get(ctx, r.opts.PersonasRoot)
}

// FetchConversations downloads the conversation root.
func (r *RTDB) FetchConversations(
	ctx context.Context,
) (gjson.Result, error) {
	return r.get(ctx, r.opts.ConversationsRoot)
}

// Close releases idle connections.
func (r *RTDB) Close() error {
	r.client.CloseIdleConnections()
	return nil
}
