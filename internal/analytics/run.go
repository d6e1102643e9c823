// Package analytics aggregates the nested tenant/persona/message
// store into per-conversation summaries and global statistics for
// the administrative chat view.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/oshilog/chatview/internal/parser"
)

var (
	// ErrUnavailable wraps failures to read from the store.
	ErrUnavailable = errors.New("data unavailable")
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("conversation not found")
)

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}

// Source is the read API of the conversation store. Both methods
// return nested trees with no guaranteed ordering or schema. A
// missing root is an empty result, not an error.
type Source interface {
	// FetchPersonas returns tenantId -> personaId -> fields.
	FetchPersonas(ctx context.Context) (gjson.Result, error)
	// FetchConversations returns
	// tenantId -> personaId -> messageKey -> fields.
	FetchConversations(ctx context.Context) (gjson.Result, error)
}

// State describes the outcome of a query for display.
type State string

const (
	StateLoading     State = "loading"
	StateOK          State = "ok"
	StateEmpty       State = "empty"
	StateUnavailable State = "unavailable"
)

// Options configures a pipeline run.
type Options struct {
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
	// Anonymizer labels tenants. Defaults to an unkeyed one.
	Anonymizer *Anonymizer
}

func (o Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

func (o Options) anonymizer() *Anonymizer {
	if o.Anonymizer != nil {
		return o.Anonymizer
	}
	return NewAnonymizer(nil)
}

// Result is the output of one query.
type Result struct {
	State      State            `json:"state"`
	Error      string           `json:"error,omitempty"`
	Request    Request          `json:"request"`
	Cutoff     float64          `json:"cutoff"`
	Sessions   []SessionSummary `json:"sessions"`
	Stats      GlobalStats      `json:"stats"`
	Skipped    int              `json:"skipped_records"`
	Generation uint64           `json:"generation,omitempty"`
	RunID      string           `json:"run_id,omitempty"`
}

// Query loads the persona catalog and runs the pipeline.
func Query(
	ctx context.Context, src Source, req Request, opts Options,
) (Result, error) {
	catalog, err := LoadCatalog(ctx, src, opts.now())
	if err != nil {
		return Result{}, err
	}
	return Run(ctx, src, catalog, req, opts)
}

// Run fetches conversations and produces the summaries for req.
// Stats cover every produced session for the window and persona
// filter; the search text only narrows the returned list.
func Run(
	ctx context.Context, src Source, catalog *Catalog,
	req Request, opts Options,
) (Result, error) {
	now := opts.now()
	tree, err := src.FetchConversations(ctx)
	if err != nil {
		return Result{}, unavailable("fetching conversations", err)
	}

	runID := uuid.NewString()
	cutoff := req.Window.Cutoff(now)
	anon := opts.anonymizer()

	var (
		sessions []SessionSummary
		tenants  = make(map[string]struct{})
		scan     parser.ScanStats
	)
	for _, tenant := range parser.Children(tree) {
		for _, thread := range parser.Children(tenant.Value) {
			if req.PersonaID != "" && thread.Key != req.PersonaID {
				continue
			}
			if !parser.IsContainer(thread.Value) {
				scan.Skipped++
				continue
			}
			// Counted before the window filter.
			tenants[tenant.Key] = struct{}{}

			msgs := parser.ScanConversation(thread.Value, &scan)
			s, ok := Summarize(
				tenant.Key, thread.Key, msgs, cutoff, catalog, anon,
			)
			if ok {
				sessions = append(sessions, s)
			}
		}
	}
	if scan.Skipped > 0 {
		log.Printf(
			"analytics: run %s skipped %d malformed record(s)",
			runID, scan.Skipped,
		)
	}

	stats := ComputeStats(sessions, tenants)
	list := FilterSessions(sessions, "", req.Search)
	SortByRecent(list)

	state := StateOK
	if len(list) == 0 {
		state = StateEmpty
	}
	return Result{
		State:    state,
		Request:  req,
		Cutoff:   cutoff,
		Sessions: list,
		Stats:    stats,
		Skipped:  scan.Skipped,
		RunID:    runID,
	}, nil
}
