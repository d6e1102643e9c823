package analytics

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
)

// ErrStale is returned by Dashboard.Refresh when a newer refresh
// was issued before this one finished.
var ErrStale = errors.New("superseded by a newer query")

// Dashboard holds the current result of an administrative view.
// Every Refresh takes a new generation; a refresh that completes
// after a newer one was issued is discarded.
type Dashboard struct {
	src  Source
	opts Options

	gen atomic.Uint64

	mu      sync.RWMutex
	current Result
	catalog *Catalog
	lastReq Request
}

// NewDashboard returns a dashboard in the loading state.
func NewDashboard(src Source, opts Options) *Dashboard {
	return &Dashboard{
		src:     src,
		opts:    opts,
		current: Result{State: StateLoading, Sessions: []SessionSummary{}},
	}
}

// Refresh reloads the catalog and recomputes the result for req.
// On success the result becomes current. A store failure makes the
// current state unavailable and is returned. If another Refresh
// started meanwhile, nothing is recorded and ErrStale is returned.
func (d *Dashboard) Refresh(
	ctx context.Context, req Request,
) (Result, error) {
	gen := d.gen.Add(1)

	catalog, err := LoadCatalog(ctx, d.src, d.opts.now())
	var res Result
	if err == nil {
		res, err = Run(ctx, d.src, catalog, req, d.opts)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if gen != d.gen.Load() {
		log.Printf("dashboard: discarding generation %d", gen)
		return Result{}, ErrStale
	}
	d.lastReq = req
	if err != nil {
		d.current = Result{
			State:      StateUnavailable,
			Error:      err.Error(),
			Request:    req,
			Sessions:   []SessionSummary{},
			Generation: gen,
		}
		return Result{}, err
	}
	res.Generation = gen
	d.current = res
	d.catalog = catalog
	return res, nil
}

// Rerun refreshes with the most recent request.
func (d *Dashboard) Rerun(ctx context.Context) (Result, error) {
	d.mu.RLock()
	req := d.lastReq
	d.mu.RUnlock()
	return d.Refresh(ctx, req)
}

// Current returns the latest accepted result.
func (d *Dashboard) Current() Result {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.current
}

// Catalog returns the catalog loaded by the latest successful
// refresh, or nil before one.
func (d *Dashboard) Catalog() *Catalog {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.catalog
}

// Generation returns the latest issued generation.
func (d *Dashboard) Generation() uint64 {
	return d.gen.Load()
}
