package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync/atomic"

	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
	"github.com/jpgfer/mws-restaurant-1/internal/id"
	"github.com/jpgfer/mws-restaurant-1/internal/store"
)

// State is the lifecycle state of a worker.
type State int32

const (
	StateParsed State = iota
	StateInstalling
	StateInstalled
	StateActivating
	StateActivated
	StateRedundant
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateParsed:
		return "parsed"
	case StateInstalling:
		return "installing"
	case StateInstalled:
		return "installed"
	case StateActivating:
		return "activating"
	case StateActivated:
		return "activated"
	case StateRedundant:
		return "redundant"
	default:
		return "unknown"
	}
}

// Worker answers requests from one version of the static and dynamic caches.
type Worker struct {
	*upstream
	container   *Container
	deny        *DenyList
	cache       *store.HTTPCache
	logger      *slog.Logger
	id          string
	version     string
	staticName  string
	dynamicName string
	manifest    []string
	state       atomic.Int32
}

// ID returns the worker id.
func (w *Worker) ID() string { return w.id }

// Version returns the cache version the worker serves.
func (w *Worker) Version() string { return w.version }

// StaticCache returns the name of the worker's static cache.
func (w *Worker) StaticCache() string { return w.staticName }

// DynamicCache returns the name of the worker's dynamic cache.
func (w *Worker) DynamicCache() string { return w.dynamicName }

// State returns the lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

func (w *Worker) transition(from, to State) error {
	if !w.state.CompareAndSwap(int32(from), int32(to)) {
		return domainerrors.Conflictf("worker %s is %s, want %s", w.id, w.State(), from)
	}
	return nil
}

// Install fetches every manifest asset from the origin and stores them in the
// static cache. Installation is all or nothing: any failed or non-200 asset
// fails it, nothing is written and the worker becomes redundant.
func (w *Worker) Install(ctx context.Context) error {
	if err := w.transition(StateParsed, StateInstalling); err != nil {
		return err
	}

	entries := make(map[string]*store.CachedResponse, len(w.manifest))
	for _, asset := range w.manifest {
		target := w.resolve(asset, "")
		resp, err := w.do(ctx, http.MethodGet, target, nil, nil)
		if err != nil {
			w.setState(StateRedundant)
			return fmt.Errorf("install %s: %w", w.version, err)
		}
		if resp.Status != http.StatusOK {
			w.setState(StateRedundant)
			return fmt.Errorf("install %s: %s returned %d", w.version, target, resp.Status)
		}
		entries[requestKey(target)] = toCached(resp)
	}

	if err := w.cache.PutBatch(ctx, w.staticName, entries); err != nil {
		w.setState(StateRedundant)
		return fmt.Errorf("install %s: %w", w.version, err)
	}

	w.setState(StateInstalled)
	w.logger.Info("cache worker installed", "worker", w.id, "version", w.version, "assets", len(entries))
	return nil
}

// Activate deletes every cache that does not belong to this worker and
// claims all registered clients, so their next fetch goes through w.
func (w *Worker) Activate(ctx context.Context) error {
	if err := w.transition(StateInstalled, StateActivating); err != nil {
		return err
	}

	names, err := w.cache.Names(ctx)
	if err != nil {
		w.setState(StateInstalled)
		return err
	}
	for _, name := range names {
		if name == w.staticName || name == w.dynamicName {
			continue
		}
		if err := w.cache.DeleteCache(ctx, name); err != nil {
			w.setState(StateInstalled)
			return err
		}
		w.logger.Info("stale cache deleted", "cache", name)
	}
	if err := w.cache.Open(ctx, w.dynamicName); err != nil {
		w.setState(StateInstalled)
		return err
	}

	w.setState(StateActivated)
	claimed := w.container.claim(w)
	w.logger.Info("cache worker activated", "worker", w.id, "version", w.version, "clients", claimed)
	return nil
}

// Fetch answers req.
//
// Deny-listed paths and non-GET requests go to the network and are never
// cached. Everything else is served from the static cache, then the dynamic
// cache, then (online only) the network, keeping a copy of 200 responses in
// the dynamic cache. Errors wrap ErrNetwork or ErrCacheMiss.
func (w *Worker) Fetch(ctx context.Context, req *http.Request) (*Response, error) {
	if req.Method != http.MethodGet || w.deny.Match(req.URL.Path) {
		return w.passThrough(ctx, req)
	}

	target := w.resolve(req.URL.Path, req.URL.RawQuery)
	key := requestKey(target)

	for _, c := range []struct {
		name   string
		source Source
	}{
		{w.staticName, SourceStatic},
		{w.dynamicName, SourceDynamic},
	} {
		cached, err := w.cache.Match(ctx, c.name, key)
		if err == nil {
			return fromCached(cached, c.source), nil
		}
		if !errors.Is(err, domainerrors.ErrNotFound) {
			w.logger.Warn("cache lookup failed", "cache", c.name, "key", key, "error", err)
		}
	}

	if !w.container.conn.IsOnline() {
		return nil, fmt.Errorf("%w: %s", ErrCacheMiss, key)
	}

	resp, err := w.do(ctx, http.MethodGet, target, req.Header, nil)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusOK {
		if err := w.cache.Put(ctx, w.dynamicName, key, toCached(resp)); err != nil {
			w.logger.Warn("failed to cache response", "cache", w.dynamicName, "key", key, "error", err)
		}
	}
	return resp, nil
}

func requestKey(target *url.URL) string {
	return store.RequestKey(http.MethodGet, target.String())
}

func toCached(resp *Response) *store.CachedResponse {
	return &store.CachedResponse{
		Status: resp.Status,
		Header: resp.Header.Clone(),
		Body:   slices.Clone(resp.Body),
	}
}

func fromCached(c *store.CachedResponse, source Source) *Response {
	return &Response{
		Status: c.Status,
		Header: cleanHeader(c.Header),
		Body:   c.Body,
		Source: source,
	}
}

func newWorker(c *Container, version string) *Worker {
	return &Worker{
		upstream:    c.upstream,
		container:   c,
		deny:        c.deny,
		cache:       c.cache,
		logger:      c.logger,
		id:          id.WorkerID(),
		version:     version,
		staticName:  StaticCacheName(version),
		dynamicName: DynamicCacheName(version),
		manifest:    slices.Clone(c.cfg.Manifest),
	}
}
