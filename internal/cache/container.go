package cache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/jpgfer/mws-restaurant-1/internal/connectivity"
	"github.com/jpgfer/mws-restaurant-1/internal/id"
	"github.com/jpgfer/mws-restaurant-1/internal/store"
)

// Config configures a Container.
type Config struct {
	// Origin is the absolute base URL requests are forwarded to.
	Origin string
	// Version is the cache version of the first worker.
	Version string
	// Manifest lists static assets relative to Origin.
	Manifest []string
	// DenyList holds path regexes that bypass the caches.
	DenyList []string
	// SkipWaiting lets an installed worker replace the active one at once
	// instead of waiting until no client is registered.
	SkipWaiting bool
}

func (c *Config) setDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if c.Manifest == nil {
		c.Manifest = DefaultManifest
	}
	if c.DenyList == nil {
		c.DenyList = DefaultDenyList
	}
}

// Client is a registered page. Its fetches go through its controller.
type Client struct {
	controller atomic.Pointer[Worker]
	ID         string
}

// Controller returns the worker controlling the client, nil if none.
func (cl *Client) Controller() *Worker {
	return cl.controller.Load()
}

// Container holds the registered clients and the active worker.
type Container struct {
	*upstream
	cache   *store.HTTPCache
	conn    connectivity.Provider
	deny    *DenyList
	logger  *slog.Logger
	active  *Worker
	waiting *Worker
	clients map[string]*Client
	cfg     Config
	mu      sync.Mutex
	// updateMu serializes worker rollouts.
	updateMu sync.Mutex
}

// NewContainer creates a container with no worker. Call Update to install
// and activate the first one.
func NewContainer(cfg Config, cache *store.HTTPCache, conn connectivity.Provider, client Doer, logger *slog.Logger) (*Container, error) {
	cfg.setDefaults()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	up, err := newUpstream(cfg.Origin, client, logger)
	if err != nil {
		return nil, err
	}
	deny, err := NewDenyList(cfg.DenyList)
	if err != nil {
		return nil, err
	}

	return &Container{
		upstream: up,
		cache:    cache,
		conn:     conn,
		deny:     deny,
		logger:   logger,
		clients:  make(map[string]*Client),
		cfg:      cfg,
	}, nil
}

// Version returns the configured base version.
func (c *Container) Version() string {
	return c.cfg.Version
}

// Active returns the active worker, nil before the first activation.
func (c *Container) Active() *Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Waiting returns the installed worker waiting to activate, if any.
func (c *Container) Waiting() *Worker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waiting
}

// Update installs a worker for version. It activates immediately when
// SkipWaiting is set or no worker is active; otherwise it waits until the
// last client unregisters.
func (c *Container) Update(ctx context.Context, version string) (*Worker, error) {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()

	if active := c.Active(); active != nil && active.Version() == version {
		return active, nil
	}

	w := newWorker(c, version)
	if err := w.Install(ctx); err != nil {
		return nil, err
	}

	c.mu.Lock()
	activateNow := c.cfg.SkipWaiting || c.active == nil || len(c.clients) == 0
	if !activateNow {
		if c.waiting != nil {
			c.waiting.setState(StateRedundant)
		}
		c.waiting = w
	}
	c.mu.Unlock()

	if !activateNow {
		c.logger.Info("cache worker waiting", "worker", w.ID(), "version", version)
		return w, nil
	}
	if err := w.Activate(ctx); err != nil {
		return nil, fmt.Errorf("activate %s: %w", version, err)
	}
	return w, nil
}

// claim makes w the active worker and the controller of every client.
// It returns the number of clients claimed.
func (c *Container) claim(w *Worker) int {
	c.mu.Lock()
	previous := c.active
	c.active = w
	if c.waiting == w {
		c.waiting = nil
	}
	for _, cl := range c.clients {
		cl.controller.Store(w)
	}
	n := len(c.clients)
	c.mu.Unlock()

	if previous != nil && previous != w {
		previous.setState(StateRedundant)
	}
	return n
}

// Register adds a client controlled by the active worker, if any.
func (c *Container) Register() *Client {
	cl := &Client{ID: id.MustGenerate(id.PrefixPageClient)}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != nil {
		cl.controller.Store(c.active)
	}
	c.clients[cl.ID] = cl
	return cl
}

// Unregister removes a client. When it was the last one, a waiting worker
// is activated.
func (c *Container) Unregister(ctx context.Context, cl *Client) error {
	c.mu.Lock()
	delete(c.clients, cl.ID)
	waiting := c.waiting
	last := len(c.clients) == 0
	c.mu.Unlock()

	if !last || waiting == nil {
		return nil
	}

	c.updateMu.Lock()
	defer c.updateMu.Unlock()
	if c.Waiting() != waiting {
		return nil
	}
	return waiting.Activate(ctx)
}

// Clients returns the registered clients ordered by id.
func (c *Container) Clients() []*Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := slices.Sorted(maps.Keys(c.clients))
	out := make([]*Client, len(ids))
	for i, k := range ids {
		out[i] = c.clients[k]
	}
	return out
}

// Fetch routes req through the client's controller, or straight to the
// network when the client is not controlled.
func (c *Container) Fetch(ctx context.Context, cl *Client, req *http.Request) (*Response, error) {
	if w := cl.Controller(); w != nil {
		return w.Fetch(ctx, req)
	}
	return c.passThrough(ctx, req)
}
