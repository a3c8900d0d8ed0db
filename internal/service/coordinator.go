// Package service holds the sync coordinator, which decides per read whether
// to hit the backend or the local store, applies writes optimistically, and
// replays pending writes when connectivity returns.
package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jpgfer/mws-restaurant-1/internal/connectivity"
	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	"github.com/jpgfer/mws-restaurant-1/internal/search"
	"github.com/jpgfer/mws-restaurant-1/internal/store"
)

// EventEmitter receives change notifications for UI clients.
type EventEmitter interface {
	Emit(event any)
}

// NoopEmitter is a no-op implementation of EventEmitter for testing.
type NoopEmitter struct{}

// Emit implements EventEmitter.Emit as a no-op.
func (NoopEmitter) Emit(_ any) {}

// NewNoopEmitter creates a new no-op emitter for testing.
func NewNoopEmitter() EventEmitter {
	return NoopEmitter{}
}

// Backend is the part of the remote client the coordinator uses.
type Backend interface {
	Restaurants(ctx context.Context) ([]domain.Restaurant, error)
	Restaurant(ctx context.Context, id int) (*domain.Restaurant, error)
	SetFavorite(ctx context.Context, id int, favorite bool) (*domain.Restaurant, error)
	ReviewsFor(ctx context.Context, restaurantID int) ([]domain.Review, error)
	CreateReview(ctx context.Context, review *domain.Review) (*domain.Review, error)
	UpdateReview(ctx context.Context, review *domain.Review) (*domain.Review, error)
}

// Coordinator orchestrates reads and writes between the local store and the backend.
type Coordinator struct {
	store  *store.Store
	remote Backend
	conn   connectivity.Provider
	index  *search.SearchIndex
	events EventEmitter
	logger *slog.Logger

	// mu guards local read-modify-write sequences. It is never held across a
	// network call.
	mu sync.Mutex

	// promoting holds the temp ids of detached reviews whose backend create
	// is in flight; promoted maps a temp id to its backend id once committed.
	// Both are guarded by mu.
	promoting map[int]struct{}
	promoted  map[int]int

	// reconcileMu serializes reconciliation runs.
	reconcileMu sync.Mutex

	pushes sync.WaitGroup
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithSearchIndex enables Search over persisted restaurants.
func WithSearchIndex(index *search.SearchIndex) Option {
	return func(c *Coordinator) { c.index = index }
}

// NewCoordinator creates a sync coordinator.
func NewCoordinator(
	st *store.Store,
	backend Backend,
	conn connectivity.Provider,
	events EventEmitter,
	logger *slog.Logger,
	opts ...Option,
) *Coordinator {
	if events == nil {
		events = NewNoopEmitter()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Coordinator{
		store:  st,
		remote: backend,
		conn:   conn,
		events: events,
		logger: logger,

		promoting: make(map[int]struct{}),
		promoted:  make(map[int]int),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsOnline reports the connectivity state the coordinator acts on.
func (c *Coordinator) IsOnline() bool {
	return c.conn.IsOnline()
}

// Pending counts the records waiting for reconciliation.
func (c *Coordinator) Pending(ctx context.Context) (store.PendingCounts, error) {
	return c.store.Pending(ctx)
}

// Wait blocks until every background push started by a write has finished.
func (c *Coordinator) Wait() {
	c.pushes.Wait()
}

// push runs fn in the background, detached from the caller's cancellation.
func (c *Coordinator) push(ctx context.Context, fn func(ctx context.Context)) {
	ctx = context.WithoutCancel(ctx)
	c.pushes.Add(1)
	go func() {
		defer c.pushes.Done()
		fn(ctx)
	}()
}
