// Package store is the local persistent cache of restaurants and reviews.
//
// It keeps three collections in a Badger database: restaurants, reviews that
// the backend knows about, and detached reviews created while offline. The
// schema is versioned and evolves through an ordered list of additive
// migrations applied when the store is opened.
package store

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/dgraph-io/badger/v4"

	"github.com/jpgfer/mws-restaurant-1/internal/domain"
	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

const (
	detachedSequenceKey = "seq:detached_reviews"
	sequenceBandwidth   = 16
	maxConflictRetries  = 3
)

// schemaCollection is the non-generic view of a collection the migrator needs.
type schemaCollection interface {
	Name() string
	backfillIndex(txn *badger.Txn, index string) (int, error)
}

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
	schema *schema

	collections map[string]schemaCollection
	detachedSeq *badger.Sequence

	Restaurants     *Collection[domain.Restaurant]
	Reviews         *Collection[domain.Review]
	DetachedReviews *Collection[domain.Review]
}

// Option configures Open.
type Option func(*options)

type options struct {
	migrations    []Migration
	schemaVersion int
	inMemory      bool
}

// WithSchemaVersion opens the store at an older schema generation.
func WithSchemaVersion(v int) Option {
	return func(o *options) { o.schemaVersion = v }
}

// WithMigrations replaces the migration list.
func WithMigrations(steps []Migration) Option {
	return func(o *options) { o.migrations = steps }
}

// WithInMemory keeps the database in memory; path is ignored.
func WithInMemory() Option {
	return func(o *options) { o.inMemory = true }
}

// Open opens (creating if needed) the store at path and migrates it to the target schema version.
func Open(path string, logger *slog.Logger, opts ...Option) (*Store, error) {
	o := options{migrations: Migrations, schemaVersion: SchemaVersion}
	for _, opt := range opts {
		opt(&o)
	}

	bopts := badger.DefaultOptions(path)
	if o.inMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.Logger = nil             // Disable Badger's internal logging
	bopts.SyncWrites = !o.inMemory // Sync writes to disk so a crash cannot lose an acknowledged write
	bopts.CompactL0OnClose = true  // Compact L0 tables on close for faster startup

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to open badger db")
	}

	s := &Store{
		db:          db,
		logger:      logger,
		schema:      newSchema(),
		collections: make(map[string]schemaCollection),
	}
	s.initCollections()

	if err := s.migrate(o.migrations, o.schemaVersion); err != nil {
		_ = db.Close()
		return nil, wrapTxnError("migrate schema", err)
	}

	s.detachedSeq, err = db.GetSequence([]byte(detachedSequenceKey), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, domainerrors.Storage(err, "failed to open detached id sequence")
	}

	if logger != nil {
		logger.Info("Local store opened", "path", path, "name", DatabaseName, "version", s.schema.version)
	}
	return s, nil
}

func (s *Store) initCollections() {
	s.Restaurants = NewCollection(s, CollectionRestaurants, func(r *domain.Restaurant) string {
		return strconv.Itoa(r.ID)
	}).
		WithIndex(IndexBySyncStatus, func(r *domain.Restaurant) []string {
			return []string{string(r.SyncStatus)}
		}).
		WithOrder(func(a, b *domain.Restaurant) int { return cmp.Compare(a.ID, b.ID) })

	s.Reviews = NewCollection(s, CollectionReviews, reviewKey).
		WithIndex(IndexByRestaurantID, reviewRestaurantKey).
		WithIndex(IndexBySyncStatus, func(r *domain.Review) []string {
			return []string{string(r.SyncStatus)}
		}).
		WithOrder(compareReviews)

	s.DetachedReviews = NewCollection(s, CollectionDetachedReviews, reviewKey).
		WithIndex(IndexByRestaurantID, reviewRestaurantKey).
		WithOrder(compareReviews)
}

func reviewKey(r *domain.Review) string {
	return r.Key()
}

func reviewRestaurantKey(r *domain.Review) []string {
	return []string{r.RestaurantKey()}
}

func compareReviews(a, b *domain.Review) int {
	return cmp.Compare(a.ID, b.ID)
}

func (s *Store) register(c schemaCollection) {
	s.collections[c.Name()] = c
}

// Close gracefully closes the database connection.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Info("Closing local store")
	}
	if s.detachedSeq != nil {
		if err := s.detachedSeq.Release(); err != nil && s.logger != nil {
			s.logger.Warn("failed to release detached id sequence", "error", err)
		}
	}
	return s.db.Close()
}

// Name returns the durable database name.
func (s *Store) Name() string {
	return DatabaseName
}

// Version returns the schema version the store is at.
func (s *Store) Version() int {
	return s.schema.version
}

// Collections returns the declared collections and their indexes.
func (s *Store) Collections() map[string][]string {
	out := make(map[string][]string, len(s.schema.collections))
	for name, meta := range s.schema.collections {
		out[name] = append([]string(nil), meta.Indexes...)
	}
	return out
}

// view runs fn in a read-only transaction.
func (s *Store) view(fn func(txn *badger.Txn) error) error {
	return s.db.View(fn)
}

// update runs fn in a read-write transaction, retrying when Badger reports a
// conflict with a concurrent writer.
func (s *Store) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("gave up after %d conflicting attempts: %w", maxConflictRetries, err)
}
