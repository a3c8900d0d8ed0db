package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/dgraph-io/badger/v4"
)

// DatabaseName is the durable name of the local database.
const DatabaseName = "restaurants-db"

// Collection and index names are part of the durable contract.
const (
	CollectionRestaurants     = "restaurants"
	CollectionReviews         = "reviews"
	CollectionDetachedReviews = "detached_reviews"

	IndexByRestaurantID = "by-restaurant-id"
	IndexBySyncStatus   = "by-sync-status"
)

// SchemaVersion is the schema generation this binary opens the store at.
const SchemaVersion = 4

const (
	schemaVersionKey     = "meta:schema_version"
	nameKey              = "meta:name"
	collectionMetaPrefix = "meta:collection:"
)

// Migration is one additive schema step. Apply must be idempotent.
type Migration struct {
	Apply       func(tx *SchemaTx) error
	Description string
	Version     int
}

// Migrations is the ordered list of schema steps. Step N takes the store from version N-1 to N.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "create restaurants collection",
		Apply: func(tx *SchemaTx) error {
			return tx.CreateCollection(CollectionRestaurants, "id")
		},
	},
	{
		Version:     2,
		Description: "create reviews collection indexed by restaurant",
		Apply: func(tx *SchemaTx) error {
			if err := tx.CreateCollection(CollectionReviews, "id"); err != nil {
				return err
			}
			return tx.CreateIndex(CollectionReviews, IndexByRestaurantID)
		},
	},
	{
		Version:     3,
		Description: "create detached_reviews collection indexed by restaurant",
		Apply: func(tx *SchemaTx) error {
			if err := tx.CreateCollection(CollectionDetachedReviews, "id"); err != nil {
				return err
			}
			return tx.CreateIndex(CollectionDetachedReviews, IndexByRestaurantID)
		},
	},
	{
		Version:     4,
		Description: "index restaurants and reviews by sync status",
		Apply: func(tx *SchemaTx) error {
			if err := tx.CreateIndex(CollectionRestaurants, IndexBySyncStatus); err != nil {
				return err
			}
			return tx.CreateIndex(CollectionReviews, IndexBySyncStatus)
		},
	},
}

// collectionMeta is the persisted description of one collection.
type collectionMeta struct {
	Name    string   `json:"name"`
	KeyPath string   `json:"keyPath"`
	Indexes []string `json:"indexes"`
}

// schema is the in-memory view of the persisted collection metadata.
type schema struct {
	collections map[string]*collectionMeta
	version     int
}

func newSchema() *schema {
	return &schema{collections: make(map[string]*collectionMeta)}
}

func (s *schema) hasCollection(name string) bool {
	_, ok := s.collections[name]
	return ok
}

func (s *schema) hasIndex(collection, index string) bool {
	meta, ok := s.collections[collection]
	return ok && slices.Contains(meta.Indexes, index)
}

// SchemaTx is the upgrade transaction handed to each migration step.
type SchemaTx struct {
	txn    *badger.Txn
	store  *Store
	logger *slog.Logger
}

// CreateCollection declares a collection. Declaring an existing collection is a no-op.
func (tx *SchemaTx) CreateCollection(name, keyPath string) error {
	if tx.store.schema.hasCollection(name) {
		return nil
	}
	meta := &collectionMeta{Name: name, KeyPath: keyPath, Indexes: []string{}}
	if err := tx.writeMeta(meta); err != nil {
		return err
	}
	tx.store.schema.collections[name] = meta
	return nil
}

// CreateIndex declares an index on an existing collection and backfills it
// from the records already stored. Declaring an existing index is a no-op.
func (tx *SchemaTx) CreateIndex(collection, index string) error {
	meta, ok := tx.store.schema.collections[collection]
	if !ok {
		return fmt.Errorf("create index %q: collection %q: %w", index, collection, ErrUnknownCollection)
	}
	if slices.Contains(meta.Indexes, index) {
		return nil
	}

	c, ok := tx.store.collections[collection]
	if !ok {
		return fmt.Errorf("create index %q: collection %q is not registered: %w", index, collection, ErrUnknownCollection)
	}
	n, err := c.backfillIndex(tx.txn, index)
	if err != nil {
		return fmt.Errorf("backfill %s.%s: %w", collection, index, err)
	}

	updated := *meta
	updated.Indexes = append(slices.Clone(meta.Indexes), index)
	if err := tx.writeMeta(&updated); err != nil {
		return err
	}
	tx.store.schema.collections[collection] = &updated

	if tx.logger != nil && n > 0 {
		tx.logger.Info("index backfilled", "collection", collection, "index", index, "records", n)
	}
	return nil
}

func (tx *SchemaTx) writeMeta(meta *collectionMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal collection meta: %w", err)
	}
	if err := tx.txn.Set([]byte(collectionMetaPrefix+meta.Name), data); err != nil {
		return fmt.Errorf("failed to set collection meta: %w", err)
	}
	return nil
}

// validateMigrations checks that steps are numbered 1..n without gaps.
func validateMigrations(steps []Migration) error {
	for i, step := range steps {
		if step.Version != i+1 {
			return fmt.Errorf("migration %d (%q) out of sequence, expected version %d", step.Version, step.Description, i+1)
		}
		if step.Apply == nil {
			return fmt.Errorf("migration %d has no Apply", step.Version)
		}
	}
	return nil
}

// migrate brings the stored schema up to target inside one transaction.
// Every pending step runs in order; none is skipped.
func (s *Store) migrate(steps []Migration, target int) error {
	if err := validateMigrations(steps); err != nil {
		return err
	}
	if target > len(steps) {
		return fmt.Errorf("target schema version %d has no migration", target)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		loaded, err := loadSchema(txn)
		if err != nil {
			return err
		}
		s.schema = loaded

		if loaded.version > target {
			return fmt.Errorf("stored version %d, supported %d: %w", loaded.version, target, ErrSchemaTooNew)
		}

		tx := &SchemaTx{txn: txn, store: s, logger: s.logger}
		for _, step := range steps[loaded.version:target] {
			if err := step.Apply(tx); err != nil {
				return fmt.Errorf("migration %d (%s): %w", step.Version, step.Description, err)
			}
			if s.logger != nil {
				s.logger.Info("schema migration applied", "version", step.Version, "description", step.Description)
			}
		}

		if err := txn.Set([]byte(schemaVersionKey), []byte(strconv.Itoa(target))); err != nil {
			return fmt.Errorf("failed to set schema version: %w", err)
		}
		if err := txn.Set([]byte(nameKey), []byte(DatabaseName)); err != nil {
			return fmt.Errorf("failed to set database name: %w", err)
		}
		s.schema.version = target
		return nil
	})
}

func loadSchema(txn *badger.Txn) (*schema, error) {
	sc := newSchema()

	item, err := txn.Get([]byte(schemaVersionKey))
	switch {
	case errors.Is(err, badger.ErrKeyNotFound):
		// Fresh database.
	case err != nil:
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	default:
		err = item.Value(func(val []byte) error {
			v, err := strconv.Atoi(string(val))
			if err != nil {
				return fmt.Errorf("corrupt schema version %q: %w", val, err)
			}
			sc.version = v
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	prefix := []byte(collectionMetaPrefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		var meta collectionMeta
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read collection meta: %w", err)
		}
		sc.collections[meta.Name] = &meta
	}
	return sc, nil
}
