package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
)

// Collection provides keyed CRUD and non-unique secondary indexes for one record type.
//
// Layout:
//
//	<name>:<id>                         -> JSON record
//	<name>:idx:<index>:<value>:<id>     -> id
type Collection[T any] struct {
	store   *Store
	name    string
	prefix  string
	keyOf   func(*T) string
	compare func(a, b *T) int
	indexes []Index[T]
}

// Index defines a secondary index on a collection.
// keyGen may return several values; each becomes its own entry.
type Index[T any] struct {
	name   string
	keyGen func(*T) []string
}

// NewCollection creates a collection named name whose primary key is produced by keyOf.
// The collection is usable only once the schema declares it.
func NewCollection[T any](s *Store, name string, keyOf func(*T) string) *Collection[T] {
	c := &Collection[T]{
		store:  s,
		name:   name,
		prefix: name + ":",
		keyOf:  keyOf,
	}
	s.register(c)
	return c
}

// WithIndex declares a secondary index. Entries are maintained only when the
// schema contains the index.
func (c *Collection[T]) WithIndex(name string, keyGen func(*T) []string) *Collection[T] {
	c.indexes = append(c.indexes, Index[T]{name: name, keyGen: keyGen})
	return c
}

// WithOrder sets the order used by All and ByIndex. Without it records come back in key order.
func (c *Collection[T]) WithOrder(compare func(a, b *T) int) *Collection[T] {
	c.compare = compare
	return c
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Get retrieves a record by primary key.
// Returns ErrNotFound if the record does not exist.
func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var record *T
	err := c.store.view(func(txn *badger.Txn) error {
		var err error
		record, err = c.getTxn(txn, id)
		return err
	})
	if err != nil {
		return nil, wrapTxnError(fmt.Sprintf("get %s/%s", c.name, id), err)
	}
	return record, nil
}

// All returns every record in the collection.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []T
	err := c.store.view(func(txn *badger.Txn) error {
		var err error
		records, err = c.allTxn(ctx, txn)
		return err
	})
	if err != nil {
		return nil, wrapTxnError("list "+c.name, err)
	}
	return records, nil
}

// ByIndex returns every record whose index entry equals value.
// An empty value returns every record that has any entry in the index.
func (c *Collection[T]) ByIndex(ctx context.Context, index, value string) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var records []T
	err := c.store.view(func(txn *badger.Txn) error {
		var err error
		records, err = c.byIndexTxn(ctx, txn, index, value)
		return err
	})
	if err != nil {
		return nil, wrapTxnError(fmt.Sprintf("query %s by %s", c.name, index), err)
	}
	return records, nil
}

// Put upserts a record by primary key, replacing the index entries of any previous version.
func (c *Collection[T]) Put(ctx context.Context, record *T) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.store.update(func(txn *badger.Txn) error {
		return c.putTxn(txn, record)
	})
	if err != nil {
		return wrapTxnError(fmt.Sprintf("put %s/%s", c.name, c.keyOf(record)), err)
	}
	return nil
}

// PutAll upserts records in order, each in its own transaction.
// The first failure stops the remainder; committed reports how many were written.
func (c *Collection[T]) PutAll(ctx context.Context, records []T) (committed int, err error) {
	for i := range records {
		if err := c.Put(ctx, &records[i]); err != nil {
			return committed, err
		}
		committed++
	}
	return committed, nil
}

// Delete removes a record and its index entries.
// This operation is idempotent - it does not return an error if the record does not exist.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := c.store.update(func(txn *badger.Txn) error {
		return c.deleteTxn(txn, id)
	})
	if err != nil {
		return wrapTxnError(fmt.Sprintf("delete %s/%s", c.name, id), err)
	}
	return nil
}

// Count returns the number of records in the collection.
func (c *Collection[T]) Count(ctx context.Context) (int, error) {
	records, err := c.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// Transaction-scoped primitives. Callers compose them to get a single snapshot
// or a single atomic write across collections.

func (c *Collection[T]) checkDeclared() error {
	if !c.store.schema.hasCollection(c.name) {
		return fmt.Errorf("collection %q: %w", c.name, ErrUnknownCollection)
	}
	return nil
}

func (c *Collection[T]) recordKey(id string) []byte {
	return []byte(c.prefix + id)
}

func (c *Collection[T]) indexPrefix(index, value string) []byte {
	if value == "" {
		return []byte(c.prefix + "idx:" + index + ":")
	}
	return []byte(c.prefix + "idx:" + index + ":" + value + ":")
}

func (c *Collection[T]) indexKey(index, value, id string) []byte {
	return []byte(c.prefix + "idx:" + index + ":" + value + ":" + id)
}

// activeIndexes returns the indexes present in the stored schema.
func (c *Collection[T]) activeIndexes() []Index[T] {
	active := make([]Index[T], 0, len(c.indexes))
	for _, idx := range c.indexes {
		if c.store.schema.hasIndex(c.name, idx.name) {
			active = append(active, idx)
		}
	}
	return active
}

func (c *Collection[T]) getTxn(txn *badger.Txn, id string) (*T, error) {
	if err := c.checkDeclared(); err != nil {
		return nil, err
	}

	item, err := txn.Get(c.recordKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	var record T
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &record)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s record: %w", c.name, err)
	}
	return &record, nil
}

func (c *Collection[T]) allTxn(ctx context.Context, txn *badger.Txn) ([]T, error) {
	if err := c.checkDeclared(); err != nil {
		return nil, err
	}

	prefix := []byte(c.prefix)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)
	defer it.Close()

	records := make([]T, 0)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		// Skip index keys
		key := string(it.Item().Key())
		if strings.HasPrefix(key[len(c.prefix):], "idx:") {
			continue
		}

		var record T
		err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s record: %w", c.name, err)
		}
		records = append(records, record)
	}

	c.sort(records)
	return records, nil
}

func (c *Collection[T]) byIndexTxn(ctx context.Context, txn *badger.Txn, index, value string) ([]T, error) {
	if err := c.checkDeclared(); err != nil {
		return nil, err
	}
	if !c.store.schema.hasIndex(c.name, index) {
		return nil, fmt.Errorf("index %q on %q: %w", index, c.name, ErrUnknownIndex)
	}

	prefix := c.indexPrefix(index, value)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	opts.PrefetchValues = true

	it := txn.NewIterator(opts)
	defer it.Close()

	// Index values are non-unique, and a record may carry several values.
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		err := it.Item().Value(func(val []byte) error {
			id := string(val)
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to read index entry: %w", err)
		}
	}

	records := make([]T, 0, len(ids))
	for _, id := range ids {
		record, err := c.getTxn(txn, id)
		if errors.Is(err, ErrNotFound) {
			// Dangling entry; the record was removed without its index.
			continue
		}
		if err != nil {
			return nil, err
		}
		records = append(records, *record)
	}

	c.sort(records)
	return records, nil
}

func (c *Collection[T]) putTxn(txn *badger.Txn, record *T) error {
	if err := c.checkDeclared(); err != nil {
		return err
	}

	id := c.keyOf(record)
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", c.name, err)
	}

	old, err := c.getTxn(txn, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	active := c.activeIndexes()
	if old != nil {
		if err := c.deleteIndexEntries(txn, active, old, id); err != nil {
			return err
		}
	}

	if err := txn.Set(c.recordKey(id), data); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return c.setIndexEntries(txn, active, record, id)
}

func (c *Collection[T]) deleteTxn(txn *badger.Txn, id string) error {
	old, err := c.getTxn(txn, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := c.deleteIndexEntries(txn, c.activeIndexes(), old, id); err != nil {
		return err
	}
	if err := txn.Delete(c.recordKey(id)); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

func (c *Collection[T]) setIndexEntries(txn *badger.Txn, indexes []Index[T], record *T, id string) error {
	for _, idx := range indexes {
		for _, value := range idx.keyGen(record) {
			if value == "" {
				continue
			}
			if err := txn.Set(c.indexKey(idx.name, value, id), []byte(id)); err != nil {
				return fmt.Errorf("failed to set index key: %w", err)
			}
		}
	}
	return nil
}

func (c *Collection[T]) deleteIndexEntries(txn *badger.Txn, indexes []Index[T], record *T, id string) error {
	for _, idx := range indexes {
		for _, value := range idx.keyGen(record) {
			if value == "" {
				continue
			}
			if err := txn.Delete(c.indexKey(idx.name, value, id)); err != nil {
				return fmt.Errorf("failed to delete index key: %w", err)
			}
		}
	}
	return nil
}

// backfillIndex writes index entries for every existing record.
// Re-running it rewrites the same keys.
func (c *Collection[T]) backfillIndex(txn *badger.Txn, index string) (int, error) {
	var target *Index[T]
	for i := range c.indexes {
		if c.indexes[i].name == index {
			target = &c.indexes[i]
			break
		}
	}
	if target == nil {
		return 0, fmt.Errorf("index %q on %q has no key generator: %w", index, c.name, ErrUnknownIndex)
	}

	records, err := c.allTxn(context.Background(), txn)
	if err != nil {
		return 0, err
	}
	for i := range records {
		if err := c.setIndexEntries(txn, []Index[T]{*target}, &records[i], c.keyOf(&records[i])); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

func (c *Collection[T]) sort(records []T) {
	if c.compare == nil {
		return
	}
	slices.SortStableFunc(records, func(a, b T) int {
		return c.compare(&a, &b)
	})
}
