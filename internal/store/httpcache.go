package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	domainerrors "github.com/jpgfer/mws-restaurant-1/internal/errors"
)

const (
	cacheEntryPrefix = "cache:"
	cacheNamePrefix  = "meta:cache:"
)

// CachedResponse is a stored HTTP response.
type CachedResponse struct {
	StoredAt time.Time   `json:"stored_at"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	Status   int         `json:"status"`
}

// HTTPCache keeps named HTTP response caches in their own Badger database.
//
// Layout:
//
//	meta:cache:<name>               -> creation time
//	cache:<name>:<METHOD> <url>     -> JSON CachedResponse
type HTTPCache struct {
	db     *badger.DB
	logger *slog.Logger
}

// OpenHTTPCache opens the response cache database at path.
func OpenHTTPCache(path string, logger *slog.Logger, inMemory bool) (*HTTPCache, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, domainerrors.Storage(err, "failed to open http cache db")
	}
	if logger != nil {
		logger.Info("HTTP cache opened", "path", path)
	}
	return &HTTPCache{db: db, logger: logger}, nil
}

// Close closes the cache database.
func (c *HTTPCache) Close() error {
	return c.db.Close()
}

// RequestKey is the lookup key of a request inside a cache.
func RequestKey(method, url string) string {
	if method == "" {
		method = http.MethodGet
	}
	return strings.ToUpper(method) + " " + url
}

func entryKey(name, reqKey string) []byte {
	return []byte(cacheEntryPrefix + name + ":" + reqKey)
}

func entryPrefix(name string) []byte {
	return []byte(cacheEntryPrefix + name + ":")
}

// Open declares a named cache, creating it if needed.
func (c *HTTPCache) Open(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return ensureCacheName(txn, name)
	})
	return wrapTxnError("open cache "+name, err)
}

func ensureCacheName(txn *badger.Txn, name string) error {
	key := []byte(cacheNamePrefix + name)
	_, err := txn.Get(key)
	if err == nil {
		return nil
	}
	if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}
	return txn.Set(key, []byte(time.Now().UTC().Format(time.RFC3339)))
}

// Match returns the response stored for reqKey in the named cache.
// Returns ErrNotFound on a miss.
func (c *HTTPCache) Match(ctx context.Context, name, reqKey string) (*CachedResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var resp CachedResponse
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(name, reqKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &resp)
		})
	})
	if err != nil {
		return nil, wrapTxnError(fmt.Sprintf("match %s in %s", reqKey, name), err)
	}
	return &resp, nil
}

// Put stores resp under reqKey in the named cache, creating the cache if needed.
func (c *HTTPCache) Put(ctx context.Context, name, reqKey string, resp *CachedResponse) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := marshalResponse(resp)
	if err != nil {
		return err
	}

	err = c.db.Update(func(txn *badger.Txn) error {
		if err := ensureCacheName(txn, name); err != nil {
			return err
		}
		return txn.Set(entryKey(name, reqKey), data)
	})
	return wrapTxnError(fmt.Sprintf("put %s in %s", reqKey, name), err)
}

// PutBatch stores many responses in the named cache with a write batch.
func (c *HTTPCache) PutBatch(ctx context.Context, name string, entries map[string]*CachedResponse) error {
	if err := c.Open(ctx, name); err != nil {
		return err
	}

	batch := c.db.NewWriteBatch()
	defer batch.Cancel()

	for reqKey, resp := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := marshalResponse(resp)
		if err != nil {
			return err
		}
		if err := batch.Set(entryKey(name, reqKey), data); err != nil {
			return domainerrors.Storagef(err, "batch set %s in %s", reqKey, name)
		}
	}

	if err := batch.Flush(); err != nil {
		return domainerrors.Storagef(err, "flush %d entries into %s", len(entries), name)
	}
	if c.logger != nil {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "cache batch flushed",
			slog.String("cache", name),
			slog.Int("count", len(entries)),
		)
	}
	return nil
}

func marshalResponse(resp *CachedResponse) ([]byte, error) {
	if resp.StoredAt.IsZero() {
		resp.StoredAt = time.Now().UTC()
	}
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal cached response: %w", err)
	}
	return data, nil
}

// Delete removes one entry. Missing entries are not an error.
func (c *HTTPCache) Delete(ctx context.Context, name, reqKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(entryKey(name, reqKey))
	})
	return wrapTxnError(fmt.Sprintf("delete %s from %s", reqKey, name), err)
}

// Keys lists the request keys stored in the named cache, sorted.
func (c *HTTPCache) Keys(ctx context.Context, name string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := entryPrefix(name)
	keys := make([]string, 0)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(bytes.TrimPrefix(it.Item().KeyCopy(nil), prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxnError("list keys of "+name, err)
	}
	sort.Strings(keys)
	return keys, nil
}

// Names lists every declared cache.
func (c *HTTPCache) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(cacheNamePrefix)
	names := make([]string, 0)
	err := c.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			names = append(names, string(bytes.TrimPrefix(it.Item().KeyCopy(nil), prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, wrapTxnError("list caches", err)
	}
	sort.Strings(names)
	return names, nil
}

// DeleteCache drops a named cache and all of its entries.
func (c *HTTPCache) DeleteCache(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	keys, err := c.Keys(ctx, name)
	if err != nil {
		return err
	}

	batch := c.db.NewWriteBatch()
	defer batch.Cancel()

	for _, reqKey := range keys {
		if err := batch.Delete(entryKey(name, reqKey)); err != nil {
			return domainerrors.Storagef(err, "batch delete %s from %s", reqKey, name)
		}
	}
	if err := batch.Delete([]byte(cacheNamePrefix + name)); err != nil {
		return domainerrors.Storagef(err, "batch delete cache name %s", name)
	}
	if err := batch.Flush(); err != nil {
		return domainerrors.Storagef(err, "delete cache %s", name)
	}

	if c.logger != nil {
		c.logger.Info("cache deleted", "cache", name, "entries", len(keys))
	}
	return nil
}
