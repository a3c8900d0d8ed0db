package store_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpgfer/mws-restaurant-1/internal/store"
)

func setupTestCache(t *testing.T) *store.HTTPCache {
	t.Helper()

	c, err := store.OpenHTTPCache("", nil, true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestHTTPCache_PutMatch(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	key := store.RequestKey("get", "http://localhost:8000/css/styles.css")
	assert.Equal(t, "GET http://localhost:8000/css/styles.css", key)

	resp := &store.CachedResponse{
		Status: http.StatusOK,
		Header: http.Header{"Content-Type": []string{"text/css"}},
		Body:   []byte("body{}"),
	}
	require.NoError(t, c.Put(ctx, "mws-dynamic-v1", key, resp))

	got, err := c.Match(ctx, "mws-dynamic-v1", key)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Equal(t, "text/css", got.Header.Get("Content-Type"))
	assert.Equal(t, []byte("body{}"), got.Body)
	assert.False(t, got.StoredAt.IsZero())

	_, err = c.Match(ctx, "mws-static-v1", key)
	assert.ErrorIs(t, err, store.ErrNotFound, "caches are isolated by name")
}

func TestHTTPCache_NamesKeysAndDelete(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.PutBatch(ctx, "mws-static-v1", map[string]*store.CachedResponse{
		store.RequestKey("GET", "/index.html"):     {Status: 200, Body: []byte("<html>")},
		store.RequestKey("GET", "/css/styles.css"): {Status: 200, Body: []byte("body{}")},
	}))
	require.NoError(t, c.Open(ctx, "mws-dynamic-v1"))
	require.NoError(t, c.Put(ctx, "mws-static-v0", store.RequestKey("GET", "/index.html"), &store.CachedResponse{Status: 200}))

	names, err := c.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mws-dynamic-v1", "mws-static-v0", "mws-static-v1"}, names)

	keys, err := c.Keys(ctx, "mws-static-v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /css/styles.css", "GET /index.html"}, keys)

	require.NoError(t, c.Delete(ctx, "mws-static-v1", "GET /index.html"))
	require.NoError(t, c.Delete(ctx, "mws-static-v1", "GET /missing"))
	keys, err = c.Keys(ctx, "mws-static-v1")
	require.NoError(t, err)
	assert.Equal(t, []string{"GET /css/styles.css"}, keys)

	require.NoError(t, c.DeleteCache(ctx, "mws-static-v0"))
	names, err = c.Names(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"mws-dynamic-v1", "mws-static-v1"}, names)

	_, err = c.Match(ctx, "mws-static-v0", "GET /index.html")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Same key in another cache survives.
	keys, err = c.Keys(ctx, "mws-static-v1")
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}
