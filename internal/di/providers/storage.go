package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/jpgfer/mws-restaurant-1/internal/config"
	"github.com/jpgfer/mws-restaurant-1/internal/logger"
	"github.com/jpgfer/mws-restaurant-1/internal/search"
	"github.com/jpgfer/mws-restaurant-1/internal/store"
	"github.com/jpgfer/mws-restaurant-1/internal/store/sqlite"
)

// LocalStoreHandle wraps the client's Local Store with shutdown capability.
type LocalStoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *LocalStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideLocalStore opens the Local Store and migrates it to the current schema.
func ProvideLocalStore(i do.Injector) (*LocalStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	var opts []store.Option
	if cfg.Storage.InMemory {
		opts = append(opts, store.WithInMemory())
	}
	st, err := store.Open(cfg.Storage.LocalDBPath, log.Component("store"), opts...)
	if err != nil {
		return nil, err
	}

	log.Info("Local store opened",
		"name", st.Name(),
		"path", cfg.Storage.LocalDBPath,
		"in_memory", cfg.Storage.InMemory,
		"version", st.Version(),
		"collections", st.Collections(),
	)

	return &LocalStoreHandle{Store: st}, nil
}

// HTTPCacheHandle wraps the interceptor's cache database.
type HTTPCacheHandle struct {
	*store.HTTPCache
}

// Shutdown implements do.Shutdownable.
func (h *HTTPCacheHandle) Shutdown() error {
	return h.Close()
}

// ProvideHTTPCache opens the database holding the interceptor's named caches.
func ProvideHTTPCache(i do.Injector) (*HTTPCacheHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	c, err := store.OpenHTTPCache(cfg.Storage.CacheDBPath, log.Component("httpcache"), cfg.Storage.InMemory)
	if err != nil {
		return nil, err
	}

	log.Info("HTTP cache opened", "path", cfg.Storage.CacheDBPath)

	return &HTTPCacheHandle{HTTPCache: c}, nil
}

// SearchIndexHandle wraps the search index with shutdown capability.
type SearchIndexHandle struct {
	*search.SearchIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve restaurant index.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dataPath := cfg.Storage.SearchPath
	if cfg.Storage.InMemory {
		dataPath = ""
	}
	index, err := search.NewSearchIndex(search.Options{
		DataPath: dataPath,
		Logger:   log.Component("search"),
	})
	if err != nil {
		return nil, err
	}

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{SearchIndex: index}, nil
}

// BackendStoreHandle wraps the backend's SQLite store.
type BackendStoreHandle struct {
	*sqlite.Store
}

// Shutdown implements do.Shutdownable.
func (h *BackendStoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideBackendStore opens the backend database.
func ProvideBackendStore(i do.Injector) (*BackendStoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, err := sqlite.Open(cfg.Backend.DBPath, log.Component("sqlite"))
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", cfg.Backend.DBPath)

	if cfg.Backend.SeedFile != "" {
		if err := seedIfEmpty(st, cfg.Backend.SeedFile, log); err != nil {
			st.Close()
			return nil, err
		}
	}

	return &BackendStoreHandle{Store: st}, nil
}

// seedIfEmpty loads the seed file into a database without restaurants.
func seedIfEmpty(st *sqlite.Store, path string, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	count, err := st.CountRestaurants(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		log.Debug("Database already seeded", "restaurants", count)
		return nil
	}

	seed, err := sqlite.ReadSeedFile(path)
	if err != nil {
		return err
	}
	result, err := st.Seed(ctx, seed)
	if err != nil {
		return err
	}
	log.Info("Database seeded", "file", path, "restaurants", result.Restaurants, "reviews", result.Reviews)
	return nil
}
