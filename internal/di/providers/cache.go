package providers

import (
	"context"
	"net/http"
	"sync"

	"github.com/samber/do/v2"

	"github.com/jpgfer/mws-restaurant-1/internal/cache"
	"github.com/jpgfer/mws-restaurant-1/internal/config"
	"github.com/jpgfer/mws-restaurant-1/internal/connectivity"
	"github.com/jpgfer/mws-restaurant-1/internal/logger"
)

// ProvideCacheContainer provides the cache interceptor container and rolls
// out the configured worker version. When the origin cannot be reached the
// container starts without a worker and requests pass through to the network.
func ProvideCacheContainer(i do.Injector) (*cache.Container, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	cacheHandle := do.MustInvoke[*HTTPCacheHandle](i)
	flag := do.MustInvoke[*connectivity.Flag](i)

	container, err := cache.NewContainer(cache.Config{
		Origin:      cfg.Cache.Origin,
		Version:     cfg.Cache.Version,
		SkipWaiting: cfg.Cache.SkipWaiting,
	}, cacheHandle.HTTPCache, flag, &http.Client{Timeout: cfg.Remote.Timeout}, log.Component("cache"))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	w, err := container.Update(ctx, container.Version())
	if err != nil {
		log.Warn("Cache worker install failed, serving from network", "origin", cfg.Cache.Origin, "error", err)
		return container, nil
	}

	log.Info("Cache interceptor ready", "origin", cfg.Cache.Origin, "version", w.Version(), "state", w.State())

	return container, nil
}

// ManifestWatcherHandle runs the static asset watcher.
type ManifestWatcherHandle struct {
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Shutdown implements do.Shutdownable.
func (h *ManifestWatcherHandle) Shutdown() error {
	h.cancel()
	h.wg.Wait()
	return nil
}

// ProvideManifestWatcher watches the configured assets directory and rolls
// out a new worker whenever a manifest asset changes. Without an assets
// directory the handle is inert.
func ProvideManifestWatcher(i do.Injector) (*ManifestWatcherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	container := do.MustInvoke[*cache.Container](i)

	ctx, cancel := context.WithCancel(context.Background())
	h := &ManifestWatcherHandle{cancel: cancel}

	if cfg.Cache.AssetsDir == "" {
		log.Debug("Asset watching disabled")
		return h, nil
	}

	mw := cache.NewManifestWatcher(container, cfg.Cache.AssetsDir, cfg.Cache.QuietPeriod, log.Component("manifest"))
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := mw.Run(ctx); err != nil {
			log.Error("Asset watcher stopped", "dir", cfg.Cache.AssetsDir, "error", err)
		}
	}()

	return h, nil
}
