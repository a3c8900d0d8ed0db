// Package di provides dependency injection configuration for the client and
// backend binaries.
package di

import (
	"github.com/samber/do/v2"
	"github.com/spf13/pflag"

	"github.com/jpgfer/mws-restaurant-1/internal/cache"
	"github.com/jpgfer/mws-restaurant-1/internal/config"
	"github.com/jpgfer/mws-restaurant-1/internal/connectivity"
	"github.com/jpgfer/mws-restaurant-1/internal/di/providers"
	"github.com/jpgfer/mws-restaurant-1/internal/logger"
)

// NewClientContainer creates the container of the client. fs carries the
// command-line flags and may be nil.
func NewClientContainer(fs *pflag.FlagSet) *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ConfigProvider(fs))
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideLocalStore)
	do.Provide(injector, providers.ProvideHTTPCache)
	do.Provide(injector, providers.ProvideSearchIndex)

	// Backend access
	do.Provide(injector, providers.ProvideRemoteClient)
	do.Provide(injector, providers.ProvideConnectivity)
	do.Provide(injector, providers.ProvideProber)

	// Sync
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideCoordinator)
	do.Provide(injector, providers.ProvideReconciler)

	// Cache interceptor
	do.Provide(injector, providers.ProvideCacheContainer)
	do.Provide(injector, providers.ProvideManifestWatcher)

	// Server
	do.Provide(injector, providers.ProvideClientServer)

	return injector
}

// NewBackendContainer creates the container of the backend REST server.
func NewBackendContainer(fs *pflag.FlagSet) *do.RootScope {
	injector := do.New()

	do.Provide(injector, providers.ConfigProvider(fs))
	do.Provide(injector, providers.ProvideLogger)
	do.Provide(injector, providers.ProvideBackendStore)
	do.Provide(injector, providers.ProvideAPIServer)
	do.Provide(injector, providers.ProvideBackendServer)

	return injector
}

// BootstrapCommand initializes what one-shot client commands need: the
// stores, the backend client with a first connectivity probe, and the
// coordinator.
func BootstrapCommand(injector *do.RootScope) (*providers.CoordinatorHandle, error) {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return nil, err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	return do.Invoke[*providers.CoordinatorHandle](injector)
}

// BootstrapClient initializes every client service and starts the local
// HTTP front with its background workers.
func BootstrapClient(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	// Storage
	if _, err := do.Invoke[*providers.LocalStoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.HTTPCacheHandle](injector)
	_ = do.MustInvoke[*providers.SearchIndexHandle](injector)

	// Backend access
	_ = do.MustInvoke[*providers.RemoteClientHandle](injector)
	_ = do.MustInvoke[*connectivity.Flag](injector)
	_ = do.MustInvoke[*providers.ProberHandle](injector)

	// Sync
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)
	_ = do.MustInvoke[*providers.CoordinatorHandle](injector)
	_ = do.MustInvoke[*providers.ReconcilerHandle](injector)

	// Cache interceptor
	_ = do.MustInvoke[*cache.Container](injector)
	_ = do.MustInvoke[*providers.ManifestWatcherHandle](injector)

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}

// BootstrapBackend initializes the backend and starts serving.
func BootstrapBackend(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	if _, err := do.Invoke[*providers.BackendStoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.APIServerHandle](injector)
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)
	return nil
}
