package providers

import (
	"context"
	"sync"

	"github.com/samber/do/v2"

	"github.com/jpgfer/mws-restaurant-1/internal/connectivity"
	"github.com/jpgfer/mws-restaurant-1/internal/logger"
	"github.com/jpgfer/mws-restaurant-1/internal/service"
	"github.com/jpgfer/mws-restaurant-1/internal/sse"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Component("sse"))

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Debug("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// CoordinatorHandle wraps the sync coordinator so shutdown joins its
// background favorite pushes.
type CoordinatorHandle struct {
	*service.Coordinator
}

// Shutdown implements do.Shutdownable.
func (h *CoordinatorHandle) Shutdown() error {
	h.Wait()
	return nil
}

// ProvideCoordinator provides the sync coordinator.
func ProvideCoordinator(i do.Injector) (*CoordinatorHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*LocalStoreHandle](i)
	clientHandle := do.MustInvoke[*RemoteClientHandle](i)
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	flag := do.MustInvoke[*connectivity.Flag](i)

	// The first probe runs before the coordinator reads the flag.
	_ = do.MustInvoke[*ProberHandle](i)

	coord := service.NewCoordinator(
		storeHandle.Store,
		clientHandle.Client,
		flag,
		sseHandle.Manager,
		log.Component("sync"),
		service.WithSearchIndex(indexHandle.SearchIndex),
	)

	return &CoordinatorHandle{Coordinator: coord}, nil
}

// ReconcilerHandle runs background probing and reconciles the Local Store on
// every offline to online transition.
type ReconcilerHandle struct {
	cancel context.CancelFunc
	prober *ProberHandle
	wg     sync.WaitGroup
}

// Shutdown implements do.Shutdownable.
func (h *ReconcilerHandle) Shutdown() error {
	h.cancel()
	h.prober.Stop()
	h.wg.Wait()
	return nil
}

// ProvideReconciler starts the prober loop and the reconnect reconciler.
// Pending work left from a previous run is reconciled once at startup when
// the backend is reachable.
func ProvideReconciler(i do.Injector) (*ReconcilerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)
	coordHandle := do.MustInvoke[*CoordinatorHandle](i)
	proberHandle := do.MustInvoke[*ProberHandle](i)

	ctx, cancel := context.WithCancel(context.Background())
	h := &ReconcilerHandle{cancel: cancel, prober: proberHandle}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := coordHandle.Run(ctx); err != nil {
			log.Error("reconciler stopped", "error", err)
		}
	}()

	if coordHandle.IsOnline() {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			if _, err := coordHandle.OnReconnect(ctx); err != nil && ctx.Err() == nil {
				log.Error("startup resync failed", "error", err)
			}
		}()
	}

	proberHandle.Start(ctx)

	log.Info("Reconciler started")

	return h, nil
}
