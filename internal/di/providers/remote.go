package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/jpgfer/mws-restaurant-1/internal/config"
	"github.com/jpgfer/mws-restaurant-1/internal/connectivity"
	"github.com/jpgfer/mws-restaurant-1/internal/logger"
	"github.com/jpgfer/mws-restaurant-1/internal/remote"
)

// RemoteClientHandle wraps the backend client with shutdown capability.
type RemoteClientHandle struct {
	*remote.Client
}

// Shutdown implements do.Shutdownable.
func (h *RemoteClientHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideRemoteClient provides the rate-limited backend client.
func ProvideRemoteClient(i do.Injector) (*RemoteClientHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	client, err := remote.New(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		Timeout: cfg.Remote.Timeout,
		RPS:     cfg.Remote.RPS,
		Burst:   cfg.Remote.Burst,
	}, log.Component("remote"))
	if err != nil {
		return nil, err
	}

	log.Info("Remote client initialized", "base_url", client.BaseURL())

	return &RemoteClientHandle{Client: client}, nil
}

// ProvideConnectivity provides the connectivity flag shared by the
// coordinator and the cache interceptor.
func ProvideConnectivity(i do.Injector) (*connectivity.Flag, error) {
	cfg := do.MustInvoke[*config.Config](i)
	return connectivity.NewFlag(cfg.Connectivity.StartOnline), nil
}

// ProberHandle wraps the connectivity prober. The background loop only runs
// after Start; Shutdown stops it.
type ProberHandle struct {
	*connectivity.Prober
	started bool
}

// Start begins background probing.
func (h *ProberHandle) Start(ctx context.Context) {
	h.started = true
	h.Prober.Start(ctx)
}

// Shutdown implements do.Shutdownable.
func (h *ProberHandle) Shutdown() error {
	if h.started {
		h.Stop()
	}
	return nil
}

// ProvideProber provides the backend prober. It probes once so the flag
// reflects the backend before any command runs.
func ProvideProber(i do.Injector) (*ProberHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	clientHandle := do.MustInvoke[*RemoteClientHandle](i)
	flag := do.MustInvoke[*connectivity.Flag](i)

	prober := connectivity.NewProber(clientHandle.Client, flag, cfg.Connectivity.ProbeInterval, log.Component("connectivity"))

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()
	online := prober.Probe(ctx)

	log.Info("Connectivity probed", "online", online, "interval", cfg.Connectivity.ProbeInterval)

	return &ProberHandle{Prober: prober}, nil
}
