package providers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/samber/do/v2"

	"github.com/jpgfer/mws-restaurant-1/internal/api"
	"github.com/jpgfer/mws-restaurant-1/internal/app"
	"github.com/jpgfer/mws-restaurant-1/internal/cache"
	"github.com/jpgfer/mws-restaurant-1/internal/config"
	"github.com/jpgfer/mws-restaurant-1/internal/logger"
	"github.com/jpgfer/mws-restaurant-1/internal/sse"
)

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	onShutdown func(ctx context.Context) error
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := h.Server.Shutdown(ctx)
	if h.onShutdown != nil {
		err = errors.Join(err, h.onShutdown(ctx))
	}
	return err
}

func startServer(log *logger.Logger, name string, srv *http.Server) {
	go func() {
		log.Info("HTTP server starting", "server", name, "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "server", name, "error", err)
		}
	}()
}

// ProvideClientServer provides the client's local HTTP front: the /app facade
// over the coordinator with its event stream, and the cache interceptor for
// every other path.
func ProvideClientServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	coordHandle := do.MustInvoke[*CoordinatorHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	container := do.MustInvoke[*cache.Container](i)

	events := sse.NewHandler(sseHandle.Manager, log.Component("sse"))
	facade := app.NewHandler(coordHandle.Coordinator, events, log.Component("app"))
	interceptor := cache.NewHandler(container, log.Component("cache"))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Mount("/app", facade.Routes())
	router.Handle("/*", interceptor)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	startServer(log, "client", srv)

	return &HTTPServerHandle{
		Server: srv,
		onShutdown: func(ctx context.Context) error {
			facade.Wait()
			return interceptor.Close(ctx)
		},
	}, nil
}

// APIServerHandle wraps the backend REST handler.
type APIServerHandle struct {
	*api.Server
}

// Shutdown implements do.Shutdownable.
func (h *APIServerHandle) Shutdown() error {
	h.Close()
	return nil
}

// ProvideAPIServer provides the backend REST handler.
func ProvideAPIServer(i do.Injector) (*APIServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*BackendStoreHandle](i)

	handler := api.NewServer(storeHandle.Store, api.Config{
		CORSOrigins: cfg.Backend.CORSOrigins,
		StaticDir:   cfg.Backend.StaticDir,
		RPS:         cfg.Backend.RPS,
		Burst:       cfg.Backend.Burst,
	}, log.Component("api"))

	return &APIServerHandle{Server: handler}, nil
}

// ProvideBackendServer provides the backend HTTP server.
func ProvideBackendServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	apiHandle := do.MustInvoke[*APIServerHandle](i)

	srv := &http.Server{
		Addr:         ":" + cfg.Backend.Port,
		Handler:      apiHandle.Server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.ReadTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	startServer(log, "backend", srv)

	return &HTTPServerHandle{Server: srv}, nil
}
